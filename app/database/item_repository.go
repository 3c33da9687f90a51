package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var _ ItemRepository = (*ItemRepo)(nil)

const itemColumns = `id, plan_id, scheduled_at, timezone, channel, content_type, topic, hook, cta,
	persona, cjm_stage, goal, source_url, status, generated_title, generated_text,
	generated_variants, generated_hashtags, generated_cta, published_at, publish_provider,
	publish_ref, created_at, updated_at`

// ItemRepo handles database operations for scheduled content items
type ItemRepo struct {
	db *DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

func (r *ItemRepo) CreateItem(ctx context.Context, item *Item) error {
	args, err := itemInsertArgs(item)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`, search_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	return nil
}

// CreateItemsIfAbsent inserts items in one transaction, skipping any item whose
// plan already has an item on the same channel at the same instant. It returns
// the number of inserted items.
func (r *ItemRepo) CreateItemsIfAbsent(ctx context.Context, items []Item) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (`+itemColumns+`, search_text)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM items WHERE plan_id = ? AND channel = ? AND scheduled_at = ?
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range items {
		args, err := itemInsertArgs(&items[i])
		if err != nil {
			return 0, err
		}
		args = append(args, items[i].PlanID, items[i].Channel, toMillis(items[i].ScheduledAt))

		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert item: %w", err)
		}
		ok, err := affected(res)
		if err != nil {
			return 0, err
		}
		if ok {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit items: %w", err)
	}

	return inserted, nil
}

// GetItem returns nil without error when the item does not exist
func (r *ItemRepo) GetItem(ctx context.Context, id string) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// ListItems returns one page of a plan's items ordered by scheduled instant,
// together with the total number of matching items.
func (r *ItemRepo) ListItems(ctx context.Context, planID string, query ItemQuery) ([]Item, int, error) {
	where := []string{"plan_id = ?"}
	args := []any{planID}

	if query.Channel != "" {
		where = append(where, "channel = ?")
		args = append(args, query.Channel)
	}
	if query.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(query.Status))
	}
	if query.Search != "" {
		where = append(where, `search_text LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(query.Search))
	}
	if query.From != nil {
		where = append(where, "scheduled_at >= ?")
		args = append(args, toMillis(*query.From))
	}
	if query.To != nil {
		where = append(where, "scheduled_at < ?")
		args = append(args, toMillis(*query.To))
	}

	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items`+clause+`
		ORDER BY scheduled_at ASC, created_at ASC, id
		LIMIT ? OFFSET ?`,
		append(args, limitOrAll(query.Limit), query.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// UpdateItem overwrites the mutable columns of the row still at the expected
// updated_at. It reports false when the row is missing or was changed since.
func (r *ItemRepo) UpdateItem(ctx context.Context, item *Item, expected time.Time) (bool, error) {
	variants, hashtags, err := encodeGeneratedLists(item.Generated)
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE items
		SET scheduled_at = ?, timezone = ?, channel = ?, content_type = ?, topic = ?, hook = ?,
		    cta = ?, persona = ?, cjm_stage = ?, goal = ?, source_url = ?, status = ?,
		    generated_title = ?, generated_text = ?, generated_variants = ?,
		    generated_hashtags = ?, generated_cta = ?, published_at = ?, publish_provider = ?,
		    publish_ref = ?, search_text = ?, updated_at = ?
		WHERE id = ? AND updated_at = ?
	`, toMillis(item.ScheduledAt), item.Timezone, item.Channel, item.ContentType, item.Topic,
		item.Hook, item.CTA, item.Persona, item.CJMStage, item.Goal, item.SourceURL,
		string(item.Status), item.Generated.Title, item.Generated.Text, variants, hashtags,
		item.Generated.CTA, nullableMillis(item.PublishedAt), item.PublishProvider,
		item.PublishRef, itemSearchText(item), toMillis(item.UpdatedAt), item.ID, toMillis(expected))
	if err != nil {
		return false, fmt.Errorf("failed to update item: %w", err)
	}

	return affected(res)
}

// DeleteItem removes the item; deleting a missing item reports false without error.
func (r *ItemRepo) DeleteItem(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}

	return affected(res)
}

// GetDueItems returns scheduled items whose time has come and that carry
// generated text, oldest first.
func (r *ItemRepo) GetDueItems(ctx context.Context, now time.Time, limit int) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE status = ?
		  AND scheduled_at <= ?
		  AND generated_text != ''
		ORDER BY scheduled_at ASC
		LIMIT ?
	`, string(ItemStatusScheduled), toMillis(now), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get due items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (r *ItemRepo) GetItemCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var status, variants, hashtags string
	var scheduledAt, createdAt, updatedAt int64
	var publishedAt sql.NullInt64

	err := row.Scan(
		&item.ID, &item.PlanID, &scheduledAt, &item.Timezone, &item.Channel, &item.ContentType,
		&item.Topic, &item.Hook, &item.CTA, &item.Persona, &item.CJMStage, &item.Goal,
		&item.SourceURL, &status, &item.Generated.Title, &item.Generated.Text,
		&variants, &hashtags, &item.Generated.CTA, &publishedAt, &item.PublishProvider,
		&item.PublishRef, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Status = ItemStatus(status)
	item.ScheduledAt = fromMillis(scheduledAt)
	item.CreatedAt = fromMillis(createdAt)
	item.UpdatedAt = fromMillis(updatedAt)
	if publishedAt.Valid {
		t := fromMillis(publishedAt.Int64)
		item.PublishedAt = &t
	}

	if err := json.Unmarshal([]byte(variants), &item.Generated.Variants); err != nil {
		return nil, fmt.Errorf("failed to decode generated variants: %w", err)
	}
	if err := json.Unmarshal([]byte(hashtags), &item.Generated.Hashtags); err != nil {
		return nil, fmt.Errorf("failed to decode generated hashtags: %w", err)
	}
	if len(item.Generated.Variants) == 0 {
		item.Generated.Variants = nil
	}
	if len(item.Generated.Hashtags) == 0 {
		item.Generated.Hashtags = nil
	}

	return &item, nil
}

func itemInsertArgs(item *Item) ([]any, error) {
	variants, hashtags, err := encodeGeneratedLists(item.Generated)
	if err != nil {
		return nil, err
	}

	return []any{
		item.ID, item.PlanID, toMillis(item.ScheduledAt), item.Timezone, item.Channel,
		item.ContentType, item.Topic, item.Hook, item.CTA, item.Persona, item.CJMStage,
		item.Goal, item.SourceURL, string(item.Status), item.Generated.Title,
		item.Generated.Text, variants, hashtags, item.Generated.CTA,
		nullableMillis(item.PublishedAt), item.PublishProvider, item.PublishRef,
		toMillis(item.CreatedAt), toMillis(item.UpdatedAt), itemSearchText(item),
	}, nil
}

func encodeGeneratedLists(g GeneratedContent) (string, string, error) {
	variants := g.Variants
	if variants == nil {
		variants = []string{}
	}
	hashtags := g.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}

	variantsJSON, err := json.Marshal(variants)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode generated variants: %w", err)
	}
	hashtagsJSON, err := json.Marshal(hashtags)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode generated hashtags: %w", err)
	}

	return string(variantsJSON), string(hashtagsJSON), nil
}

func itemSearchText(item *Item) string {
	return foldSearch(item.Topic, item.Hook, item.CTA, item.Persona, item.Goal,
		item.Generated.Title, item.Generated.Text)
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}
