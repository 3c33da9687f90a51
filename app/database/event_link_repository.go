package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var _ EventLinkRepository = (*EventLinkRepo)(nil)

// EventLinkRepo remembers which calendar event was created for each item so a
// later sync updates the event instead of creating a duplicate.
type EventLinkRepo struct {
	db *DB
}

func NewEventLinkRepository(db *DB) *EventLinkRepo {
	return &EventLinkRepo{db: db}
}

// GetEventLink returns nil without error when the item was never synced
func (r *EventLinkRepo) GetEventLink(ctx context.Context, itemID string) (*EventLink, error) {
	var link EventLink
	var syncedAt int64

	err := r.db.QueryRowContext(ctx, `
		SELECT item_id, calendar_url, event_ref, synced_at
		FROM item_external_events
		WHERE item_id = ?
	`, itemID).Scan(&link.ItemID, &link.CalendarURL, &link.EventRef, &syncedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event link: %w", err)
	}

	link.SyncedAt = fromMillis(syncedAt)
	return &link, nil
}

func (r *EventLinkRepo) UpsertEventLink(ctx context.Context, link EventLink) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO item_external_events (item_id, calendar_url, event_ref, synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET
			calendar_url = excluded.calendar_url,
			event_ref = excluded.event_ref,
			synced_at = excluded.synced_at
	`, link.ItemID, link.CalendarURL, link.EventRef, toMillis(link.SyncedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert event link: %w", err)
	}

	return nil
}
