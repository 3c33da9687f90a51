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

var _ PlanRepository = (*PlanRepo)(nil)

const planColumns = `id, name, start_date, end_date, timezone, status, channels, frequency_rules,
	persona, goal, campaign_context, created_at, updated_at`

// PlanRepo handles database operations for content plans
type PlanRepo struct {
	db *DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *DB) *PlanRepo {
	return &PlanRepo{db: db}
}

func (r *PlanRepo) CreatePlan(ctx context.Context, plan *Plan) error {
	channels, rules, err := encodePlanJSON(plan)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO plans (
			id, name, start_date, end_date, timezone, status, channels, frequency_rules,
			persona, goal, campaign_context, search_text, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, plan.ID, plan.Name, plan.StartDate, plan.EndDate, plan.Timezone, string(plan.Status),
		channels, rules, plan.Persona, plan.Goal, plan.CampaignContext, planSearchText(plan),
		toMillis(plan.CreatedAt), toMillis(plan.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}

	return nil
}

// GetPlan returns nil without error when the plan does not exist
func (r *PlanRepo) GetPlan(ctx context.Context, id string) (*Plan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)

	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return plan, nil
}

// ListPlans returns one page of plans ordered by start date, newest first,
// together with the total number of matching plans.
func (r *PlanRepo) ListPlans(ctx context.Context, query PlanQuery) ([]Plan, int, error) {
	var where []string
	var args []any

	if query.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(query.Status))
	}
	if query.Search != "" {
		where = append(where, `search_text LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(query.Search))
	}
	if query.From != "" {
		where = append(where, "end_date >= ?")
		args = append(args, query.From)
	}
	if query.To != "" {
		where = append(where, "start_date <= ?")
		args = append(args, query.To)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count plans: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM plans`+clause+`
		ORDER BY start_date DESC, created_at DESC, id
		LIMIT ? OFFSET ?`,
		append(args, limitOrAll(query.Limit), query.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan plan row: %w", err)
		}
		plans = append(plans, *plan)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating plan rows: %w", err)
	}

	return plans, total, nil
}

// UpdatePlan overwrites the mutable columns; it reports false when no row matched.
func (r *PlanRepo) UpdatePlan(ctx context.Context, plan *Plan) (bool, error) {
	channels, rules, err := encodePlanJSON(plan)
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE plans
		SET name = ?, start_date = ?, end_date = ?, timezone = ?, status = ?, channels = ?,
		    frequency_rules = ?, persona = ?, goal = ?, campaign_context = ?, search_text = ?,
		    updated_at = ?
		WHERE id = ?
	`, plan.Name, plan.StartDate, plan.EndDate, plan.Timezone, string(plan.Status), channels,
		rules, plan.Persona, plan.Goal, plan.CampaignContext, planSearchText(plan),
		toMillis(plan.UpdatedAt), plan.ID)
	if err != nil {
		return false, fmt.Errorf("failed to update plan: %w", err)
	}

	return affected(res)
}

// DeletePlan removes the plan; its items go with it through the foreign key cascade.
func (r *PlanRepo) DeletePlan(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete plan: %w", err)
	}

	return affected(res)
}

func (r *PlanRepo) GetPlanCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plans").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get plan count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*Plan, error) {
	var plan Plan
	var status, channels, rules string
	var createdAt, updatedAt int64

	err := row.Scan(
		&plan.ID, &plan.Name, &plan.StartDate, &plan.EndDate, &plan.Timezone, &status,
		&channels, &rules, &plan.Persona, &plan.Goal, &plan.CampaignContext,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	plan.Status = PlanStatus(status)
	plan.CreatedAt = fromMillis(createdAt)
	plan.UpdatedAt = fromMillis(updatedAt)

	if err := json.Unmarshal([]byte(channels), &plan.Channels); err != nil {
		return nil, fmt.Errorf("failed to decode plan channels: %w", err)
	}
	if err := json.Unmarshal([]byte(rules), &plan.FrequencyRules); err != nil {
		return nil, fmt.Errorf("failed to decode frequency rules: %w", err)
	}
	if plan.Channels == nil {
		plan.Channels = []string{}
	}
	if plan.FrequencyRules == nil {
		plan.FrequencyRules = FrequencyRules{}
	}

	return &plan, nil
}

func encodePlanJSON(plan *Plan) (string, string, error) {
	channels := plan.Channels
	if channels == nil {
		channels = []string{}
	}
	rules := plan.FrequencyRules
	if rules == nil {
		rules = FrequencyRules{}
	}

	channelsJSON, err := json.Marshal(channels)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode plan channels: %w", err)
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode frequency rules: %w", err)
	}

	return string(channelsJSON), string(rulesJSON), nil
}

func planSearchText(plan *Plan) string {
	return foldSearch(plan.Name, plan.Persona, plan.Goal, plan.CampaignContext)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
