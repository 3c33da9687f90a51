package calendar

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

const (
	defaultContentType = "post"
	maxWriteAttempts   = 5
)

type ItemInput struct {
	ScheduledAt time.Time           `json:"scheduled_at"`
	Timezone    string              `json:"timezone"`
	Channel     string              `json:"channel"`
	ContentType string              `json:"content_type"`
	Topic       string              `json:"topic"`
	Hook        string              `json:"hook"`
	CTA         string              `json:"cta"`
	Persona     string              `json:"persona"`
	CJMStage    string              `json:"cjm_stage"`
	Goal        string              `json:"goal"`
	SourceURL   string              `json:"source_url"`
	Status      database.ItemStatus `json:"status"`
}

// ItemPatch carries a partial update; nil fields are left untouched.
type ItemPatch struct {
	ScheduledAt *time.Time           `json:"scheduled_at"`
	Timezone    *string              `json:"timezone"`
	Channel     *string              `json:"channel"`
	ContentType *string              `json:"content_type"`
	Topic       *string              `json:"topic"`
	Hook        *string              `json:"hook"`
	CTA         *string              `json:"cta"`
	Persona     *string              `json:"persona"`
	CJMStage    *string              `json:"cjm_stage"`
	Goal        *string              `json:"goal"`
	SourceURL   *string              `json:"source_url"`
	Status      *database.ItemStatus `json:"status"`
}

type ItemFilter struct {
	Channel string
	Status  database.ItemStatus
	Query   string
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

type ItemPage struct {
	Items  []database.Item `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type PublishInput struct {
	Provider string `json:"provider"`
	Ref      string `json:"ref"`
}

type PopulateResult struct {
	Slots   int `json:"slots"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type ItemStore struct {
	items database.ItemRepository
	plans database.PlanRepository
	now   func() time.Time
}

func NewItemStore(items database.ItemRepository, plans database.PlanRepository) *ItemStore {
	return &ItemStore{
		items: items,
		plans: plans,
		now:   time.Now,
	}
}

func (s *ItemStore) Create(ctx context.Context, planID string, input ItemInput) (*database.Item, error) {
	plan, err := s.writablePlan(ctx, "create_item", planID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	item := &database.Item{
		ID:          newID(),
		PlanID:      plan.ID,
		ScheduledAt: input.ScheduledAt,
		Timezone:    strings.TrimSpace(input.Timezone),
		Channel:     strings.ToLower(strings.TrimSpace(input.Channel)),
		ContentType: strings.ToLower(strings.TrimSpace(input.ContentType)),
		Topic:       strings.TrimSpace(input.Topic),
		Hook:        input.Hook,
		CTA:         input.CTA,
		Persona:     input.Persona,
		CJMStage:    input.CJMStage,
		Goal:        input.Goal,
		SourceURL:   strings.TrimSpace(input.SourceURL),
		Status:      input.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if item.Timezone == "" {
		item.Timezone = plan.Timezone
	}
	if item.ContentType == "" {
		item.ContentType = defaultContentType
	}
	if item.Persona == "" {
		item.Persona = plan.Persona
	}
	if item.Goal == "" {
		item.Goal = plan.Goal
	}
	if item.Status == "" {
		item.Status = database.ItemStatusPlanned
	}
	if !IsValidItemStatus(item.Status) {
		return nil, errs.Validation("create_item", "unknown item status %q", item.Status)
	}
	if item.Status == database.ItemStatusPublished {
		return nil, errs.Precondition("create_item", "an item cannot be created as published")
	}

	if err := validateItem(plan, item); err != nil {
		return nil, err
	}

	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	slog.Debug("Item created", "item_id", item.ID, "plan_id", plan.ID, "channel", item.Channel, "scheduled_at", item.ScheduledAt)
	return item, nil
}

func (s *ItemStore) Get(ctx context.Context, id string) (*database.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, errs.NotFound("get_item", "item %s not found", id)
	}
	return item, nil
}

func (s *ItemStore) List(ctx context.Context, planID string, filter ItemFilter) (*ItemPage, error) {
	if _, err := s.plan(ctx, "list_items", planID); err != nil {
		return nil, err
	}
	if filter.Status != "" && !IsValidItemStatus(filter.Status) {
		return nil, errs.Validation("list_items", "unknown item status %q", filter.Status)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, errs.Validation("list_items", "range end is before range start")
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	items, total, err := s.items.ListItems(ctx, planID, database.ItemQuery{
		Channel: strings.ToLower(strings.TrimSpace(filter.Channel)),
		Status:  filter.Status,
		Search:  strings.TrimSpace(filter.Query),
		From:    filter.From,
		To:      filter.To,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []database.Item{}
	}

	return &ItemPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// All returns every item of the plan in schedule order.
func (s *ItemStore) All(ctx context.Context, planID string) ([]database.Item, error) {
	if _, err := s.plan(ctx, "list_items", planID); err != nil {
		return nil, err
	}
	items, _, err := s.items.ListItems(ctx, planID, database.ItemQuery{})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *ItemStore) Update(ctx context.Context, id string, patch ItemPatch) (*database.Item, error) {
	return s.modify(ctx, "update_item", id, func(item *database.Item) (bool, error) {
		plan, err := s.plan(ctx, "update_item", item.PlanID)
		if err != nil {
			return false, err
		}

		if patch.ScheduledAt != nil {
			item.ScheduledAt = *patch.ScheduledAt
		}
		if patch.Timezone != nil {
			item.Timezone = strings.TrimSpace(*patch.Timezone)
		}
		if patch.Channel != nil {
			item.Channel = strings.ToLower(strings.TrimSpace(*patch.Channel))
		}
		if patch.ContentType != nil {
			item.ContentType = strings.ToLower(strings.TrimSpace(*patch.ContentType))
		}
		if patch.Topic != nil {
			item.Topic = strings.TrimSpace(*patch.Topic)
		}
		if patch.Hook != nil {
			item.Hook = *patch.Hook
		}
		if patch.CTA != nil {
			item.CTA = *patch.CTA
		}
		if patch.Persona != nil {
			item.Persona = *patch.Persona
		}
		if patch.CJMStage != nil {
			item.CJMStage = *patch.CJMStage
		}
		if patch.Goal != nil {
			item.Goal = *patch.Goal
		}
		if patch.SourceURL != nil {
			item.SourceURL = strings.TrimSpace(*patch.SourceURL)
		}
		if item.Timezone == "" {
			item.Timezone = plan.Timezone
		}
		if item.ContentType == "" {
			item.ContentType = defaultContentType
		}

		if patch.Status != nil && *patch.Status != item.Status {
			if err := CheckTransition(item.Status, *patch.Status); err != nil {
				return false, err
			}
			if *patch.Status == database.ItemStatusPublished {
				if err := s.markPublished(item, PublishInput{}); err != nil {
					return false, err
				}
			} else {
				item.Status = *patch.Status
			}
		}

		if err := validateItem(plan, item); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Delete removes the item. Deleting an item that no longer exists is not an
// error; the returned flag reports whether a row was removed.
func (s *ItemStore) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.items.DeleteItem(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		slog.Debug("Item deleted", "item_id", id)
	}
	return ok, nil
}

// Publish marks the item as published. It requires generated text; an item
// that is already published is returned as is.
func (s *ItemStore) Publish(ctx context.Context, id string, input PublishInput) (*database.Item, error) {
	var published bool
	item, err := s.modify(ctx, "publish_item", id, func(item *database.Item) (bool, error) {
		published = false
		if item.Status == database.ItemStatusPublished {
			return false, nil
		}
		if err := s.markPublished(item, input); err != nil {
			return false, err
		}
		published = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if published {
		slog.Info("Item published", "item_id", item.ID, "plan_id", item.PlanID, "provider", item.PublishProvider)
	}
	return item, nil
}

// ApplyGenerated stores generated content on the item. Applying content equal
// to what the item already holds is a no-op.
func (s *ItemStore) ApplyGenerated(ctx context.Context, id string, content database.GeneratedContent) (*database.Item, error) {
	return s.modify(ctx, "apply_content", id, func(item *database.Item) (bool, error) {
		normalized, err := NormalizeContent(item.ContentType, content)
		if err != nil {
			return false, err
		}
		if item.Generated.Equal(normalized) {
			return false, nil
		}
		if IsTerminal(item.Status) {
			return false, errs.Precondition("apply_content", "item is %s, content can no longer change", item.Status)
		}

		item.Generated = normalized
		return true, nil
	})
}

// Populate expands the plan's frequency rules into planned items. Slots that
// already hold an item on the same channel at the same instant are skipped.
func (s *ItemStore) Populate(ctx context.Context, planID string) (*PopulateResult, error) {
	plan, err := s.writablePlan(ctx, "populate_plan", planID)
	if err != nil {
		return nil, err
	}

	slots, err := ExpandSlots(*plan)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	items := make([]database.Item, 0, len(slots))
	for _, slot := range slots {
		items = append(items, database.Item{
			ID:          newID(),
			PlanID:      plan.ID,
			ScheduledAt: slot.At.UTC(),
			Timezone:    plan.Timezone,
			Channel:     slot.Channel,
			ContentType: slot.ContentType,
			Persona:     plan.Persona,
			Goal:        plan.Goal,
			Status:      database.ItemStatusPlanned,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	created, err := s.items.CreateItemsIfAbsent(ctx, items)
	if err != nil {
		return nil, err
	}

	slog.Info("Plan populated", "plan_id", plan.ID, "slots", len(slots), "created", created)
	return &PopulateResult{Slots: len(slots), Created: created, Skipped: len(slots) - created}, nil
}

func (s *ItemStore) markPublished(item *database.Item, input PublishInput) error {
	if item.Status == database.ItemStatusCancelled {
		return errs.Precondition("publish_item", "item %s is cancelled", item.ID)
	}
	if strings.TrimSpace(item.Generated.Text) == "" {
		return errs.Precondition("publish_item", "item %s has no generated text", item.ID)
	}

	now := s.now().UTC()
	item.Status = database.ItemStatusPublished
	item.PublishedAt = &now
	item.PublishProvider = strings.TrimSpace(input.Provider)
	if item.PublishProvider == "" {
		item.PublishProvider = "manual"
	}
	item.PublishRef = strings.TrimSpace(input.Ref)
	return nil
}

// modify applies fn to a freshly read item and writes the result back only
// if the row still carries the version that was read. On a conflict the
// item is read again and fn reapplied. fn reports whether anything changed.
func (s *ItemStore) modify(ctx context.Context, op, id string, fn func(*database.Item) (bool, error)) (*database.Item, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		item, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := item.UpdatedAt

		changed, err := fn(item)
		if err != nil {
			return nil, err
		}
		if !changed {
			return item, nil
		}

		item.UpdatedAt = s.nextVersion(expected)
		ok, err := s.items.UpdateItem(ctx, item, expected)
		if err != nil {
			return nil, err
		}
		if ok {
			return item, nil
		}
		slog.Debug("Item changed concurrently, retrying", "item_id", id, "op", op, "attempt", attempt)
	}
	return nil, errs.Busy(op, "item %s keeps changing concurrently", id)
}

// nextVersion returns an updated_at strictly after prev at the millisecond
// precision the column stores.
func (s *ItemStore) nextVersion(prev time.Time) time.Time {
	now := s.now().UTC().Truncate(time.Millisecond)
	if floor := prev.UTC().Truncate(time.Millisecond).Add(time.Millisecond); now.Before(floor) {
		return floor
	}
	return now
}

func (s *ItemStore) plan(ctx context.Context, op, planID string) (*database.Plan, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, errs.NotFound(op, "plan %s not found", planID)
	}
	return plan, nil
}

func (s *ItemStore) writablePlan(ctx context.Context, op, planID string) (*database.Plan, error) {
	plan, err := s.plan(ctx, op, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status == database.PlanStatusArchived {
		return nil, errs.Precondition(op, "plan %s is archived", planID)
	}
	return plan, nil
}

func validateItem(plan *database.Plan, item *database.Item) error {
	if item.ScheduledAt.IsZero() {
		return errs.Validation("item", "scheduled_at is required")
	}
	item.ScheduledAt = item.ScheduledAt.UTC()

	if _, err := loadTimezone(item.Timezone); err != nil {
		return err
	}
	if !slices.Contains(plan.Channels, item.Channel) {
		return errs.Validation("item", "channel %q is not part of plan %s", item.Channel, plan.ID)
	}
	if !slugPattern.MatchString(item.ContentType) {
		return errs.Validation("item", "invalid content type %q", item.ContentType)
	}
	return nil
}
