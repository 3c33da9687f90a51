// Package calsync mirrors plan items into an external calendar.
package calsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

const defaultCallTimeout = 30 * time.Second

// Adapter pushes plan items to a Provider and remembers the resulting event
// references so a repeated sync updates events instead of duplicating them.
type Adapter struct {
	provider Provider
	items    ItemService
	plans    PlanService
	links    database.EventLinkRepository
	encoder  *Encoder
	timeout  time.Duration
	now      func() time.Time
}

func NewAdapter(provider Provider, items ItemService, plans PlanService, links database.EventLinkRepository, encoder *Encoder, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Adapter{
		provider: provider,
		items:    items,
		plans:    plans,
		links:    links,
		encoder:  encoder,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (a *Adapter) Enabled() bool {
	return a.provider != nil
}

func (a *Adapter) ListCalendars(ctx context.Context) ([]Calendar, error) {
	if a.provider == nil {
		return nil, errs.Precondition("list_calendars", "no calendar provider is configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	calendars, err := a.provider.ListCalendars(callCtx)
	if err != nil {
		return nil, errs.Collaborator("list_calendars", err)
	}
	return calendars, nil
}

// Sync writes one event per item of the plan. Cancelled items are only sent
// when they were synced before, so the external event gets cancelled too.
// A failing event is recorded and the rest of the plan is still synced. When
// the sync stops early the counts so far are returned with the error.
func (a *Adapter) Sync(ctx context.Context, planID string, defaults EventDefaults) (*SyncResult, error) {
	if a.provider == nil {
		return nil, errs.Precondition("sync_plan", "no calendar provider is configured")
	}
	if defaults.CalendarURL == "" {
		return nil, errs.Validation("sync_plan", "calendar_url is required")
	}

	plan, err := a.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	items, err := a.items.All(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Errors: []SyncError{}}
	for _, item := range items {
		if ctx.Err() != nil {
			a.logResult(plan.ID, defaults, result, "cancelled")
			return result, errs.Cancelled("sync_plan", "sync of plan %s cancelled", plan.ID)
		}

		link, err := a.links.GetEventLink(ctx, item.ID)
		if err != nil {
			a.logResult(plan.ID, defaults, result, "aborted")
			return result, err
		}
		if item.Status == database.ItemStatusCancelled && link == nil {
			continue
		}

		result.Total++
		created, err := a.syncItem(ctx, item, link, defaults)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SyncError{ItemID: item.ID, Kind: errs.KindOf(err), Message: err.Error()})
			slog.Warn("Calendar event sync failed", "plan_id", plan.ID, "item_id", item.ID, "error", err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	a.logResult(plan.ID, defaults, result, "done")
	return result, nil
}

func (a *Adapter) logResult(planID string, defaults EventDefaults, result *SyncResult, state string) {
	slog.Info("Plan synced to calendar",
		"plan_id", planID,
		"calendar", defaults.CalendarURL,
		"state", state,
		"total", result.Total,
		"created", result.Created,
		"updated", result.Updated,
		"failed", result.Failed)
}

func (a *Adapter) syncItem(ctx context.Context, item database.Item, link *database.EventLink, defaults EventDefaults) (bool, error) {
	event := a.encoder.Event(item, defaults.Duration)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	ref, err := a.provider.UpsertEvent(callCtx, defaults.CalendarURL, event)
	cancel()
	if err != nil {
		return false, errs.Collaborator("sync_event", err)
	}

	// The event already exists remotely; record it even if ctx was cancelled.
	err = a.links.UpsertEventLink(context.WithoutCancel(ctx), database.EventLink{
		ItemID:      item.ID,
		CalendarURL: defaults.CalendarURL,
		EventRef:    ref,
		SyncedAt:    a.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to remember event for item %s: %w", item.ID, err)
	}

	created := link == nil || link.CalendarURL != defaults.CalendarURL
	return created, nil
}
