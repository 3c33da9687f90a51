package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/content-calendar/app/calendar"
	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

const defaultTimeout = 60 * time.Second

// slot tracks the per-item generation lock and the outstanding preview.
type slot struct {
	busy      bool
	discarded bool
	preview   *Preview
}

// Orchestrator runs the generate, preview, apply and discard workflow for
// single items. At most one generation or apply runs per item at a time.
type Orchestrator struct {
	items     ItemService
	plans     PlanService
	generator Generator
	sources   SourceFetcher
	timeout   time.Duration
	now       func() time.Time

	mu    sync.Mutex
	slots map[string]*slot
}

func NewOrchestrator(items ItemService, plans PlanService, generator Generator, sources SourceFetcher, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Orchestrator{
		items:     items,
		plans:     plans,
		generator: generator,
		sources:   sources,
		timeout:   timeout,
		now:       time.Now,
		slots:     make(map[string]*slot),
	}
}

// Generate produces a preview for the item without changing it. Feedback, if
// given, asks for a revision of the outstanding preview or the applied
// content. A second call while one is in flight fails with a Busy error.
func (o *Orchestrator) Generate(ctx context.Context, itemID, feedback string) (*Preview, error) {
	previous, err := o.acquire("generate", itemID)
	if err != nil {
		return nil, err
	}

	content, err := o.produce(ctx, itemID, feedback, previous)
	if err != nil {
		o.release(itemID, nil)
		return nil, err
	}

	preview := &Preview{
		ItemID:    itemID,
		Content:   content,
		Feedback:  feedback,
		CreatedAt: o.now().UTC(),
	}
	if !o.release(itemID, preview) {
		slog.Debug("Generation discarded while in flight", "item_id", itemID)
		return nil, errs.Cancelled("generate", "preview for item %s was discarded", itemID)
	}

	slog.Debug("Preview generated", "item_id", itemID, "feedback", feedback != "")
	return preview, nil
}

// Apply persists content onto the item and clears the outstanding preview.
// Empty content applies the outstanding preview.
func (o *Orchestrator) Apply(ctx context.Context, itemID string, content database.GeneratedContent) (*database.Item, error) {
	previous, err := o.acquire("apply", itemID)
	if err != nil {
		return nil, err
	}

	if content.IsEmpty() {
		if previous == nil {
			o.release(itemID, nil)
			return nil, errs.Precondition("apply", "item %s has no preview to apply", itemID)
		}
		content = previous.Content
	}

	item, err := o.items.ApplyGenerated(ctx, itemID, content)
	if err != nil {
		o.restore(itemID, previous)
		return nil, err
	}

	o.clear(itemID)
	slog.Debug("Content applied", "item_id", itemID)
	return item, nil
}

// GenerateAndApply generates content and stores it on the item in one step,
// without an intermediate preview.
func (o *Orchestrator) GenerateAndApply(ctx context.Context, itemID string) (*database.Item, error) {
	previous, err := o.acquire("generate", itemID)
	if err != nil {
		return nil, err
	}

	content, err := o.produce(ctx, itemID, "", nil)
	if err != nil {
		o.restore(itemID, previous)
		return nil, err
	}

	if o.isDiscarded(itemID) {
		o.clear(itemID)
		return nil, errs.Cancelled("generate", "generation for item %s was discarded", itemID)
	}

	item, err := o.items.ApplyGenerated(ctx, itemID, content)
	if err != nil {
		o.restore(itemID, previous)
		return nil, err
	}

	o.clear(itemID)
	return item, nil
}

// Discard drops the outstanding preview. A generation still in flight is
// abandoned when it completes.
func (o *Orchestrator) Discard(itemID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.slots[itemID]
	if !ok {
		return
	}
	if s.busy {
		s.discarded = true
		s.preview = nil
		return
	}
	delete(o.slots, itemID)
}

func (o *Orchestrator) Preview(itemID string) (*Preview, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.slots[itemID]
	if !ok || s.preview == nil {
		return nil, errs.NotFound("preview", "item %s has no preview", itemID)
	}
	p := *s.preview
	return &p, nil
}

// InFlight reports whether a generation or apply holds the item's lock.
func (o *Orchestrator) InFlight(itemID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.slots[itemID]
	return ok && s.busy
}

func (o *Orchestrator) acquire(op, itemID string) (*Preview, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.slots[itemID]
	if !ok {
		s = &slot{}
		o.slots[itemID] = s
	}
	if s.busy {
		return nil, errs.Busy(op, "generation for item %s is in progress", itemID)
	}
	s.busy = true
	s.discarded = false
	return s.preview, nil
}

// release unlocks the slot after a generation. A non-nil preview replaces the
// outstanding one. It reports false when the slot was discarded meanwhile.
func (o *Orchestrator) release(itemID string, preview *Preview) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.slots[itemID]
	if !ok {
		return false
	}
	if s.discarded {
		delete(o.slots, itemID)
		return false
	}
	s.busy = false
	if preview != nil {
		s.preview = preview
	}
	if s.preview == nil {
		delete(o.slots, itemID)
	}
	return true
}

// restore unlocks the slot after a failed apply, keeping the preview unless
// it was discarded.
func (o *Orchestrator) restore(itemID string, previous *Preview) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.slots[itemID]
	if !ok {
		return
	}
	if s.discarded || previous == nil {
		delete(o.slots, itemID)
		return
	}
	s.busy = false
	s.preview = previous
}

func (o *Orchestrator) clear(itemID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.slots, itemID)
}

func (o *Orchestrator) isDiscarded(itemID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.slots[itemID]
	return !ok || s.discarded
}

func (o *Orchestrator) produce(ctx context.Context, itemID, feedback string, previous *Preview) (database.GeneratedContent, error) {
	item, err := o.items.Get(ctx, itemID)
	if err != nil {
		return database.GeneratedContent{}, err
	}
	if calendar.IsTerminal(item.Status) {
		return database.GeneratedContent{}, errs.Precondition("generate", "item %s is %s", itemID, item.Status)
	}

	req := Request{
		ItemID:      item.ID,
		Channel:     item.Channel,
		ContentType: item.ContentType,
		ScheduledAt: item.LocalScheduledAt(),
		Topic:       item.Topic,
		Hook:        item.Hook,
		CTA:         item.CTA,
		Persona:     item.Persona,
		CJMStage:    item.CJMStage,
		Goal:        item.Goal,
		SourceURL:   item.SourceURL,
		Feedback:    feedback,
	}

	if feedback != "" {
		switch {
		case previous != nil:
			prev := previous.Content
			req.Previous = &prev
		case !item.Generated.IsEmpty():
			prev := item.Generated
			req.Previous = &prev
		}
	}

	if o.plans != nil {
		plan, err := o.plans.Get(ctx, item.PlanID)
		if err != nil {
			return database.GeneratedContent{}, err
		}
		req.PlanName = plan.Name
		req.CampaignContext = plan.CampaignContext
		if req.Persona == "" {
			req.Persona = plan.Persona
		}
		if req.Goal == "" {
			req.Goal = plan.Goal
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if o.sources != nil && item.SourceURL != "" {
		excerpt, err := o.sources.Excerpt(genCtx, item.SourceURL)
		if err != nil {
			slog.Warn("Failed to fetch source excerpt", "item_id", item.ID, "url", item.SourceURL, "error", err)
		} else {
			req.SourceExcerpt = excerpt
		}
	}

	start := time.Now()
	content, err := o.generator.Generate(genCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("generation timed out after %s: %w", o.timeout, err)
		}
		slog.Warn("Content generation failed", "item_id", item.ID, "duration", time.Since(start), "error", err)
		return database.GeneratedContent{}, errs.Collaborator("generate", err)
	}

	normalized, err := calendar.NormalizeContent(item.ContentType, content)
	if err != nil {
		return database.GeneratedContent{}, errs.Collaborator("generate", fmt.Errorf("generator returned unusable content: %v", err))
	}

	slog.Debug("Content generated", "item_id", item.ID, "content_type", item.ContentType, "duration", time.Since(start))
	return normalized, nil
}
