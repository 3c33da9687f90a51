// Package bulk applies one operation to a caller-selected set of plan items.
//
// Every item is processed independently: a failure is recorded against the
// item id and never stops the others, so a Result always satisfies
// Succeeded+Failed == Requested.
package bulk

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/content-calendar/app/calendar"
	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

const defaultWorkers = 4

type OperationKind string

const (
	OpSetStatus OperationKind = "set_status"
	OpDelete    OperationKind = "delete"
	OpGenerate  OperationKind = "generate"
)

type Operation struct {
	Kind   OperationKind       `json:"kind"`
	Status database.ItemStatus `json:"status,omitempty"`
}

const (
	OutcomeEmpty   = "empty"
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

type ItemFailure struct {
	ItemID  string `json:"item_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Result struct {
	Operation OperationKind `json:"operation"`
	Requested int           `json:"requested"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Errors    []ItemFailure `json:"errors"`
	Outcome   string        `json:"outcome"`
	Duration  int64         `json:"duration_ms"`
}

type ItemService interface {
	Get(ctx context.Context, id string) (*database.Item, error)
	Update(ctx context.Context, id string, patch calendar.ItemPatch) (*database.Item, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type PlanService interface {
	Get(ctx context.Context, id string) (*database.Plan, error)
}

type Generator interface {
	GenerateAndApply(ctx context.Context, itemID string) (*database.Item, error)
}

type Coordinator struct {
	items     ItemService
	plans     PlanService
	generator Generator
	workers   int
}

func NewCoordinator(items ItemService, plans PlanService, generator Generator, workers int) *Coordinator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Coordinator{
		items:     items,
		plans:     plans,
		generator: generator,
		workers:   workers,
	}
}

// Run applies op to every id with bounded parallelism. Only an invalid
// operation or a missing plan fails the whole call; everything else is
// reported per item.
func (c *Coordinator) Run(ctx context.Context, planID string, ids []string, op Operation) (*Result, error) {
	if err := c.validate(op); err != nil {
		return nil, err
	}
	if _, err := c.plans.Get(ctx, planID); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &Result{
		Operation: op.Kind,
		Requested: len(ids),
		Errors:    []ItemFailure{},
	}

	var mu sync.Mutex
	failures := make(map[int]ItemFailure)
	record := func(pos int, id string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			result.Succeeded++
			return
		}
		result.Failed++
		failures[pos] = ItemFailure{ItemID: id, Kind: errs.KindOf(err), Message: err.Error()}
	}

	var g errgroup.Group
	g.SetLimit(c.workers)

	seen := make(map[string]bool, len(ids))
	for pos, id := range ids {
		if seen[id] {
			record(pos, id, errs.Validation("bulk", "item %s appears more than once in the request", id))
			continue
		}
		seen[id] = true

		g.Go(func() error {
			if ctx.Err() != nil {
				record(pos, id, errs.Cancelled("bulk", "operation cancelled before item %s was processed", id))
				return nil
			}
			// Cancellation is checked before an item starts; a started item runs to completion.
			record(pos, id, c.apply(context.WithoutCancel(ctx), planID, id, op))
			return nil
		})
	}
	_ = g.Wait()

	positions := make([]int, 0, len(failures))
	for pos := range failures {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for _, pos := range positions {
		result.Errors = append(result.Errors, failures[pos])
	}

	result.Outcome = outcome(result)
	duration := time.Since(start)
	result.Duration = duration.Milliseconds()

	slog.Info("Bulk operation completed",
		"plan_id", planID,
		"operation", op.Kind,
		"requested", result.Requested,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"duration", duration)

	return result, nil
}

func (c *Coordinator) validate(op Operation) error {
	switch op.Kind {
	case OpSetStatus:
		if !calendar.IsValidItemStatus(op.Status) {
			return errs.Validation("bulk", "unknown item status %q", op.Status)
		}
	case OpDelete:
	case OpGenerate:
		if c.generator == nil {
			return errs.Validation("bulk", "generation is not available")
		}
	default:
		return errs.Validation("bulk", "unknown operation %q", op.Kind)
	}
	return nil
}

func (c *Coordinator) apply(ctx context.Context, planID, id string, op Operation) error {
	item, err := c.items.Get(ctx, id)
	if err != nil {
		return err
	}
	if item.PlanID != planID {
		return errs.NotFound("bulk", "item %s does not belong to plan %s", id, planID)
	}

	switch op.Kind {
	case OpSetStatus:
		status := op.Status
		_, err = c.items.Update(ctx, id, calendar.ItemPatch{Status: &status})
		return err
	case OpDelete:
		deleted, err := c.items.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return errs.NotFound("bulk", "item %s was deleted concurrently", id)
		}
		return nil
	case OpGenerate:
		_, err = c.generator.GenerateAndApply(ctx, id)
		return err
	}
	return nil
}

func outcome(r *Result) string {
	switch {
	case r.Requested == 0:
		return OutcomeEmpty
	case r.Failed == 0:
		return OutcomeSuccess
	case r.Succeeded == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}
