package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/content-calendar/app/calsync"
)

type SyncPlanTask struct {
	Task
	syncer   PlanSyncer
	defaults calsync.EventDefaults
}

func NewSyncPlanTask(planID string, syncer PlanSyncer, defaults calsync.EventDefaults) *SyncPlanTask {
	return &SyncPlanTask{
		Task:     NewTask(TaskTypeSyncPlan, planID),
		syncer:   syncer,
		defaults: defaults,
	}
}

func (t *SyncPlanTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.syncer.Sync(ctx, t.Subject, t.defaults)
	if err != nil {
		return fmt.Errorf("failed to sync plan: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"plan_id", t.Subject,
		"created", result.Created,
		"updated", result.Updated,
		"failed", result.Failed,
		"duration", t.GetDuration())

	// Per-event failures are reported but the next tick retries them anyway.
	return nil
}
