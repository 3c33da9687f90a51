package tasks

import (
	"context"

	"github.com/lysyi3m/content-calendar/app/calendar"
	"github.com/lysyi3m/content-calendar/app/calsync"
	"github.com/lysyi3m/content-calendar/app/database"
)

// TaskSchedulerInterface defines the interface for background task scheduling.
// Example usage:
//
//	scheduler := NewScheduler(settings, planRepo, itemRepo, itemStore, syncer, presets)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewSyncPlanTask(planID, syncer, defaults))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type Publisher interface {
	Publish(ctx context.Context, id string, input calendar.PublishInput) (*database.Item, error)
}

type PlanSyncer interface {
	Enabled() bool
	Sync(ctx context.Context, planID string, defaults calsync.EventDefaults) (*calsync.SyncResult, error)
}

type PresetLoader interface {
	Run() error
}
