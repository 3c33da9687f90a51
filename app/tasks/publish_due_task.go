package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/content-calendar/app/calendar"
	"github.com/lysyi3m/content-calendar/app/database"
)

const (
	publishProvider  = "scheduler"
	publishBatchSize = 100
)

// PublishDueTask publishes scheduled items whose time has come.
type PublishDueTask struct {
	Task
	itemRepo  database.ItemRepository
	publisher Publisher
	now       func() time.Time
}

func NewPublishDueTask(itemRepo database.ItemRepository, publisher Publisher) *PublishDueTask {
	return &PublishDueTask{
		Task:      NewTask(TaskTypePublishDue, ""),
		itemRepo:  itemRepo,
		publisher: publisher,
		now:       time.Now,
	}
}

func (t *PublishDueTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	items, err := t.itemRepo.GetDueItems(ctx, t.now().UTC(), publishBatchSize)
	if err != nil {
		return fmt.Errorf("failed to get due items: %w", err)
	}

	if len(items) == 0 {
		slog.Debug("No items due for publishing")
		return nil
	}

	var failures []error
	published := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := t.publisher.Publish(ctx, item.ID, calendar.PublishInput{Provider: publishProvider})
		if err != nil {
			slog.Warn("Failed to publish due item", "item_id", item.ID, "plan_id", item.PlanID, "error", err)
			failures = append(failures, fmt.Errorf("item %s: %w", item.ID, err))
			continue
		}
		published++
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"due", len(items),
		"published", published,
		"failed", len(failures),
		"duration", t.GetDuration())

	return errors.Join(failures...)
}
