package batch

import (
	"context"
	"fmt"
	"strings"

	"github.com/lysyi3m/content-calendar/app/calendar"
	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

const (
	KindGenerate = "generate"
	KindPublish  = "publish"
)

type ItemService interface {
	All(ctx context.Context, planID string) ([]database.Item, error)
	Get(ctx context.Context, id string) (*database.Item, error)
	Publish(ctx context.Context, id string, input calendar.PublishInput) (*database.Item, error)
}

type Generator interface {
	GenerateAndApply(ctx context.Context, itemID string) (*database.Item, error)
}

// Jobs builds plan-level batch jobs.
type Jobs struct {
	items     ItemService
	generator Generator
}

func NewJobs(items ItemService, generator Generator) *Jobs {
	return &Jobs{items: items, generator: generator}
}

func Kinds() []string {
	return []string{KindGenerate, KindPublish}
}

// Build returns the job of the given kind over the plan's items.
func (j *Jobs) Build(ctx context.Context, kind, planID string, force bool) (JobSpec, error) {
	switch kind {
	case KindGenerate:
		return j.generateJob(ctx, planID, force)
	case KindPublish:
		return j.publishJob(ctx, planID, force)
	default:
		return JobSpec{}, errs.Validation("batch", "unknown job kind %q", kind)
	}
}

// generateJob fills every open item with generated content. Items that
// already carry generated text are done.
func (j *Jobs) generateJob(ctx context.Context, planID string, force bool) (JobSpec, error) {
	if j.generator == nil {
		return JobSpec{}, errs.Validation("batch", "generation is not available")
	}

	items, err := j.items.All(ctx, planID)
	if err != nil {
		return JobSpec{}, err
	}

	var subjects []Subject
	for _, item := range items {
		if calendar.IsTerminal(item.Status) {
			continue
		}
		subjects = append(subjects, Subject{
			ID:    item.ID,
			Label: itemLabel(item),
			Done:  item.Generated.Text != "",
		})
	}

	return JobSpec{
		Kind:     KindGenerate,
		Subjects: subjects,
		Force:    force,
		IsDone: func(ctx context.Context, s Subject) (bool, error) {
			item, err := j.items.Get(ctx, s.ID)
			if err != nil {
				return false, err
			}
			return item.Generated.Text != "", nil
		},
		Action: func(ctx context.Context, s Subject) error {
			_, err := j.generator.GenerateAndApply(ctx, s.ID)
			return err
		},
	}, nil
}

// publishJob publishes approved and scheduled items. Items already published
// are done.
func (j *Jobs) publishJob(ctx context.Context, planID string, force bool) (JobSpec, error) {
	items, err := j.items.All(ctx, planID)
	if err != nil {
		return JobSpec{}, err
	}

	var subjects []Subject
	for _, item := range items {
		switch item.Status {
		case database.ItemStatusApproved, database.ItemStatusScheduled, database.ItemStatusPublished:
			subjects = append(subjects, Subject{
				ID:    item.ID,
				Label: itemLabel(item),
				Done:  item.Status == database.ItemStatusPublished,
			})
		}
	}

	return JobSpec{
		Kind:     KindPublish,
		Subjects: subjects,
		Force:    force,
		IsDone: func(ctx context.Context, s Subject) (bool, error) {
			item, err := j.items.Get(ctx, s.ID)
			if err != nil {
				return false, err
			}
			return item.Status == database.ItemStatusPublished, nil
		},
		Action: func(ctx context.Context, s Subject) error {
			_, err := j.items.Publish(ctx, s.ID, calendar.PublishInput{Provider: "batch"})
			return err
		},
	}, nil
}

func itemLabel(item database.Item) string {
	parts := []string{item.Channel, item.LocalScheduledAt().Format("2006-01-02 15:04")}
	if item.Topic != "" {
		parts = append(parts, item.Topic)
	}
	return fmt.Sprintf("%s (%s)", strings.Join(parts, " "), item.ContentType)
}
