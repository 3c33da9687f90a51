package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// ReloadPresetsTask rereads plan presets from disk.
type ReloadPresetsTask struct {
	Task
	presets PresetLoader
}

func NewReloadPresetsTask(presets PresetLoader) *ReloadPresetsTask {
	return &ReloadPresetsTask{
		Task:    NewTask(TaskTypeReloadPresets, ""),
		presets: presets,
	}
}

func (t *ReloadPresetsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.presets.Run(); err != nil {
		return fmt.Errorf("failed to reload presets: %w", err)
	}

	slog.Debug("Task completed", "type", string(t.Type), "duration", t.GetDuration())
	return nil
}
