package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/content-calendar/app/calsync"
	"github.com/lysyi3m/content-calendar/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	taskTimeout   = 5 * time.Minute
	queueSize     = 300
	maxRetryDelay = 30 * time.Second
)

type Settings struct {
	Interval    time.Duration
	WorkerCount int
	AutoPublish bool
	// SyncDefaults.CalendarURL enables periodic resync of active plans.
	SyncDefaults calsync.EventDefaults
	// RetryBase is the first retry delay; it doubles on every attempt.
	RetryBase time.Duration
}

type Scheduler struct {
	planRepo    database.PlanRepository
	itemRepo    database.ItemRepository
	publisher   Publisher
	syncer      PlanSyncer
	presets     PresetLoader
	settings    Settings
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(settings Settings, planRepo database.PlanRepository, itemRepo database.ItemRepository,
	publisher Publisher, syncer PlanSyncer, presets PresetLoader) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if settings.Interval <= 0 {
		settings.Interval = time.Minute
	}
	if settings.WorkerCount <= 0 {
		settings.WorkerCount = 1
	}
	if settings.RetryBase <= 0 {
		settings.RetryBase = time.Second
	}

	return &Scheduler{
		planRepo:    planRepo,
		itemRepo:    itemRepo,
		publisher:   publisher,
		syncer:      syncer,
		presets:     presets,
		settings:    settings,
		interval:    settings.Interval,
		workerCount: settings.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

	slog.Info("Scheduler started", "workers", s.workerCount, "interval", s.interval, "auto_publish", s.settings.AutoPublish)
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	if s.presets != nil {
		if err := s.EnqueueTask(NewReloadPresetsTask(s.presets)); err != nil {
			slog.Warn("Failed to enqueue ReloadPresetsTask", "error", err)
		}
	}

	s.enqueueTasks()
}

func (s *Scheduler) enqueueTasks() {
	if s.settings.AutoPublish && s.publisher != nil {
		if err := s.EnqueueTask(NewPublishDueTask(s.itemRepo, s.publisher)); err != nil {
			slog.Warn("Failed to enqueue PublishDueTask", "error", err)
		}
	}

	if s.settings.SyncDefaults.CalendarURL == "" || s.syncer == nil || !s.syncer.Enabled() {
		return
	}

	plans, _, err := s.planRepo.ListPlans(s.ctx, database.PlanQuery{Status: database.PlanStatusActive})
	if err != nil {
		slog.Warn("Failed to list active plans, skipping sync", "error", err)
		return
	}

	slog.Debug("Scheduling calendar sync for active plans", "count", len(plans))

	for _, plan := range plans {
		if err := s.EnqueueTask(NewSyncPlanTask(plan.ID, s.syncer, s.settings.SyncDefaults)); err != nil {
			slog.Warn("Failed to enqueue SyncPlanTask", "plan_id", plan.ID, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.settings.RetryBase << uint(task.GetRetryCount()-1)
	if retryDelay > maxRetryDelay {
		retryDelay = maxRetryDelay
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
