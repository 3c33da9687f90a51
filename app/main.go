package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/content-calendar/app/api"
	"github.com/lysyi3m/content-calendar/app/batch"
	"github.com/lysyi3m/content-calendar/app/bulk"
	"github.com/lysyi3m/content-calendar/app/calendar"
	"github.com/lysyi3m/content-calendar/app/calsync"
	"github.com/lysyi3m/content-calendar/app/cfg"
	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/generation"
	"github.com/lysyi3m/content-calendar/app/sources"
	"github.com/lysyi3m/content-calendar/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(appCfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Content Calendar", "version", appCfg.Version)

	if err := os.MkdirAll(filepath.Dir(appCfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	presets := calendar.NewPresetCache(appCfg.PresetsDir)
	if err := presets.Run(); err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}
	slog.Info("Presets loaded", "dir", appCfg.PresetsDir, "count", len(presets.GetPresets()))

	planRepo := database.NewPlanRepository(db)
	itemRepo := database.NewItemRepository(db)
	linkRepo := database.NewEventLinkRepository(db)

	plans := calendar.NewPlanStore(planRepo, presets)
	items := calendar.NewItemStore(itemRepo, planRepo)

	httpClient := &http.Client{Timeout: 60 * time.Second}
	fetcher := sources.NewFetcher(httpClient, appCfg.UserAgent, 30*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var generator generation.Generator = generation.DisabledGenerator{}
	if appCfg.GenAIAPIKey != "" {
		genaiGenerator, err := generation.NewGenAIGenerator(ctx, appCfg.GenAIAPIKey, appCfg.GenAIModel)
		if err != nil {
			return err
		}
		generator = genaiGenerator
		slog.Info("Content generation enabled", "model", genaiGenerator.Name())
	} else {
		slog.Warn("Content generation disabled (GENAI_API_KEY not set)")
	}

	orchestrator := generation.NewOrchestrator(items, plans, generator,
		sources.NewArticleFetcher(fetcher, appCfg.SourceMaxLength), appCfg.GenerationTimeout)

	encoder := calsync.NewEncoder(appCfg.Version, appCfg.BaseUrl)
	var provider calsync.Provider
	if appCfg.CalDAVURL != "" {
		caldavProvider, err := calsync.NewCalDAVProvider(appCfg.CalDAVURL, appCfg.CalDAVUser, appCfg.CalDAVPassword, httpClient, encoder)
		if err != nil {
			return err
		}
		provider = caldavProvider
		slog.Info("Calendar sync enabled", "endpoint", appCfg.CalDAVURL, "calendar", appCfg.CalendarURL)
	}
	syncer := calsync.NewAdapter(provider, items, plans, linkRepo, encoder, 0)
	syncDefaults := calsync.EventDefaults{CalendarURL: appCfg.CalendarURL, Duration: appCfg.EventDuration}

	pipeline := batch.NewPipeline(appCfg.SubjectTimeout)

	scheduler := tasks.NewScheduler(tasks.Settings{
		Interval:     time.Duration(appCfg.SchedulerInterval) * time.Second,
		WorkerCount:  appCfg.WorkerCount,
		AutoPublish:  appCfg.AutoPublish,
		SyncDefaults: syncDefaults,
	}, planRepo, itemRepo, items, syncer, presets)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(api.Deps{
		PlanRepo:     planRepo,
		ItemRepo:     itemRepo,
		Plans:        plans,
		Items:        items,
		Presets:      presets,
		Generation:   orchestrator,
		Bulk:         bulk.NewCoordinator(items, plans, orchestrator, appCfg.BulkWorkers),
		Pipeline:     pipeline,
		Jobs:         batch.NewJobs(items, orchestrator),
		Sync:         syncer,
		Encoder:      encoder,
		Importer:     sources.NewFeedImporter(fetcher, items),
		SyncDefaults: syncDefaults,
		Version:      appCfg.Version,
	})

	httpServer := &http.Server{
		Addr:        ":" + appCfg.Port,
		Handler:     api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if pipeline.Cancel() {
		slog.Info("Waiting for the running batch job to stop")
	}
	pipeline.Wait()

	slog.Info("Content Calendar shutdown complete")
	return nil
}
