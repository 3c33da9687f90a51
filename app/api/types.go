package api

import (
	"time"

	"github.com/lysyi3m/content-calendar/app/batch"
	"github.com/lysyi3m/content-calendar/app/bulk"
	"github.com/lysyi3m/content-calendar/app/calendar"
	"github.com/lysyi3m/content-calendar/app/calsync"
	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/generation"
	"github.com/lysyi3m/content-calendar/app/sources"
)

// Deps lists everything the handlers serve.
type Deps struct {
	PlanRepo     database.PlanRepository
	ItemRepo     database.ItemRepository
	Plans        *calendar.PlanStore
	Items        *calendar.ItemStore
	Presets      *calendar.PresetCache
	Generation   *generation.Orchestrator
	Bulk         *bulk.Coordinator
	Pipeline     *batch.Pipeline
	Jobs         *batch.Jobs
	Sync         *calsync.Adapter
	Encoder      *calsync.Encoder
	Importer     *sources.FeedImporter
	SyncDefaults calsync.EventDefaults
	Version      string
}

type Handler struct {
	planRepo     database.PlanRepository
	itemRepo     database.ItemRepository
	plans        *calendar.PlanStore
	items        *calendar.ItemStore
	presets      *calendar.PresetCache
	generation   *generation.Orchestrator
	bulk         *bulk.Coordinator
	pipeline     *batch.Pipeline
	jobs         *batch.Jobs
	sync         *calsync.Adapter
	encoder      *calsync.Encoder
	importer     *sources.FeedImporter
	syncDefaults calsync.EventDefaults
	version      string
	now          func() time.Time
}

type generateRequest struct {
	Feedback string `json:"feedback"`
}

type applyRequest struct {
	Content database.GeneratedContent `json:"content"`
}

type bulkRequest struct {
	IDs       []string       `json:"ids"`
	Operation bulk.Operation `json:"operation"`
}

type syncRequest struct {
	CalendarURL     string `json:"calendar_url"`
	DurationMinutes int    `json:"duration_minutes"`
}

type batchStatus struct {
	Busy     bool            `json:"busy"`
	Progress batch.Progress  `json:"progress"`
	Last     *batch.Manifest `json:"last,omitempty"`
	Kinds    []string        `json:"kinds"`
}
