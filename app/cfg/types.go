package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath     string
	PresetsDir string

	// HTTP server
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Workers
	WorkerCount       int
	BulkWorkers       int
	SchedulerInterval int
	AutoPublish       bool

	// Content generation
	GenAIAPIKey       string
	GenAIModel        string
	GenerationTimeout time.Duration
	SubjectTimeout    time.Duration
	SourceMaxLength   int

	// Calendar provider
	CalDAVURL      string
	CalDAVUser     string
	CalDAVPassword string
	CalendarURL    string
	EventDuration  time.Duration

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
