package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath     string `long:"db-path" env:"DB_PATH" default:"./data/calendar.db" description:"Path to the SQLite database file"`
	PresetsDir string `long:"presets-dir" env:"PRESETS_DIR" default:"./presets" description:"Directory containing plan preset files"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://calendar.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Workers
	WorkerCount       int  `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for scheduled tasks"`
	BulkWorkers       int  `long:"bulk-workers" env:"BULK_WORKERS" default:"4" description:"Parallelism of bulk item operations"`
	SchedulerInterval int  `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	AutoPublish       bool `long:"auto-publish" env:"AUTO_PUBLISH" description:"Publish scheduled items with generated content when they are due"`

	// Content generation
	GenAIAPIKey       string        `long:"genai-api-key" env:"GENAI_API_KEY" description:"Gemini API key; generation is disabled without it"`
	GenAIModel        string        `long:"genai-model" env:"GENAI_MODEL" default:"gemini-2.5-flash" description:"Model used for content generation"`
	GenerationTimeout time.Duration `long:"generation-timeout" env:"GENERATION_TIMEOUT" default:"60s" description:"Timeout of one generation call"`
	SubjectTimeout    time.Duration `long:"subject-timeout" env:"SUBJECT_TIMEOUT" default:"2m" description:"Timeout of one batch subject"`
	SourceMaxLength   int           `long:"source-max-length" env:"SOURCE_MAX_LENGTH" default:"2000" description:"Maximum characters of source article excerpts"`

	// Calendar provider
	CalDAVURL      string        `long:"caldav-url" env:"CALDAV_URL" description:"CalDAV server endpoint; calendar sync is disabled without it"`
	CalDAVUser     string        `long:"caldav-user" env:"CALDAV_USER" description:"CalDAV username"`
	CalDAVPassword string        `long:"caldav-password" env:"CALDAV_PASSWORD" description:"CalDAV password"`
	CalendarURL    string        `long:"calendar-url" env:"CALENDAR_URL" description:"Calendar path used for sync (enables periodic resync of active plans)"`
	EventDuration  time.Duration `long:"event-duration" env:"EVENT_DURATION" default:"30m" description:"Duration of calendar events"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Content Calendar/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args and the environment. It returns nil without error when
// help was requested.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.WorkerCount < 1 || raw.BulkWorkers < 1 {
		return nil, fmt.Errorf("failed to parse configuration: worker counts must be positive")
	}
	if raw.SchedulerInterval < 1 {
		return nil, fmt.Errorf("failed to parse configuration: scheduler interval must be positive")
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		PresetsDir:        raw.PresetsDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		APIAccessKey:      raw.APIAccessKey,
		WorkerCount:       raw.WorkerCount,
		BulkWorkers:       raw.BulkWorkers,
		SchedulerInterval: raw.SchedulerInterval,
		AutoPublish:       raw.AutoPublish,
		GenAIAPIKey:       raw.GenAIAPIKey,
		GenAIModel:        raw.GenAIModel,
		GenerationTimeout: raw.GenerationTimeout,
		SubjectTimeout:    raw.SubjectTimeout,
		SourceMaxLength:   raw.SourceMaxLength,
		CalDAVURL:         raw.CalDAVURL,
		CalDAVUser:        raw.CalDAVUser,
		CalDAVPassword:    raw.CalDAVPassword,
		CalendarURL:       raw.CalendarURL,
		EventDuration:     raw.EventDuration,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
