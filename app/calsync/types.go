package calsync

import (
	"context"
	"time"

	"github.com/lysyi3m/content-calendar/app/database"
)

const defaultEventDuration = 30 * time.Minute

type Calendar struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

type EventStatus string

const (
	EventTentative EventStatus = "TENTATIVE"
	EventConfirmed EventStatus = "CONFIRMED"
	EventCancelled EventStatus = "CANCELLED"
)

// Event is the provider-neutral view of one scheduled item.
type Event struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Categories  []string
	Status      EventStatus
	URL         string
	Stamp       time.Time
}

type EventDefaults struct {
	CalendarURL string        `json:"calendar_url"`
	Duration    time.Duration `json:"-"`
}

type SyncError struct {
	ItemID  string `json:"item_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type SyncResult struct {
	Total   int         `json:"total"`
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Failed  int         `json:"failed"`
	Errors  []SyncError `json:"errors"`
}

// Provider is an external calendar that can hold plan events.
type Provider interface {
	ListCalendars(ctx context.Context) ([]Calendar, error)
	// UpsertEvent creates or replaces the event with the same UID and returns
	// the provider's reference to it.
	UpsertEvent(ctx context.Context, calendarURL string, event Event) (string, error)
}

type ItemService interface {
	All(ctx context.Context, planID string) ([]database.Item, error)
}

type PlanService interface {
	Get(ctx context.Context, id string) (*database.Plan, error)
}
