package database

import (
	"slices"
	"time"
)

type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "draft"
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusArchived  PlanStatus = "archived"
)

type ItemStatus string

const (
	ItemStatusPlanned   ItemStatus = "planned"
	ItemStatusDraft     ItemStatus = "draft"
	ItemStatusReady     ItemStatus = "ready"
	ItemStatusApproved  ItemStatus = "approved"
	ItemStatusScheduled ItemStatus = "scheduled"
	ItemStatusPublished ItemStatus = "published"
	ItemStatusFailed    ItemStatus = "failed"
	ItemStatusCancelled ItemStatus = "cancelled"
)

// Cadence describes how often one channel gets a slot.
type Cadence struct {
	// Days lists mon..sun; empty means every day.
	Days []string `json:"days,omitempty" yaml:"days"`
	// Times are HH:MM in the plan timezone.
	Times []string `json:"times" yaml:"times"`
	// ContentTypes are cycled across the channel's slots.
	ContentTypes []string `json:"content_types,omitempty" yaml:"content_types"`
}

// FrequencyRules maps a channel to its cadence.
type FrequencyRules map[string]Cadence

type Plan struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	StartDate       string         `json:"start_date"` // YYYY-MM-DD
	EndDate         string         `json:"end_date"`   // YYYY-MM-DD, inclusive
	Timezone        string         `json:"timezone"`
	Status          PlanStatus     `json:"status"`
	Channels        []string       `json:"channels"`
	FrequencyRules  FrequencyRules `json:"frequency_rules"`
	Persona         string         `json:"persona"`
	Goal            string         `json:"goal"`
	CampaignContext string         `json:"campaign_context"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type GeneratedContent struct {
	Title    string   `json:"title,omitempty"`
	Text     string   `json:"text"`
	Variants []string `json:"variants,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
	CTA      string   `json:"cta,omitempty"`
}

func (g GeneratedContent) IsEmpty() bool {
	return g.Title == "" && g.Text == "" && len(g.Variants) == 0 && len(g.Hashtags) == 0 && g.CTA == ""
}

func (g GeneratedContent) Equal(other GeneratedContent) bool {
	return g.Title == other.Title &&
		g.Text == other.Text &&
		g.CTA == other.CTA &&
		slices.Equal(g.Variants, other.Variants) &&
		slices.Equal(g.Hashtags, other.Hashtags)
}

type Item struct {
	ID              string           `json:"id"`
	PlanID          string           `json:"plan_id"`
	ScheduledAt     time.Time        `json:"scheduled_at"` // instant, normalized to UTC
	Timezone        string           `json:"timezone"`     // display timezone
	Channel         string           `json:"channel"`
	ContentType     string           `json:"content_type"`
	Topic           string           `json:"topic"`
	Hook            string           `json:"hook"`
	CTA             string           `json:"cta"`
	Persona         string           `json:"persona"`
	CJMStage        string           `json:"cjm_stage"`
	Goal            string           `json:"goal"`
	SourceURL       string           `json:"source_url"`
	Status          ItemStatus       `json:"status"`
	Generated       GeneratedContent `json:"generated"`
	PublishedAt     *time.Time       `json:"published_at,omitempty"`
	PublishProvider string           `json:"publish_provider,omitempty"`
	PublishRef      string           `json:"publish_ref,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// LocalScheduledAt returns the scheduled instant in the item's display timezone.
func (i Item) LocalScheduledAt() time.Time {
	loc, err := time.LoadLocation(i.Timezone)
	if err != nil {
		return i.ScheduledAt
	}
	return i.ScheduledAt.In(loc)
}

// EventLink ties an item to the calendar event created for it.
type EventLink struct {
	ItemID      string
	CalendarURL string
	EventRef    string
	SyncedAt    time.Time
}

// PlanQuery filters are conjunctive; zero values impose no constraint.
type PlanQuery struct {
	Status PlanStatus
	Search string
	From   string // plans ending on or after this date
	To     string // plans starting on or before this date
	Limit  int
	Offset int
}

// ItemQuery filters are conjunctive; zero values impose no constraint.
type ItemQuery struct {
	Channel string
	Status  ItemStatus
	Search  string
	From    *time.Time // inclusive
	To      *time.Time // exclusive
	Limit   int
	Offset  int
}
