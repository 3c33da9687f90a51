package generation

import (
	"context"
	"time"

	"github.com/lysyi3m/content-calendar/app/database"
)

// Request is the context handed to a content generator for one item.
type Request struct {
	ItemID          string
	Channel         string
	ContentType     string
	ScheduledAt     time.Time
	Topic           string
	Hook            string
	CTA             string
	Persona         string
	CJMStage        string
	Goal            string
	PlanName        string
	CampaignContext string
	SourceURL       string
	SourceExcerpt   string
	// Feedback describes the revision wanted relative to Previous.
	Feedback string
	Previous *database.GeneratedContent
}

type Generator interface {
	Generate(ctx context.Context, req Request) (database.GeneratedContent, error)
}

// SourceFetcher returns a short plain-text excerpt of the page at url.
type SourceFetcher interface {
	Excerpt(ctx context.Context, url string) (string, error)
}

type ItemService interface {
	Get(ctx context.Context, id string) (*database.Item, error)
	ApplyGenerated(ctx context.Context, id string, content database.GeneratedContent) (*database.Item, error)
}

type PlanService interface {
	Get(ctx context.Context, id string) (*database.Plan, error)
}

// Preview is generated content that has not been applied to its item yet.
type Preview struct {
	ItemID    string                    `json:"item_id"`
	Content   database.GeneratedContent `json:"content"`
	Feedback  string                    `json:"feedback,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
}
