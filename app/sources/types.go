package sources

import (
	"time"
)

// Entry is one normalized RSS/Atom entry used as a topic idea.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Categories  []string
	PublishedAt *time.Time
}

// Filter keeps or drops entries by substring match on one field.
type Filter struct {
	Field    string   `json:"field"`
	Includes []string `json:"includes"`
	Excludes []string `json:"excludes"`
}

type ImportRequest struct {
	URL     string   `json:"url"`
	Filters []Filter `json:"filters"`
	// Channel limits filling to items of one channel.
	Channel string `json:"channel"`
}

type ImportResult struct {
	Entries  int `json:"entries"`
	Filtered int `json:"filtered"`
	Filled   int `json:"filled"`
	Open     int `json:"open"`
}
