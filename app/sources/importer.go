package sources

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/lysyi3m/content-calendar/app/calendar"
	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

type ItemService interface {
	All(ctx context.Context, planID string) ([]database.Item, error)
	Update(ctx context.Context, id string, patch calendar.ItemPatch) (*database.Item, error)
}

// FeedImporter assigns feed entries as topics to a plan's items that have none.
type FeedImporter struct {
	fetcher  *Fetcher
	parser   *Parser
	filterer *Filterer
	items    ItemService
}

func NewFeedImporter(fetcher *Fetcher, items ItemService) *FeedImporter {
	return &FeedImporter{
		fetcher:  fetcher,
		parser:   NewParser(),
		filterer: NewFilterer(),
		items:    items,
	}
}

// Import fills topic-less, non-terminal items in schedule order with the
// feed's entries. Entries whose link is already a source of the plan are
// skipped, so importing the same feed twice does not duplicate topics.
func (fi *FeedImporter) Import(ctx context.Context, planID string, req ImportRequest) (*ImportResult, error) {
	feedURL, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (feedURL.Scheme != "http" && feedURL.Scheme != "https") {
		return nil, errs.Validation("import_feed", "invalid feed URL %q", req.URL)
	}
	if err := fi.filterer.Validate(req.Filters); err != nil {
		return nil, errs.Validation("import_feed", "%v", err)
	}

	items, err := fi.items.All(ctx, planID)
	if err != nil {
		return nil, err
	}

	data, _, err := fi.fetcher.Fetch(ctx, feedURL.String())
	if err != nil {
		return nil, errs.Collaborator("import_feed", err)
	}
	entries, err := fi.parser.Run(data)
	if err != nil {
		return nil, errs.Collaborator("import_feed", err)
	}

	result := &ImportResult{Entries: len(entries)}
	kept := fi.filterer.Run(entries, req.Filters)
	result.Filtered = len(entries) - len(kept)

	used := make(map[string]bool)
	for _, item := range items {
		if item.SourceURL != "" {
			used[item.SourceURL] = true
		}
	}

	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	next := 0
	for _, item := range items {
		if item.Topic != "" || calendar.IsTerminal(item.Status) {
			continue
		}
		if channel != "" && item.Channel != channel {
			continue
		}

		for next < len(kept) && kept[next].Link != "" && used[kept[next].Link] {
			next++
		}
		if next >= len(kept) {
			result.Open++
			continue
		}

		entry := kept[next]
		next++

		topic := entry.Title
		source := entry.Link
		if _, err := fi.items.Update(ctx, item.ID, calendar.ItemPatch{Topic: &topic, SourceURL: &source}); err != nil {
			slog.Warn("Failed to assign feed entry", "item_id", item.ID, "entry", entry.GUID, "error", err)
			result.Open++
			continue
		}
		if source != "" {
			used[source] = true
		}
		result.Filled++
	}

	slog.Info("Feed imported", "plan_id", planID, "url", feedURL.String(), "entries", result.Entries, "filled", result.Filled, "open", result.Open)
	return result, nil
}
