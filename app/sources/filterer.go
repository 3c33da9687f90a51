package sources

import (
	"fmt"
	"strings"
)

var validFilterFields = map[string]bool{
	"title":       true,
	"description": true,
	"link":        true,
	"categories":  true,
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

func (f *Filterer) Validate(filters []Filter) error {
	for i, filter := range filters {
		if !validFilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}
	return nil
}

// Run returns the entries that pass every filter, in their original order.
func (f *Filterer) Run(entries []Entry, filters []Filter) []Entry {
	if len(filters) == 0 {
		return entries
	}

	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if f.passes(entry, filters) {
			kept = append(kept, entry)
		}
	}
	return kept
}

func (f *Filterer) passes(entry Entry, filters []Filter) bool {
	for _, filter := range filters {
		value := f.getFieldValue(entry, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return false
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}

	return true
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(entry Entry, field string) string {
	switch field {
	case "title":
		return entry.Title
	case "description":
		return entry.Description
	case "link":
		return entry.Link
	case "categories":
		return strings.Join(entry.Categories, " ")
	default:
		return ""
	}
}
