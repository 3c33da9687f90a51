package calendar

import (
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

const (
	DateLayout       = "2006-01-02"
	clockLayout      = "15:04"
	maxExpandedSlots = 5000
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Slot is one position produced by expanding frequency rules.
type Slot struct {
	Channel     string
	ContentType string
	At          time.Time
}

// NormalizeFrequencyRules validates rules against the plan's channels and
// returns a copy with lower-cased days and channel keys.
func NormalizeFrequencyRules(channels []string, rules database.FrequencyRules) (database.FrequencyRules, error) {
	normalized := make(database.FrequencyRules, len(rules))

	for channel, cadence := range rules {
		key := strings.ToLower(strings.TrimSpace(channel))
		if !slices.Contains(channels, key) {
			return nil, errs.Validation("frequency_rules", "rule for channel %q which is not part of the plan", channel)
		}
		if len(cadence.Times) == 0 {
			return nil, errs.Validation("frequency_rules", "channel %q needs at least one time", key)
		}

		var out database.Cadence
		for _, day := range cadence.Days {
			d := strings.ToLower(strings.TrimSpace(day))
			if len(d) > 3 {
				d = d[:3]
			}
			if _, ok := weekdays[d]; !ok {
				return nil, errs.Validation("frequency_rules", "channel %q has unknown day %q", key, day)
			}
			if !slices.Contains(out.Days, d) {
				out.Days = append(out.Days, d)
			}
		}
		for _, clock := range cadence.Times {
			c := strings.TrimSpace(clock)
			if _, err := time.Parse(clockLayout, c); err != nil {
				return nil, errs.Validation("frequency_rules", "channel %q has invalid time %q, expected HH:MM", key, clock)
			}
			out.Times = append(out.Times, c)
		}
		sort.Strings(out.Times)
		for _, ct := range cadence.ContentTypes {
			c := strings.ToLower(strings.TrimSpace(ct))
			if !slugPattern.MatchString(c) {
				return nil, errs.Validation("frequency_rules", "channel %q has invalid content type %q", key, ct)
			}
			out.ContentTypes = append(out.ContentTypes, c)
		}

		normalized[key] = out
	}

	return normalized, nil
}

// ExpandSlots turns the plan's frequency rules into concrete instants across
// the plan's date range, evaluated in the plan timezone. The result is sorted
// by instant, then channel.
func ExpandSlots(plan database.Plan) ([]Slot, error) {
	loc, err := time.LoadLocation(plan.Timezone)
	if err != nil {
		return nil, errs.Validation("expand_slots", "invalid timezone %q", plan.Timezone)
	}
	start, err := time.ParseInLocation(DateLayout, plan.StartDate, loc)
	if err != nil {
		return nil, errs.Validation("expand_slots", "invalid start date %q", plan.StartDate)
	}
	end, err := time.ParseInLocation(DateLayout, plan.EndDate, loc)
	if err != nil {
		return nil, errs.Validation("expand_slots", "invalid end date %q", plan.EndDate)
	}

	channels := make([]string, 0, len(plan.FrequencyRules))
	for channel := range plan.FrequencyRules {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	var slots []Slot
	for _, channel := range channels {
		cadence := plan.FrequencyRules[channel]
		days := make(map[time.Weekday]bool, len(cadence.Days))
		for _, d := range cadence.Days {
			days[weekdays[d]] = true
		}

		n := 0
		for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
			if len(days) > 0 && !days[day.Weekday()] {
				continue
			}
			for _, clock := range cadence.Times {
				tod, err := time.Parse(clockLayout, clock)
				if err != nil {
					return nil, errs.Validation("expand_slots", "channel %q has invalid time %q", channel, clock)
				}

				contentType := "post"
				if len(cadence.ContentTypes) > 0 {
					contentType = cadence.ContentTypes[n%len(cadence.ContentTypes)]
				}
				n++

				slots = append(slots, Slot{
					Channel:     channel,
					ContentType: contentType,
					At:          time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, loc),
				})
				if len(slots) > maxExpandedSlots {
					return nil, errs.Validation("expand_slots", "frequency rules produce more than %d slots", maxExpandedSlots)
				}
			}
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].At.Equal(slots[j].At) {
			return slots[i].At.Before(slots[j].At)
		}
		return slots[i].Channel < slots[j].Channel
	})

	return slots, nil
}
