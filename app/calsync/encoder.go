package calsync

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/lysyi3m/content-calendar/app/database"
)

const icalDateTime = "20060102T150405"

// Encoder renders plan items as iCalendar data.
type Encoder struct {
	productID string
	baseURL   string
}

func NewEncoder(version, baseURL string) *Encoder {
	return &Encoder{
		productID: fmt.Sprintf("-//Content Calendar//%s//EN", cmp.Or(version, "dev")),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Event maps an item onto a calendar event lasting duration. Start and End
// carry the item's timezone.
func (e *Encoder) Event(item database.Item, duration time.Duration) Event {
	if duration <= 0 {
		duration = defaultEventDuration
	}

	summary := cmp.Or(item.Generated.Title, item.Topic, item.ContentType)
	description := cmp.Or(item.Generated.Text, item.Hook)
	if item.CTA != "" && item.Generated.Text == "" {
		description = strings.TrimSpace(description + "\n\n" + item.CTA)
	}

	status := EventTentative
	switch item.Status {
	case database.ItemStatusPublished:
		status = EventConfirmed
	case database.ItemStatusCancelled:
		status = EventCancelled
	}

	var url string
	if e.baseURL != "" {
		url = fmt.Sprintf("%s/api/items/%s", e.baseURL, item.ID)
	}

	start := item.LocalScheduledAt()
	return Event{
		UID:         item.ID,
		Summary:     fmt.Sprintf("[%s] %s", item.Channel, summary),
		Description: description,
		Start:       start,
		End:         start.Add(duration),
		Categories:  []string{item.Channel, item.ContentType},
		Status:      status,
		URL:         url,
		Stamp:       item.UpdatedAt.UTC(),
	}
}

// Calendar wraps events into a VCALENDAR component.
func (e *Encoder) Calendar(name string, events ...Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, e.productID)
	if name != "" {
		cal.Props.SetText("X-WR-CALNAME", name)
	}
	if tz := zoneName(events...); tz != "" {
		cal.Props.SetText("X-WR-TIMEZONE", tz)
	}

	for _, ev := range events {
		cal.Children = append(cal.Children, e.component(ev).Component)
	}
	return cal
}

// Run encodes the plan and its items as a text/calendar document.
func (e *Encoder) Run(plan database.Plan, items []database.Item, duration time.Duration) (string, error) {
	events := make([]Event, 0, len(items))
	for _, item := range items {
		events = append(events, e.Event(item, duration))
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(e.Calendar(plan.Name, events...)); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

func (e *Encoder) component(ev Event) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, ev.UID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, cmp.Or(ev.Stamp, time.Now().UTC()))
	event.Props.Set(dateTimeProp(ical.PropDateTimeStart, ev.Start))
	event.Props.Set(dateTimeProp(ical.PropDateTimeEnd, ev.End))
	event.Props.SetText(ical.PropSummary, ev.Summary)
	event.Props.SetText(ical.PropStatus, string(ev.Status))

	if ev.Description != "" {
		event.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.URL != "" {
		event.Props.SetText(ical.PropURL, ev.URL)
	}
	for _, category := range ev.Categories {
		if category == "" {
			continue
		}
		prop := ical.NewProp(ical.PropCategories)
		prop.SetText(category)
		event.Props.Add(prop)
	}

	return event
}

// dateTimeProp writes t as local time with a TZID parameter, or as UTC when
// t has no named zone.
func dateTimeProp(name string, t time.Time) *ical.Prop {
	prop := ical.NewProp(name)
	if tz := t.Location().String(); tz != "UTC" && tz != "Local" {
		prop.Params.Set(ical.ParamTimezoneID, tz)
		prop.Value = t.Format(icalDateTime)
		return prop
	}
	prop.Value = t.UTC().Format(icalDateTime + "Z")
	return prop
}

// zoneName returns the named zone shared by every event, if any.
func zoneName(events ...Event) string {
	var tz string
	for _, ev := range events {
		name := ev.Start.Location().String()
		if name == "UTC" || name == "Local" || (tz != "" && name != tz) {
			return ""
		}
		tz = name
	}
	return tz
}
