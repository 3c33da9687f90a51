package calsync

import (
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/content-calendar/app/database"
)

func TestEncoder_Event(t *testing.T) {
	encoder := NewEncoder("1.2.0", "https://cal.example.com/")
	item := database.Item{
		ID:          "item-1",
		ScheduledAt: time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC),
		Channel:     "instagram",
		ContentType: "reel",
		Topic:       "Behind the scenes",
		Hook:        "You won't believe this",
		Status:      database.ItemStatusPublished,
		Generated:   database.GeneratedContent{Text: "Our studio at dawn"},
	}

	event := encoder.Event(item, 0)
	if event.End.Sub(event.Start) != defaultEventDuration {
		t.Errorf("Expected default duration, got %v", event.End.Sub(event.Start))
	}
	if event.Summary != "[instagram] Behind the scenes" {
		t.Errorf("Unexpected summary %q", event.Summary)
	}
	if event.Description != "Our studio at dawn" {
		t.Errorf("Expected generated text as description, got %q", event.Description)
	}
	if event.Status != EventConfirmed {
		t.Errorf("Expected confirmed status, got %s", event.Status)
	}
	if event.URL != "https://cal.example.com/api/items/item-1" {
		t.Errorf("Unexpected url %q", event.URL)
	}

	item.Generated = database.GeneratedContent{}
	item.CTA = "Follow us"
	item.Status = database.ItemStatusPlanned
	event = encoder.Event(item, 0)
	if event.Description != "You won't believe this\n\nFollow us" {
		t.Errorf("Expected hook and cta as description, got %q", event.Description)
	}
	if event.Status != EventTentative {
		t.Errorf("Expected tentative status, got %s", event.Status)
	}
}

func TestEncoder_Run(t *testing.T) {
	encoder := NewEncoder("1.2.0", "")
	plan := database.Plan{ID: "plan-1", Name: "Q2 Launch"}
	items := []database.Item{
		{
			ID:          "item-1",
			ScheduledAt: time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC),
			Channel:     "telegram",
			ContentType: "post",
			Topic:       "Launch",
			UpdatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:          "item-2",
			ScheduledAt: time.Date(2024, 5, 7, 18, 0, 0, 0, time.UTC),
			Channel:     "telegram",
			ContentType: "post",
			Topic:       "Recap",
			UpdatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	ics, err := encoder.Run(plan, items, 45*time.Minute)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Content Calendar//1.2.0//EN",
		"X-WR-CALNAME:Q2 Launch",
		"UID:item-1",
		"DTSTART:20240506T093000Z",
		"DTEND:20240506T101500Z",
		"SUMMARY:[telegram] Launch",
		"STATUS:TENTATIVE",
		"UID:item-2",
		"END:VCALENDAR",
	} {
		if !strings.Contains(ics, want) {
			t.Errorf("Calendar should contain %q", want)
		}
	}

	if strings.Count(ics, "BEGIN:VEVENT") != 2 {
		t.Errorf("Expected 2 events, got %d", strings.Count(ics, "BEGIN:VEVENT"))
	}
}

func TestEncoder_EventKeepsItemTimezone(t *testing.T) {
	encoder := NewEncoder("1.2.0", "")
	item := database.Item{
		ID:          "item-1",
		ScheduledAt: time.Date(2024, 5, 6, 7, 30, 0, 0, time.UTC),
		Timezone:    "Europe/Berlin",
		Channel:     "instagram",
		ContentType: "post",
		Topic:       "Morning post",
	}

	event := encoder.Event(item, 0)
	if event.Start.Location().String() != "Europe/Berlin" || event.Start.Hour() != 9 {
		t.Errorf("Expected 09:30 Berlin start, got %v", event.Start)
	}
	if !event.Start.Equal(item.ScheduledAt) {
		t.Errorf("Expected the same instant, got %v", event.Start)
	}

	ics, err := encoder.Run(database.Plan{Name: "Berlin"}, []database.Item{item}, 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, want := range []string{
		"DTSTART;TZID=Europe/Berlin:20240506T093000",
		"DTEND;TZID=Europe/Berlin:20240506T100000",
		"X-WR-TIMEZONE:Europe/Berlin",
	} {
		if !strings.Contains(ics, want) {
			t.Errorf("Calendar should contain %q, got:\n%s", want, ics)
		}
	}
}
