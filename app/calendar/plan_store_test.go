package calendar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/database/dbtest"
	"github.com/lysyi3m/content-calendar/app/errs"
)

type testStores struct {
	plans *PlanStore
	items *ItemStore
}

func setupStores(t *testing.T) testStores {
	t.Helper()
	db := dbtest.New(t)
	planRepo := database.NewPlanRepository(db)
	return testStores{
		plans: NewPlanStore(planRepo, nil),
		items: NewItemStore(database.NewItemRepository(db), planRepo),
	}
}

func createTestPlan(t *testing.T, s *PlanStore) *database.Plan {
	t.Helper()
	plan, err := s.Create(context.Background(), PlanInput{
		Name:      "January launch",
		StartDate: "2024-01-01",
		EndDate:   "2024-01-31",
		Channels:  []string{"instagram"},
	})
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}
	return plan
}

func TestPlanStore_CreateDefaults(t *testing.T) {
	s := setupStores(t)

	plan := createTestPlan(t, s.plans)
	if plan.ID == "" {
		t.Error("Expected generated id")
	}
	if plan.Timezone != "UTC" {
		t.Errorf("Expected default timezone UTC, got %s", plan.Timezone)
	}
	if plan.Status != database.PlanStatusDraft {
		t.Errorf("Expected default status draft, got %s", plan.Status)
	}

	got, err := s.plans.Get(context.Background(), plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "January launch" {
		t.Errorf("Expected stored name, got %s", got.Name)
	}
}

func TestPlanStore_CreateValidation(t *testing.T) {
	s := setupStores(t)

	tests := []struct {
		name  string
		input PlanInput
	}{
		{"missing name", PlanInput{StartDate: "2024-01-01", EndDate: "2024-01-02", Channels: []string{"x"}}},
		{"end before start", PlanInput{Name: "P", StartDate: "2024-02-01", EndDate: "2024-01-01", Channels: []string{"x"}}},
		{"bad date", PlanInput{Name: "P", StartDate: "01/02/2024", EndDate: "2024-01-01", Channels: []string{"x"}}},
		{"bad timezone", PlanInput{Name: "P", StartDate: "2024-01-01", EndDate: "2024-01-02", Timezone: "Mars/Base", Channels: []string{"x"}}},
		{"no channels", PlanInput{Name: "P", StartDate: "2024-01-01", EndDate: "2024-01-02"}},
		{"bad status", PlanInput{Name: "P", StartDate: "2024-01-01", EndDate: "2024-01-02", Channels: []string{"x"}, Status: "paused"}},
		{"rule for unknown channel", PlanInput{Name: "P", StartDate: "2024-01-01", EndDate: "2024-01-02", Channels: []string{"x"},
			FrequencyRules: database.FrequencyRules{"y": {Times: []string{"10:00"}}}}},
		{"unknown preset", PlanInput{Name: "P", StartDate: "2024-01-01", EndDate: "2024-01-02", Preset: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.plans.Create(context.Background(), tt.input)
			if !errors.Is(err, errs.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestPlanStore_GetMissing(t *testing.T) {
	s := setupStores(t)

	_, err := s.plans.Get(context.Background(), "missing")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
	if err := s.plans.Delete(context.Background(), "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected not found on delete, got %v", err)
	}
}

func TestPlanStore_Update(t *testing.T) {
	ctx := context.Background()
	s := setupStores(t)
	plan := createTestPlan(t, s.plans)

	name := "Renamed"
	status := database.PlanStatusActive
	updated, err := s.plans.Update(ctx, plan.ID, PlanPatch{Name: &name, Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Renamed" || updated.Status != database.PlanStatusActive {
		t.Errorf("Expected patched fields, got %+v", updated)
	}
	if updated.StartDate != plan.StartDate {
		t.Errorf("Expected untouched start date %s, got %s", plan.StartDate, updated.StartDate)
	}

	end := "2023-12-01"
	if _, err := s.plans.Update(ctx, plan.ID, PlanPatch{EndDate: &end}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Expected validation error for end before start, got %v", err)
	}

	if _, err := s.plans.Update(ctx, "missing", PlanPatch{Name: &name}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestPlanStore_List(t *testing.T) {
	ctx := context.Background()
	s := setupStores(t)

	for _, in := range []PlanInput{
		{Name: "Winter promo", StartDate: "2024-01-01", EndDate: "2024-01-31", Channels: []string{"instagram"}},
		{Name: "Spring promo", StartDate: "2024-03-01", EndDate: "2024-03-31", Channels: []string{"instagram"}, Status: database.PlanStatusActive},
		{Name: "Summer", StartDate: "2024-06-01", EndDate: "2024-06-30", Channels: []string{"blog"}},
	} {
		if _, err := s.plans.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.plans.List(ctx, PlanFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || page.Limit != defaultPageSize {
		t.Errorf("Expected 3 plans with default limit, got total %d limit %d", page.Total, page.Limit)
	}
	if page.Plans[0].Name != "Summer" {
		t.Errorf("Expected newest start date first, got %s", page.Plans[0].Name)
	}

	page, err = s.plans.List(ctx, PlanFilter{Query: "PROMO", To: "2024-02-15"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Plans[0].Name != "Winter promo" {
		t.Errorf("Expected only Winter promo, got %+v", page.Plans)
	}

	page, err = s.plans.List(ctx, PlanFilter{Status: database.PlanStatusActive})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Plans[0].Name != "Spring promo" {
		t.Errorf("Expected only the active plan, got %+v", page.Plans)
	}

	page, err = s.plans.List(ctx, PlanFilter{Status: database.PlanStatusArchived})
	if err != nil {
		t.Fatal(err)
	}
	if page.Plans == nil || len(page.Plans) != 0 {
		t.Errorf("Expected an empty, non-nil page, got %#v", page.Plans)
	}

	if _, err := s.plans.List(ctx, PlanFilter{Status: "paused"}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Expected validation error for unknown status, got %v", err)
	}
}

func TestPlanStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := setupStores(t)
	plan := createTestPlan(t, s.plans)

	for i := 0; i < 4; i++ {
		_, err := s.items.Create(ctx, plan.ID, ItemInput{
			ScheduledAt: time.Date(2024, 1, 2+i, 10, 0, 0, 0, time.UTC),
			Channel:     "instagram",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := s.plans.Delete(ctx, plan.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := s.items.List(ctx, plan.ID, ItemFilter{}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected not found listing items of a deleted plan, got %v", err)
	}
}

func TestPlanStore_CreateFromPreset(t *testing.T) {
	dir := t.TempDir()
	content := `
description: Weekly social cadence
timezone: Europe/Berlin
channels: [Instagram, linkedin]
frequency_rules:
  instagram:
    days: [mon, thu]
    times: ["09:00"]
persona: Busy parents
goal: Awareness
`
	if err := os.WriteFile(filepath.Join(dir, "weekly.yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	presets := NewPresetCache(dir)
	if err := presets.Run(); err != nil {
		t.Fatal(err)
	}

	db := dbtest.New(t)
	store := NewPlanStore(database.NewPlanRepository(db), presets)

	plan, err := store.Create(context.Background(), PlanInput{
		Name:      "Q1",
		StartDate: "2024-01-01",
		EndDate:   "2024-03-31",
		Goal:      "Sign-ups",
		Preset:    "weekly",
	})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Timezone != "Europe/Berlin" {
		t.Errorf("Expected preset timezone, got %s", plan.Timezone)
	}
	if len(plan.Channels) != 2 || plan.Channels[0] != "instagram" {
		t.Errorf("Expected preset channels, got %v", plan.Channels)
	}
	if plan.Goal != "Sign-ups" {
		t.Errorf("Expected explicit goal to win over preset, got %s", plan.Goal)
	}
	if plan.Persona != "Busy parents" {
		t.Errorf("Expected preset persona, got %s", plan.Persona)
	}
	if _, ok := plan.FrequencyRules["instagram"]; !ok {
		t.Errorf("Expected preset rules, got %v", plan.FrequencyRules)
	}
}
