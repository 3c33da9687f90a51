package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type PlanInput struct {
	Name            string                  `json:"name"`
	StartDate       string                  `json:"start_date"`
	EndDate         string                  `json:"end_date"`
	Timezone        string                  `json:"timezone"`
	Status          database.PlanStatus     `json:"status"`
	Channels        []string                `json:"channels"`
	FrequencyRules  database.FrequencyRules `json:"frequency_rules"`
	Persona         string                  `json:"persona"`
	Goal            string                  `json:"goal"`
	CampaignContext string                  `json:"campaign_context"`
	// Preset names a template whose values fill fields left empty above.
	Preset string `json:"preset"`
}

// PlanPatch carries a partial update; nil fields are left untouched.
type PlanPatch struct {
	Name            *string                  `json:"name"`
	StartDate       *string                  `json:"start_date"`
	EndDate         *string                  `json:"end_date"`
	Timezone        *string                  `json:"timezone"`
	Status          *database.PlanStatus     `json:"status"`
	Channels        *[]string                `json:"channels"`
	FrequencyRules  *database.FrequencyRules `json:"frequency_rules"`
	Persona         *string                  `json:"persona"`
	Goal            *string                  `json:"goal"`
	CampaignContext *string                  `json:"campaign_context"`
}

type PlanFilter struct {
	Status database.PlanStatus
	Query  string
	From   string
	To     string
	Limit  int
	Offset int
}

type PlanPage struct {
	Plans  []database.Plan `json:"plans"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type PlanStore struct {
	plans   database.PlanRepository
	presets *PresetCache
	now     func() time.Time
}

func NewPlanStore(plans database.PlanRepository, presets *PresetCache) *PlanStore {
	return &PlanStore{
		plans:   plans,
		presets: presets,
		now:     time.Now,
	}
}

func (s *PlanStore) Create(ctx context.Context, input PlanInput) (*database.Plan, error) {
	if input.Preset != "" {
		if err := s.applyPreset(&input); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	plan := &database.Plan{
		ID:              newID(),
		Name:            strings.TrimSpace(input.Name),
		StartDate:       strings.TrimSpace(input.StartDate),
		EndDate:         strings.TrimSpace(input.EndDate),
		Timezone:        strings.TrimSpace(input.Timezone),
		Status:          input.Status,
		Channels:        input.Channels,
		FrequencyRules:  input.FrequencyRules,
		Persona:         input.Persona,
		Goal:            input.Goal,
		CampaignContext: input.CampaignContext,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if plan.Timezone == "" {
		plan.Timezone = "UTC"
	}
	if plan.Status == "" {
		plan.Status = database.PlanStatusDraft
	}

	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	if err := s.plans.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}

	slog.Info("Plan created", "plan_id", plan.ID, "name", plan.Name, "channels", plan.Channels)
	return plan, nil
}

func (s *PlanStore) Get(ctx context.Context, id string) (*database.Plan, error) {
	plan, err := s.plans.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, errs.NotFound("get_plan", "plan %s not found", id)
	}
	return plan, nil
}

func (s *PlanStore) List(ctx context.Context, filter PlanFilter) (*PlanPage, error) {
	if filter.Status != "" && !IsValidPlanStatus(filter.Status) {
		return nil, errs.Validation("list_plans", "unknown plan status %q", filter.Status)
	}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d); err != nil {
			return nil, errs.Validation("list_plans", "invalid date %q, expected YYYY-MM-DD", d)
		}
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	plans, total, err := s.plans.ListPlans(ctx, database.PlanQuery{
		Status: filter.Status,
		Search: strings.TrimSpace(filter.Query),
		From:   filter.From,
		To:     filter.To,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []database.Plan{}
	}

	return &PlanPage{Plans: plans, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *PlanStore) Update(ctx context.Context, id string, patch PlanPatch) (*database.Plan, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		plan.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.StartDate != nil {
		plan.StartDate = strings.TrimSpace(*patch.StartDate)
	}
	if patch.EndDate != nil {
		plan.EndDate = strings.TrimSpace(*patch.EndDate)
	}
	if patch.Timezone != nil {
		plan.Timezone = strings.TrimSpace(*patch.Timezone)
	}
	if patch.Status != nil {
		plan.Status = *patch.Status
	}
	if patch.Channels != nil {
		plan.Channels = *patch.Channels
	}
	if patch.FrequencyRules != nil {
		plan.FrequencyRules = *patch.FrequencyRules
	}
	if patch.Persona != nil {
		plan.Persona = *patch.Persona
	}
	if patch.Goal != nil {
		plan.Goal = *patch.Goal
	}
	if patch.CampaignContext != nil {
		plan.CampaignContext = *patch.CampaignContext
	}

	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	plan.UpdatedAt = s.now().UTC()

	ok, err := s.plans.UpdatePlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound("update_plan", "plan %s not found", id)
	}

	slog.Debug("Plan updated", "plan_id", plan.ID, "status", plan.Status)
	return plan, nil
}

// Delete removes the plan and, through the foreign key, all of its items.
func (s *PlanStore) Delete(ctx context.Context, id string) error {
	ok, err := s.plans.DeletePlan(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound("delete_plan", "plan %s not found", id)
	}

	slog.Info("Plan deleted", "plan_id", id)
	return nil
}

func (s *PlanStore) applyPreset(input *PlanInput) error {
	if s.presets == nil {
		return errs.Validation("create_plan", "unknown preset %q", input.Preset)
	}
	preset, ok := s.presets.GetPreset(input.Preset)
	if !ok {
		return errs.Validation("create_plan", "unknown preset %q", input.Preset)
	}

	if input.Timezone == "" {
		input.Timezone = preset.Timezone
	}
	if len(input.Channels) == 0 {
		input.Channels = slices.Clone(preset.Channels)
	}
	if len(input.FrequencyRules) == 0 && len(preset.FrequencyRules) > 0 {
		input.FrequencyRules = make(database.FrequencyRules, len(preset.FrequencyRules))
		for k, v := range preset.FrequencyRules {
			input.FrequencyRules[k] = v
		}
	}
	if input.Persona == "" {
		input.Persona = preset.Persona
	}
	if input.Goal == "" {
		input.Goal = preset.Goal
	}
	if input.CampaignContext == "" {
		input.CampaignContext = preset.CampaignContext
	}
	return nil
}

func validatePlan(plan *database.Plan) error {
	if plan.Name == "" {
		return errs.Validation("plan", "name is required")
	}

	start, err := time.Parse(DateLayout, plan.StartDate)
	if err != nil {
		return errs.Validation("plan", "invalid start_date %q, expected YYYY-MM-DD", plan.StartDate)
	}
	end, err := time.Parse(DateLayout, plan.EndDate)
	if err != nil {
		return errs.Validation("plan", "invalid end_date %q, expected YYYY-MM-DD", plan.EndDate)
	}
	if end.Before(start) {
		return errs.Validation("plan", "end_date %s is before start_date %s", plan.EndDate, plan.StartDate)
	}

	if _, err := loadTimezone(plan.Timezone); err != nil {
		return err
	}
	if !IsValidPlanStatus(plan.Status) {
		return errs.Validation("plan", "unknown plan status %q", plan.Status)
	}

	channels, err := normalizeChannels(plan.Channels)
	if err != nil {
		return err
	}
	plan.Channels = channels

	rules, err := NormalizeFrequencyRules(plan.Channels, plan.FrequencyRules)
	if err != nil {
		return err
	}
	plan.FrequencyRules = rules

	return nil
}

func normalizeChannels(channels []string) ([]string, error) {
	var out []string
	for _, c := range channels {
		c = strings.ToLower(strings.TrimSpace(c))
		if !slugPattern.MatchString(c) {
			return nil, errs.Validation("plan", "invalid channel %q", c)
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, errs.Validation("plan", "at least one channel is required")
	}
	return out, nil
}

func loadTimezone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil || name == "" || strings.EqualFold(name, "local") {
		return nil, errs.Validation("timezone", "unknown timezone %q", name)
	}
	return loc, nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Sprintf("failed to generate id: %v", err))
	}
	return id.String()
}
