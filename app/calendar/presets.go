package calendar

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/content-calendar/app/database"
)

// Preset is a reusable plan template loaded from a YAML file. The file name
// without extension is the preset name.
type Preset struct {
	Name            string                  `yaml:"-" json:"name"`
	Description     string                  `yaml:"description" json:"description,omitempty"`
	Timezone        string                  `yaml:"timezone" json:"timezone,omitempty"`
	Channels        []string                `yaml:"channels" json:"channels"`
	FrequencyRules  database.FrequencyRules `yaml:"frequency_rules" json:"frequency_rules,omitempty"`
	Persona         string                  `yaml:"persona" json:"persona,omitempty"`
	Goal            string                  `yaml:"goal" json:"goal,omitempty"`
	CampaignContext string                  `yaml:"campaign_context" json:"campaign_context,omitempty"`
}

type PresetCache struct {
	presetsDir string
	cache      map[string]*Preset
	mu         sync.RWMutex
}

func NewPresetCache(presetsDir string) *PresetCache {
	return &PresetCache{
		presetsDir: presetsDir,
		cache:      make(map[string]*Preset),
	}
}

// Run loads every *.yml file in the presets directory. A missing directory is
// not an error.
func (pc *PresetCache) Run() error {
	if pc.presetsDir == "" {
		return nil
	}
	if _, err := os.Stat(pc.presetsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(pc.presetsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		preset, err := pc.LoadPreset(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Preset loaded", "preset", name, "channels", preset.Channels, "timezone", preset.Timezone)
	}

	return nil
}

func (pc *PresetCache) LoadPreset(name string) (*Preset, error) {
	file := filepath.Join(pc.presetsDir, name+".yml")

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var preset Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	preset.Name = name

	if err := pc.validatePreset(&preset); err != nil {
		return nil, fmt.Errorf("invalid preset %s: %w", file, err)
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.cache[name] = &preset

	return &preset, nil
}

func (pc *PresetCache) GetPreset(name string) (*Preset, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	preset, ok := pc.cache[name]
	return preset, ok
}

// GetPresets returns the loaded presets sorted by name.
func (pc *PresetCache) GetPresets() []Preset {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	presets := make([]Preset, 0, len(pc.cache))
	for _, p := range pc.cache {
		presets = append(presets, *p)
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets
}

func (pc *PresetCache) validatePreset(preset *Preset) error {
	channels, err := normalizeChannels(preset.Channels)
	if err != nil {
		return err
	}
	preset.Channels = channels

	if preset.Timezone != "" {
		if _, err := loadTimezone(preset.Timezone); err != nil {
			return err
		}
	}

	rules, err := NormalizeFrequencyRules(preset.Channels, preset.FrequencyRules)
	if err != nil {
		return err
	}
	preset.FrequencyRules = rules

	return nil
}
