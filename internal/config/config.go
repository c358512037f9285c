package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"fizzysim/internal/agents"
	"fizzysim/internal/generator"
	"fizzysim/internal/simulation"
)

const (
	FileName     = "fizzy.yml"
	TOMLFileName = "fizzy.toml"
)

// ErrUnknownPreset is returned when a preset name is not defined.
var ErrUnknownPreset = errors.New("unknown preset")

// Config models fizzy.yml (or fizzy.toml).
type Config struct {
	Simulation struct {
		DefaultPreset string `yaml:"default_preset" toml:"default_preset"`
	} `yaml:"simulation" toml:"simulation"`
	Presets map[string]Preset `yaml:"presets" toml:"presets"`
	Archive struct {
		Enabled bool `yaml:"enabled" toml:"enabled"`
	} `yaml:"archive" toml:"archive"`
	Server struct {
		Addr     string `yaml:"addr" toml:"addr"`
		BasePath string `yaml:"base_path" toml:"base_path"`
	} `yaml:"server" toml:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" toml:"webhooks,omitempty"`
}

// Preset is a named run shape.
type Preset struct {
	DurationDays int                 `yaml:"duration_days" toml:"duration_days"`
	Seed         uint64              `yaml:"seed,omitempty" toml:"seed,omitempty"`
	Agents       []string            `yaml:"agents,omitempty" toml:"agents,omitempty"`
	Verbose      bool                `yaml:"verbose,omitempty" toml:"verbose,omitempty"`
	Generator    generator.Overrides `yaml:"generator" toml:"generator"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" toml:"url"`
	Events         []string `yaml:"events,omitempty" toml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty" toml:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" toml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
}

// Load reads and validates config from workspace, preferring fizzy.yml.
func Load(workspace string) (*Config, error) {
	cfg, err := LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config %s not found; create one with fizzy config init", Path(workspace))
	}
	return cfg, nil
}

// LoadOptional returns nil,nil if neither config file exists.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err == nil {
		return FromYAML(data)
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	data, err = os.ReadFile(TOMLPath(workspace))
	if err == nil {
		return FromTOML(data)
	}
	if os.IsNotExist(err) {
		return nil, nil
	}
	return nil, err
}

// LoadOrDefault falls back to Default when the workspace has no config.
func LoadOrDefault(workspace string) (*Config, error) {
	cfg, err := LoadOptional(workspace)
	if err != nil || cfg != nil {
		return cfg, err
	}
	return Default(), nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Presets) == 0 {
		return fmt.Errorf("config.presets is required")
	}
	if c.Simulation.DefaultPreset == "" {
		return fmt.Errorf("config.simulation.default_preset is required")
	}
	if _, ok := c.Presets[c.Simulation.DefaultPreset]; !ok {
		return fmt.Errorf("default preset %s not defined", c.Simulation.DefaultPreset)
	}
	for _, name := range c.PresetNames() {
		p := c.Presets[name]
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("config.presets contains empty preset name")
		}
		if err := p.Simulation(false).Validate(); err != nil {
			return fmt.Errorf("preset %s: %w", name, err)
		}
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout", i)
		}
	}
	return nil
}

// PresetNames lists the defined presets in sorted order.
func (c *Config) PresetNames() []string {
	names := make([]string, 0, len(c.Presets))
	for name := range c.Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve returns the simulation config for a preset. An empty name picks
// the default preset.
func (c *Config) Resolve(name string) (simulation.Config, error) {
	if name == "" {
		name = c.Simulation.DefaultPreset
	}
	p, ok := c.Presets[name]
	if !ok {
		return simulation.Config{}, fmt.Errorf("%w: %s (have %s)", ErrUnknownPreset, name, strings.Join(c.PresetNames(), ", "))
	}
	return p.Simulation(p.Verbose), nil
}

// Simulation converts the preset into a run config.
func (p Preset) Simulation(verbose bool) simulation.Config {
	gen := p.Generator
	return simulation.Config{
		DurationDays:  p.DurationDays,
		Generator:     &gen,
		EnabledAgents: slices.Clone(p.Agents),
		Verbose:       verbose,
		Seed:          p.Seed,
	}
}

// Path returns the YAML config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// TOMLPath returns the TOML config file path for a workspace.
func TOMLPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, TOMLFileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return fmt.Sprintf(defaultTemplate, strings.Join(agents.IDs, ", "))
}

// GenerateDefaultTOML renders the default config as TOML.
func GenerateDefaultTOML() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(Default()); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Default returns the built-in config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault())).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromTOML parses and validates config from raw TOML bytes.
func FromTOML(data []byte) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("invalid config toml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads config from the given path; .toml files decode as TOML.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FromTOML(data)
	}
	return FromYAML(data)
}

const defaultTemplate = `simulation:
  default_preset: quick

presets:
  quick:
    duration_days: 30
    agents: [%s]
    generator:
      min_cards: 2000
      max_cards: 5000
      chaos_level: 0.5

  full:
    duration_days: 90
    generator:
      min_cards: 5000
      max_cards: 10000
      chaos_level: 0.7
      stale_card_percentage: 0.4
      blocker_density: 0.2
      comment_density: 0.5

  smoke:
    duration_days: 5
    seed: 42
    generator:
      min_cards: 50
      max_cards: 100

archive:
  enabled: true

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
