package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.PresetNames(); strings.Join(got, ",") != "full,quick,smoke" {
		t.Fatalf("unexpected presets %v", got)
	}
	sim, err := cfg.Resolve("")
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if sim.DurationDays != 30 {
		t.Fatalf("expected quick preset (30 days), got %d", sim.DurationDays)
	}
	gen := sim.GeneratorConfig()
	if gen.MinCards != 2000 || gen.MaxCards != 5000 || gen.ChaosLevel != 0.5 {
		t.Fatalf("unexpected quick generator config %+v", gen)
	}
	if len(sim.EnabledAgents) != 5 {
		t.Fatalf("expected all agents listed, got %v", sim.EnabledAgents)
	}
}

func TestResolveFullPreset(t *testing.T) {
	sim, err := Default().Resolve("full")
	if err != nil {
		t.Fatalf("resolve full: %v", err)
	}
	gen := sim.GeneratorConfig()
	if sim.DurationDays != 90 || gen.StaleCardPercentage != 0.4 || gen.BlockerDensity != 0.2 || gen.CommentDensity != 0.5 {
		t.Fatalf("unexpected full preset %+v / %+v", sim, gen)
	}
	// unset fields keep generator defaults
	if gen.MaxCards != 10000 {
		t.Fatalf("expected max cards 10000, got %d", gen.MaxCards)
	}
}

func TestResolveUnknownPreset(t *testing.T) {
	_, err := Default().Resolve("nope")
	if !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestValidateRejectsBadPresets(t *testing.T) {
	cases := map[string]string{
		"missing default": `simulation:
  default_preset: other
presets:
  quick:
    duration_days: 3
`,
		"zero days": `simulation:
  default_preset: quick
presets:
  quick:
    duration_days: 0
`,
		"unknown agent": `simulation:
  default_preset: quick
presets:
  quick:
    duration_days: 3
    agents: [dave]
`,
		"inverted bounds": `simulation:
  default_preset: quick
presets:
  quick:
    duration_days: 3
    generator:
      min_cards: 10
      max_cards: 5
`,
		"bad base path": `simulation:
  default_preset: quick
presets:
  quick:
    duration_days: 3
server:
  base_path: v0
`,
		"webhook without url": `simulation:
  default_preset: quick
presets:
  quick:
    duration_days: 3
webhooks:
  - events: [run.completed]
`,
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestTOMLRoundTrip(t *testing.T) {
	doc, err := GenerateDefaultTOML()
	if err != nil {
		t.Fatalf("encode toml: %v", err)
	}
	cfg, err := FromTOML([]byte(doc))
	if err != nil {
		t.Fatalf("decode toml: %v\n%s", err, doc)
	}
	sim, err := cfg.Resolve("smoke")
	if err != nil {
		t.Fatalf("resolve smoke: %v", err)
	}
	if sim.Seed != 42 || sim.DurationDays != 5 {
		t.Fatalf("unexpected smoke preset %+v", sim)
	}
}

func TestLoadPrefersYAMLThenTOML(t *testing.T) {
	dir := t.TempDir()
	if cfg, err := LoadOptional(dir); err != nil || cfg != nil {
		t.Fatalf("expected nil config for empty workspace, got %v %v", cfg, err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected missing config error")
	}

	tomlDoc := `[simulation]
default_preset = "tiny"

[presets.tiny]
duration_days = 2
`
	if err := os.WriteFile(filepath.Join(dir, TOMLFileName), []byte(tomlDoc), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	if cfg.Simulation.DefaultPreset != "tiny" {
		t.Fatalf("expected toml config, got %+v", cfg.Simulation)
	}

	if err := os.WriteFile(Path(dir), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Simulation.DefaultPreset != "quick" {
		t.Fatalf("expected yaml to win, got %+v", cfg.Simulation)
	}
}
