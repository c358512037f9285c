// Package app resolves a run request against the workspace config, runs the
// simulation and archives the result.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"fizzysim/internal/config"
	"fizzysim/internal/generator"
	"fizzysim/internal/oracle"
	"fizzysim/internal/repo"
	"fizzysim/internal/simulation"
)

// Request overrides the chosen preset field by field.
type Request struct {
	Preset       string
	DurationDays *int
	Seed         *uint64
	Agents       []string
	Verbose      *bool
	Generator    *generator.Overrides
	RequestedBy  string
}

// Service is shared by the CLI and the HTTP server.
type Service struct {
	Config *config.Config
	// Repo is nil when archiving is disabled.
	Repo   *repo.Repo
	Logger *slog.Logger
	Now    func() time.Time
	// OnComplete runs after a result has been archived.
	OnComplete func(context.Context, repo.Run, simulation.Result)
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Resolve merges the request over its preset.
func (s Service) Resolve(req Request) (simulation.Config, string, error) {
	cfg := s.Config
	if cfg == nil {
		cfg = config.Default()
	}
	name := req.Preset
	if name == "" {
		name = cfg.Simulation.DefaultPreset
	}
	sim, err := cfg.Resolve(name)
	if err != nil {
		return simulation.Config{}, "", err
	}
	if req.DurationDays != nil {
		sim.DurationDays = *req.DurationDays
	}
	if req.Seed != nil {
		sim.Seed = *req.Seed
	}
	if len(req.Agents) > 0 {
		sim.EnabledAgents = req.Agents
	}
	if req.Verbose != nil {
		sim.Verbose = *req.Verbose
	}
	if req.Generator != nil {
		merged := mergeOverrides(*sim.Generator, *req.Generator)
		sim.Generator = &merged
	}
	if err := sim.Validate(); err != nil {
		return simulation.Config{}, "", err
	}
	return sim, name, nil
}

func mergeOverrides(base, top generator.Overrides) generator.Overrides {
	if top.MinCards != nil {
		base.MinCards = top.MinCards
	}
	if top.MaxCards != nil {
		base.MaxCards = top.MaxCards
	}
	if top.ChaosLevel != nil {
		base.ChaosLevel = top.ChaosLevel
	}
	if top.StaleCardPercentage != nil {
		base.StaleCardPercentage = top.StaleCardPercentage
	}
	if top.BlockerDensity != nil {
		base.BlockerDensity = top.BlockerDensity
	}
	if top.CommentDensity != nil {
		base.CommentDensity = top.CommentDensity
	}
	return base
}

// Run executes the request and archives the result when a repo is set.
func (s Service) Run(ctx context.Context, req Request) (repo.Run, simulation.Result, error) {
	sim, preset, err := s.Resolve(req)
	if err != nil {
		return repo.Run{}, simulation.Result{}, err
	}
	log := s.logger().With("preset", preset)
	started := s.now()
	res, err := simulation.RunContext(ctx, sim, simulation.Options{Logger: log, Start: started})
	if err != nil {
		return repo.Run{}, simulation.Result{}, err
	}
	run := repo.NewRun("", preset, req.RequestedBy, res, started)
	if s.Repo != nil {
		if err := s.Repo.InsertRun(ctx, run, res); err != nil {
			return repo.Run{}, simulation.Result{}, fmt.Errorf("archive run: %w", err)
		}
		log.Info("run archived", "run_id", run.ID, "seed", run.Seed, "survived", run.Survived)
	}
	if s.OnComplete != nil {
		s.OnComplete(ctx, run, res)
	}
	return run, res, nil
}

// AskRequest builds a board from a preset, optionally lets the agents work
// it for Days, then asks the oracle.
type AskRequest struct {
	Preset    string
	Seed      *uint64
	Days      int
	Generator *generator.Overrides
	Query     string
}

type AskResult struct {
	Seed       uint64        `json:"seed"`
	Day        int           `json:"day"`
	TotalCards int           `json:"total_cards"`
	Answer     oracle.Answer `json:"answer"`
	Audit      oracle.Audit  `json:"audit"`
}

func (s Service) Ask(ctx context.Context, req AskRequest) (AskResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return AskResult{}, fmt.Errorf("query is required")
	}
	if req.Days < 0 {
		return AskResult{}, fmt.Errorf("days must not be negative, got %d", req.Days)
	}
	days := max(req.Days, 1)
	sim, _, err := s.Resolve(Request{Preset: req.Preset, Seed: req.Seed, DurationDays: &days, Generator: req.Generator})
	if err != nil {
		return AskResult{}, err
	}
	now := s.now()
	run, err := simulation.New(sim, simulation.Options{Logger: s.logger(), Start: now})
	if err != nil {
		return AskResult{}, err
	}
	for i := 0; i < req.Days; i++ {
		if err := ctx.Err(); err != nil {
			return AskResult{}, err
		}
		run.Step()
	}
	b := run.Board()
	ans := oracle.Ask(b, req.Query)
	audit := oracle.NewVerifier().Check(b, run.Day(), now.Add(time.Duration(run.Day())*24*time.Hour), req.Query, ans)
	return AskResult{
		Seed:       run.Seed(),
		Day:        run.Day(),
		TotalCards: len(b.Cards),
		Answer:     ans,
		Audit:      audit,
	}, nil
}
