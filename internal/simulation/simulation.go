// Package simulation drives a board through simulated days: personas act,
// the janitor queries and audits, the board drifts, metrics are captured.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"fizzysim/internal/agents"
	"fizzysim/internal/chance"
	"fizzysim/internal/domain"
	"fizzysim/internal/engine"
	"fizzysim/internal/generator"
	"fizzysim/internal/janitor"
	"fizzysim/internal/oracle"
)

var ErrInvalidConfig = errors.New("invalid simulation config")

type Config struct {
	DurationDays  int                  `json:"duration_days"`
	Generator     *generator.Overrides `json:"generator,omitempty"`
	EnabledAgents []string             `json:"enabled_agents,omitempty"`
	Verbose       bool                 `json:"verbose,omitempty"`
	// Seed fixes every random draw; 0 derives one from the clock.
	Seed uint64 `json:"seed,omitempty"`
}

type Options struct {
	Logger *slog.Logger
	// Start anchors generation and the simulated clock. Zero means now.
	Start time.Time
}

type Phase string

const (
	PhaseInitial  Phase = "initial"
	PhaseDay      Phase = "day"
	PhaseComplete Phase = "complete"
)

type DailyMetrics struct {
	Day                 int                   `json:"day"`
	TotalCards          int                   `json:"total_cards"`
	CardsByStatus       map[domain.Status]int `json:"cards_by_status"`
	TotalComments       int                   `json:"total_comments"`
	CardsReassigned     int                   `json:"cards_reassigned"`
	BlockerLinks        int                   `json:"blocker_links"`
	Fabrications        int                   `json:"fabrications"`
	GracefulFallbacks   int                   `json:"graceful_fallbacks"`
	Queries             int                   `json:"queries"`
	SuccessfulResponses int                   `json:"successful_responses"`
}

type JanitorMetrics struct {
	janitor.Metrics
	SurvivalDays        int  `json:"survival_days"`
	Survived            bool `json:"survived"`
	FirstFabricationDay int  `json:"first_fabrication_day,omitempty"`
}

type FinalState struct {
	CardsByStatus    map[domain.Status]int `json:"cards_by_status"`
	TotalComments    int                   `json:"total_comments"`
	TotalBlockers    int                   `json:"total_blockers"`
	TotalAttachments int                   `json:"total_attachments"`
}

type Result struct {
	Seed           uint64                            `json:"seed"`
	DurationDays   int                               `json:"duration_days"`
	TotalCards     int                               `json:"total_cards"`
	DailyMetrics   []DailyMetrics                    `json:"daily_metrics"`
	AgentActions   map[string][]domain.PersonaAction `json:"agent_actions"`
	AgentStates    map[string]any                    `json:"agent_states"`
	JanitorMetrics JanitorMetrics                    `json:"janitor_metrics"`
	Audits         []oracle.Audit                    `json:"audits"`
	FinalState     FinalState                        `json:"final_board_state"`
}

// Simulator owns the board and every agent state for one run.
type Simulator struct {
	cfg      Config
	log      *slog.Logger
	rng      chance.Source
	start    time.Time
	engine   *engine.Engine
	agents   []*agents.Entry
	janitor  *janitor.Bot
	phase    Phase
	day      int
	daily    []DailyMetrics
	actions  map[string][]domain.PersonaAction
	firstFab int
}

// Validate checks the run shape and the resolved generator config.
func (c Config) Validate() error {
	if c.DurationDays <= 0 {
		return fmt.Errorf("%w: duration_days must be positive, got %d", ErrInvalidConfig, c.DurationDays)
	}
	if _, err := agents.Defaults(c.EnabledAgents); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c.GeneratorConfig().Validate()
}

// GeneratorConfig resolves the overrides against generator.DefaultConfig.
func (c Config) GeneratorConfig() generator.Config {
	if c.Generator == nil {
		return generator.DefaultConfig()
	}
	return c.Generator.Apply(generator.DefaultConfig())
}

// New validates cfg, generates the board and registers the agents.
func New(cfg Config, opts Options) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}
	start = start.UTC()

	rng := chance.New(cfg.Seed)
	board, err := generator.Generate(cfg.GeneratorConfig(), rng, start)
	if err != nil {
		return nil, err
	}
	entries, err := agents.Defaults(cfg.EnabledAgents)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := &Simulator{
		cfg:     cfg,
		log:     log,
		rng:     rng,
		start:   start,
		engine:  engine.New(board),
		agents:  entries,
		janitor: janitor.New(),
		phase:   PhaseInitial,
		actions: map[string][]domain.PersonaAction{},
	}
	s.engine.Now = s.clock
	for _, a := range entries {
		s.actions[a.ID] = []domain.PersonaAction{}
	}
	s.actions[janitor.ID] = []domain.PersonaAction{}
	return s, nil
}

func (s *Simulator) clock() time.Time {
	return s.start.Add(time.Duration(s.day) * 24 * time.Hour)
}

func (s *Simulator) Phase() Phase         { return s.phase }
func (s *Simulator) Day() int             { return s.day }
func (s *Simulator) Board() *domain.Board { return s.engine.Board }
func (s *Simulator) Seed() uint64         { return s.cfg.Seed }

func (s *Simulator) progress(msg string, args ...any) {
	if s.cfg.Verbose {
		s.log.Info(msg, args...)
		return
	}
	s.log.Debug(msg, args...)
}

// Step runs one simulated day. It returns false once the run is complete.
func (s *Simulator) Step() bool {
	if s.phase == PhaseComplete {
		return false
	}
	if s.phase == PhaseInitial {
		names := make([]string, len(s.agents))
		for i, a := range s.agents {
			names[i] = a.Name
		}
		s.progress("simulation starting", "seed", s.cfg.Seed, "days", s.cfg.DurationDays, "cards", len(s.Board().Cards), "agents", names)
		s.phase = PhaseDay
	}

	s.day++
	b := s.Board()
	b.CurrentDay = s.day
	t := agents.Turn{Engine: s.engine, Rand: s.rng, Day: s.day, Now: s.clock()}

	reassigned := 0
	for _, a := range s.agents {
		acts := a.Act(t)
		for _, act := range acts {
			if act.Type == "assign_to" {
				reassigned++
			}
		}
		s.actions[a.ID] = append(s.actions[a.ID], acts...)
	}
	s.actions[janitor.ID] = append(s.actions[janitor.ID], s.janitor.Act(t)...)

	if s.firstFab == 0 {
		if a, ok := s.janitor.Verifier.FirstFabrication(); ok {
			s.firstFab = a.Day
			s.log.Warn("janitor fabricated an answer", "day", a.Day, "query", a.Query, "detail", a.Detail)
		}
	}

	generator.Advance(s.engine, s.rng, 1)
	// Advance bumps the counter; the scheduler owns it.
	b.CurrentDay = s.day

	s.daily = append(s.daily, s.snapshot(reassigned))
	if s.day%10 == 0 {
		s.progress("day complete", "day", s.day)
	}
	if s.day >= s.cfg.DurationDays {
		s.phase = PhaseComplete
		return false
	}
	return true
}

func (s *Simulator) snapshot(reassigned int) DailyMetrics {
	b := s.Board()
	m := s.janitor.Metrics()
	d := DailyMetrics{
		Day:                 s.day,
		TotalCards:          len(b.Cards),
		CardsByStatus:       b.CountByStatus(),
		CardsReassigned:     reassigned,
		Fabrications:        m.FabricationCount,
		GracefulFallbacks:   m.FallbackCount,
		Queries:             m.QueryCount,
		SuccessfulResponses: m.SuccessfulResponses,
	}
	for _, c := range b.Cards {
		d.TotalComments += len(c.Comments)
		d.BlockerLinks += len(c.BlockedBy)
	}
	return d
}

// Result assembles the aggregate. It is valid once the phase is complete.
func (s *Simulator) Result() Result {
	b := s.Board()
	survival := s.cfg.DurationDays
	if s.firstFab > 0 {
		survival = s.firstFab - 1
	}
	states := map[string]any{}
	for _, a := range s.agents {
		states[a.ID] = a.State()
	}
	r := Result{
		Seed:         s.cfg.Seed,
		DurationDays: s.cfg.DurationDays,
		TotalCards:   len(b.Cards),
		DailyMetrics: s.daily,
		AgentActions: s.actions,
		AgentStates:  states,
		JanitorMetrics: JanitorMetrics{
			Metrics:             s.janitor.Metrics(),
			SurvivalDays:        survival,
			Survived:            s.janitor.Survived(),
			FirstFabricationDay: s.firstFab,
		},
		Audits: s.janitor.Verifier.Audits(),
		FinalState: FinalState{
			CardsByStatus: b.CountByStatus(),
		},
	}
	for _, c := range b.Cards {
		r.FinalState.TotalComments += len(c.Comments)
		r.FinalState.TotalBlockers += len(c.BlockedBy)
		r.FinalState.TotalAttachments += len(c.Attachments)
	}
	return r
}

// Run executes a complete simulation.
func Run(cfg Config, opts Options) (Result, error) {
	return RunContext(context.Background(), cfg, opts)
}

// RunContext is Run with cancellation checked between simulated days.
func RunContext(ctx context.Context, cfg Config, opts Options) (Result, error) {
	s, err := New(cfg, opts)
	if err != nil {
		return Result{}, err
	}
	for s.Step() {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("simulation stopped on day %d: %w", s.Day(), err)
		}
	}
	r := s.Result()
	s.progress("simulation complete",
		"days", r.DurationDays,
		"cards", r.TotalCards,
		"queries", r.JanitorMetrics.QueryCount,
		"fabrications", r.JanitorMetrics.FabricationCount,
		"fallbacks", r.JanitorMetrics.FallbackCount,
		"survived", r.JanitorMetrics.Survived,
	)
	return r, nil
}
