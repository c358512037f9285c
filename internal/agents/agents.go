// Package agents holds the persona policies that churn the board one
// simulated day at a time. Every policy is a pure step function over its own
// typed state; the scheduler owns the state values and threads them through.
package agents

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"fizzysim/internal/chance"
	"fizzysim/internal/domain"
	"fizzysim/internal/engine"
)

// Agent identifiers in fixed registration order.
const (
	IDPerfectionist = "sarah"
	IDEscalator     = "greg"
	IDProcessKeeper = "alex"
	IDGhost         = "maya"
	IDFirefighter   = "chris"
)

// IDs lists every registered agent in the order the scheduler invokes them.
var IDs = []string{IDPerfectionist, IDEscalator, IDProcessKeeper, IDGhost, IDFirefighter}

var ErrUnknownAgent = errors.New("unknown agent")

// Turn is everything a policy may touch during its turn. Engine is the only
// way to mutate the board.
type Turn struct {
	Engine *engine.Engine
	Rand   chance.Source
	Day    int
	Now    time.Time
}

func (t Turn) Board() *domain.Board { return t.Engine.Board }

// Policy is one persona. Act returns the day's actions and the next state.
type Policy[S any] interface {
	ID() string
	Name() string
	Initial() S
	Act(t Turn, s S) ([]domain.PersonaAction, S)
}

// Entry is a registered policy with its state held alongside it, erased so
// the scheduler can keep heterogeneous agents in one slice.
type Entry struct {
	ID    string
	Name  string
	state any
	step  func(Turn, any) ([]domain.PersonaAction, any)
}

// Register wraps a policy and seeds it with its initial state.
func Register[S any](p Policy[S]) *Entry {
	return &Entry{
		ID:    p.ID(),
		Name:  p.Name(),
		state: p.Initial(),
		step: func(t Turn, s any) ([]domain.PersonaAction, any) {
			return p.Act(t, s.(S))
		},
	}
}

// Act runs one turn and stores the returned state.
func (e *Entry) Act(t Turn) []domain.PersonaAction {
	actions, next := e.step(t, e.state)
	e.state = next
	return actions
}

// State returns the current state value, e.g. FirefighterState.
func (e *Entry) State() any { return e.state }

// Defaults builds the entries for ids with default parameters, in
// registration order. An empty ids enables every agent.
func Defaults(ids []string) ([]*Entry, error) {
	if len(ids) == 0 {
		ids = IDs
	}
	for _, id := range ids {
		if !slices.Contains(IDs, id) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, id)
		}
	}
	var out []*Entry
	for _, id := range IDs {
		if !slices.Contains(ids, id) {
			continue
		}
		switch id {
		case IDPerfectionist:
			out = append(out, Register[PerfectionistState](NewPerfectionist()))
		case IDEscalator:
			out = append(out, Register[EscalatorState](NewEscalator()))
		case IDProcessKeeper:
			out = append(out, Register[ProcessKeeperState](NewProcessKeeper()))
		case IDGhost:
			out = append(out, Register[GhostState](NewGhost()))
		case IDFirefighter:
			out = append(out, Register[FirefighterState](NewFirefighter()))
		}
	}
	return out, nil
}

func record(t Turn, persona, kind, cardID string, details map[string]any) domain.PersonaAction {
	if details == nil {
		details = map[string]any{}
	}
	if cardID != "" {
		details["card_id"] = cardID
	}
	return domain.PersonaAction{
		Type:      kind,
		Persona:   persona,
		Timestamp: t.Now,
		Details:   details,
		CardID:    cardID,
	}
}

func hasStatus(statuses ...domain.Status) func(*domain.Card) bool {
	return func(c *domain.Card) bool { return slices.Contains(statuses, c.Status) }
}

func open(c *domain.Card) bool { return !c.Status.Terminal() }
