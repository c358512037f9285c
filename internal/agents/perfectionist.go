package agents

import (
	"strconv"
	"strings"
	"time"

	"fizzysim/internal/chance"
	"fizzysim/internal/domain"
)

var perfectionistComments = []string{
	"Still waiting on design…",
	"Still waiting on design feedback",
	"Still waiting on design review",
	"@maya when can we expect the mockups?",
	"This has been blocked for {days} days now",
	"Moving to Stuck until we get clarity on requirements",
	"I've asked about this 3 times already",
	"Can someone please unblock this?",
	"We need to address the blockers before we can proceed",
	"This is holding up the entire sprint",
	"Bumping this - still no response",
	"Following up again on this blocker",
	"This needs attention ASAP",
	"Waiting on API team to provide endpoint",
	"Blocked by security review",
	"Can't proceed without database schema finalized",
}

type PerfectionistState struct {
	ActiveDays int `json:"active_days"`
}

// Perfectionist parks in-flight work in Stuck, chases it in comments, sets
// due dates and wires up blocker links.
type Perfectionist struct {
	Activation float64
}

func NewPerfectionist() Perfectionist { return Perfectionist{Activation: 0.95} }

func (Perfectionist) ID() string                  { return IDPerfectionist }
func (Perfectionist) Name() string                { return "Overworked Sarah" }
func (Perfectionist) Initial() PerfectionistState { return PerfectionistState{} }

func (p Perfectionist) Act(t Turn, s PerfectionistState) ([]domain.PersonaAction, PerfectionistState) {
	if !chance.Chance(t.Rand, p.Activation) {
		return nil, s
	}
	e, b := t.Engine, t.Board()
	var out []domain.PersonaAction

	inFlight := b.Filter(hasStatus(domain.StatusInProgress, domain.StatusReview))
	for _, c := range chance.Sample(t.Rand, inFlight, chance.IntBetween(t.Rand, 3, 8)) {
		if c.Status == domain.StatusStuck {
			continue
		}
		if err := e.MoveCard(c.ID, domain.StatusStuck, p.ID()); err != nil {
			continue
		}
		out = append(out, record(t, p.ID(), "move_card", c.ID, map[string]any{"to": string(domain.StatusStuck)}))
	}

	targets := b.Filter(hasStatus(domain.StatusStuck, domain.StatusInProgress))
	for _, c := range chance.Sample(t.Rand, targets, chance.IntBetween(t.Rand, 5, 15)) {
		text := chance.MustChoice(t.Rand, perfectionistComments)
		text = strings.Replace(text, "{days}", strconv.Itoa(chance.IntBetween(t.Rand, 3, 45)), 1)
		if _, err := e.AddComment(c.ID, p.ID(), p.Name(), text); err != nil {
			continue
		}
		out = append(out, record(t, p.ID(), "add_comment", c.ID, map[string]any{"comment": text}))
	}

	undated := b.Filter(func(c *domain.Card) bool {
		return c.DueDate == nil && (c.Status == domain.StatusInProgress || c.Status == domain.StatusTodo)
	})
	for _, c := range chance.Sample(t.Rand, undated, chance.IntBetween(t.Rand, 2, 5)) {
		due := t.Now.Add(time.Duration(chance.IntBetween(t.Rand, 3, 14)) * 24 * time.Hour)
		if err := e.SetDueDate(c.ID, due, p.ID()); err != nil {
			continue
		}
		out = append(out, record(t, p.ID(), "set_due_date", c.ID, map[string]any{"due_date": due.Format(time.RFC3339)}))
	}

	links := chance.IntBetween(t.Rand, 1, 4)
	for i := 0; i < links; i++ {
		blocked, ok := chance.Choice(t.Rand, b.Filter(hasStatus(domain.StatusStuck)))
		if !ok {
			break
		}
		blocking, ok := chance.Choice(t.Rand, b.Filter(func(c *domain.Card) bool { return c.ID != blocked.ID }))
		if !ok {
			break
		}
		if _, err := e.CreateBlockerLink(blocked.ID, blocking.ID, p.ID(), "Waiting on this to complete"); err != nil {
			continue
		}
		out = append(out, record(t, p.ID(), "create_blocker_link", blocked.ID, map[string]any{
			"blocked_card_id":  blocked.ID,
			"blocking_card_id": blocking.ID,
		}))
	}

	s.ActiveDays++
	return out, s
}
