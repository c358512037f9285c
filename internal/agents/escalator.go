package agents

import (
	"strings"

	"fizzysim/internal/chance"
	"fizzysim/internal/domain"
)

var urgentLabels = []string{
	"urgent", "P0!!!", "CRITICAL", "HOT", "ASAP", "BLOCKING", "FIRE",
	"DROP EVERYTHING", "PROD ISSUE", "CUSTOMER ESCALATION",
}

var renamePrefixes = []string{
	"[URGENT] ", "[P0] ", "[CRITICAL] ", "[ASAP] ", "🔥 ", "⚠️ ", "[HOT] ", "[NEEDS ATTENTION] ",
}

type EscalatorState struct {
	Reassignments int `json:"reassignments"`
}

// Escalator treats everything as urgent: alarm labels, reassignments,
// prefixed titles and P0 bumps.
type Escalator struct {
	Activation float64
}

func NewEscalator() Escalator { return Escalator{Activation: 0.85} }

func (Escalator) ID() string              { return IDEscalator }
func (Escalator) Name() string            { return "Chaos Monkey Greg" }
func (Escalator) Initial() EscalatorState { return EscalatorState{} }

func alreadyMarked(title string) bool {
	return strings.HasPrefix(title, "[") || strings.HasPrefix(title, "🔥") || strings.HasPrefix(title, "⚠️")
}

func (g Escalator) Act(t Turn, s EscalatorState) ([]domain.PersonaAction, EscalatorState) {
	if !chance.Chance(t.Rand, g.Activation) {
		return nil, s
	}
	e, b := t.Engine, t.Board()
	var out []domain.PersonaAction

	for _, c := range chance.Sample(t.Rand, b.List(), chance.IntBetween(t.Rand, 5, 20)) {
		label := chance.MustChoice(t.Rand, urgentLabels)
		if err := e.AddLabel(c.ID, label, g.ID()); err != nil {
			continue
		}
		out = append(out, record(t, g.ID(), "add_label", c.ID, map[string]any{"label": label}))
	}

	if len(b.TeamMembers) > 0 {
		for _, c := range chance.Sample(t.Rand, b.Filter(open), chance.IntBetween(t.Rand, 8, 25)) {
			assignee := chance.MustChoice(t.Rand, b.TeamMembers)
			if err := e.AssignTo(c.ID, assignee, g.ID()); err != nil {
				continue
			}
			s.Reassignments++
			out = append(out, record(t, g.ID(), "assign_to", c.ID, map[string]any{"assignee": assignee}))
		}
	}

	unmarked := b.Filter(func(c *domain.Card) bool { return !alreadyMarked(c.Title) })
	for _, c := range chance.Sample(t.Rand, unmarked, chance.IntBetween(t.Rand, 3, 10)) {
		title := chance.MustChoice(t.Rand, renamePrefixes) + c.Title
		if err := e.RenameCard(c.ID, title, g.ID()); err != nil {
			continue
		}
		out = append(out, record(t, g.ID(), "rename_card", c.ID, map[string]any{"new_title": title}))
	}

	notP0 := b.Filter(func(c *domain.Card) bool { return c.Priority != domain.PriorityP0 })
	for _, c := range chance.Sample(t.Rand, notP0, chance.IntBetween(t.Rand, 3, 8)) {
		if err := e.SetPriority(c.ID, domain.PriorityP0, g.ID()); err != nil {
			continue
		}
		out = append(out, record(t, g.ID(), "set_priority", c.ID, map[string]any{"priority": string(domain.PriorityP0)}))
	}
	return out, s
}
