package agents

import (
	"strings"

	"fizzysim/internal/chance"
	"fizzysim/internal/domain"
)

const (
	RagePingThreshold = 47
	RageIdleThreshold = 30
	HotfixComment     = "Fixed. Deployed hotfix."
)

var fireKeywords = []string{
	"PROD DOWN", "prod down", "production down", "PRODUCTION DOWN",
	"outage", "OUTAGE", "incident", "INCIDENT", "critical", "CRITICAL",
	"on fire", "ON FIRE", "emergency", "EMERGENCY", "🔥", "P0", "SEV1", "SEV-1",
}

var pingPatterns = []string{
	"@chris", "@Chris", "chris pls", "Chris pls", "@chris pls",
	"chris please", "chris help", "@chris urgent",
}

var rageRemarks = []string{
	"Done.", "Fixed.", "Closed.", "Handled.", "This is done now.",
	"Finally done.", "Moving on.", "Next.", "Resolved.",
	"Just deployed the fix.", "Should be working now.", "Try again.", "Check now.",
}

// FirefighterState is the rage machine. Pings is recomputed from every
// comment on the board each turn; IdleDays counts turns since the last rage.
type FirefighterState struct {
	Pings    int  `json:"pings"`
	IdleDays int  `json:"idle_days"`
	Raging   bool `json:"raging"`
	Rages    int  `json:"rages"`
}

// Firefighter ignores the board except for incidents, until the pings or
// the idle streak push it into a rage-close burst.
type Firefighter struct {
	PingThreshold int
	IdleThreshold int
}

func NewFirefighter() Firefighter {
	return Firefighter{PingThreshold: RagePingThreshold, IdleThreshold: RageIdleThreshold}
}

func (Firefighter) ID() string                { return IDFirefighter }
func (Firefighter) Name() string              { return "Burned-Out Ops Chris" }
func (Firefighter) Initial() FirefighterState { return FirefighterState{} }

// CountPings counts one ping per matching pattern per comment.
func CountPings(b *domain.Board) int {
	n := 0
	for _, c := range b.List() {
		for _, cm := range c.Comments {
			for _, p := range pingPatterns {
				if strings.Contains(cm.Content, p) {
					n++
				}
			}
		}
	}
	return n
}

// OnFire reports whether a comment mentions an incident keyword (case
// sensitive) or a label contains one (case insensitive).
func OnFire(c *domain.Card) bool {
	for _, cm := range c.Comments {
		for _, k := range fireKeywords {
			if strings.Contains(cm.Content, k) {
				return true
			}
		}
	}
	for _, l := range c.Labels {
		ll := strings.ToLower(l)
		for _, k := range fireKeywords {
			if strings.Contains(ll, strings.ToLower(k)) {
				return true
			}
		}
	}
	return false
}

func (f Firefighter) Act(t Turn, s FirefighterState) ([]domain.PersonaAction, FirefighterState) {
	e, b := t.Engine, t.Board()
	s.IdleDays++
	s.Pings = CountPings(b)

	fires := b.Filter(func(c *domain.Card) bool { return open(c) && OnFire(c) })
	if s.Pings >= f.PingThreshold || s.IdleDays >= f.IdleThreshold {
		s.Raging = true
	}
	if len(fires) == 0 && !s.Raging {
		return nil, s
	}

	var out []domain.PersonaAction
	for _, c := range fires {
		if err := e.MoveCard(c.ID, domain.StatusDone, f.ID()); err != nil {
			continue
		}
		if _, err := e.AddComment(c.ID, f.ID(), f.Name(), HotfixComment); err != nil {
			continue
		}
		out = append(out, record(t, f.ID(), "emergency_fix", c.ID, nil))
	}

	if s.Raging {
		closable := b.Filter(open)
		for _, c := range chance.Sample(t.Rand, closable, chance.IntBetween(t.Rand, 30, 40)) {
			if err := e.MoveCard(c.ID, domain.StatusDone, f.ID()); err != nil {
				continue
			}
			remark := chance.MustChoice(t.Rand, rageRemarks)
			if _, err := e.AddComment(c.ID, f.ID(), f.Name(), remark); err != nil {
				continue
			}
			out = append(out, record(t, f.ID(), "rage_close", c.ID, map[string]any{"comment": remark}))
		}
		s.Raging = false
		s.IdleDays = 0
		s.Pings = 0
		s.Rages++
	}
	return out, s
}
