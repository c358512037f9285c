package agents

import (
	"strings"

	"fizzysim/internal/chance"
	"fizzysim/internal/domain"
)

const (
	// GhostFloor is the number of quiet days before the ghost may appear.
	GhostFloor = 15
	// GhostGate is the per-day appearance chance once past the floor.
	GhostGate = 0.15
)

var crypticComments = []string{
	"Looks good to me", "LGTM", "👍", "Approved from design", "Ship it",
	"Design is done on our end", "This looks fine", "Approved", "Good to go",
	"Signed off", "Design complete", "✓", "All good here",
	"No concerns from design", "Works for me",
}

var designFiles = []string{
	"design-v17-final-REALLY.zip",
	"mockups-v23-FINAL-final.zip",
	"designs-updated-v2-LATEST.zip",
	"wireframes-v12-approved.zip",
	"UI-specs-final-v8.zip",
	"designs-FINAL-use-this-one.zip",
	"mockups-v47-ACTUALLY-final.zip",
	"design-assets-v6-DO-NOT-USE-OLD-VERSION.zip",
	"final-designs-v19.zip",
	"UI-v33-reviewed.zip",
	"designs-latest-v41-fixed.zip",
	"mockups-FINAL-v28-reviewed-approved.zip",
	"design-v55-THIS-ONE.zip",
}

type GhostState struct {
	DaysSinceAppearance int `json:"days_since_appearance"`
	Appearances         int `json:"appearances"`
	DesignVersions      int `json:"design_versions"`
}

// Ghost stays dormant for weeks, then drops approvals and design files in a
// single burst.
type Ghost struct {
	Floor int
	Gate  float64
}

func NewGhost() Ghost { return Ghost{Floor: GhostFloor, Gate: GhostGate} }

func (Ghost) ID() string          { return IDGhost }
func (Ghost) Name() string        { return "Ghost Designer Maya" }
func (Ghost) Initial() GhostState { return GhostState{} }

func waitingOnDesign(c *domain.Card) bool {
	if c.Status == domain.StatusStuck {
		return true
	}
	for _, cm := range c.Comments {
		lc := strings.ToLower(cm.Content)
		if strings.Contains(lc, "design") || strings.Contains(lc, "maya") || strings.Contains(lc, "mockup") {
			return true
		}
	}
	return false
}

func (g Ghost) Act(t Turn, s GhostState) ([]domain.PersonaAction, GhostState) {
	s.DaysSinceAppearance++
	if s.DaysSinceAppearance < g.Floor || t.Rand.Float64() > g.Gate {
		return nil, s
	}
	s.DaysSinceAppearance = 0
	s.Appearances++

	e, b := t.Engine, t.Board()
	all := b.List()
	pool := b.Filter(waitingOnDesign)
	if len(pool) == 0 {
		pool = all
	}
	var out []domain.PersonaAction

	for _, c := range chance.Sample(t.Rand, pool, chance.IntBetween(t.Rand, 3, 12)) {
		text := chance.MustChoice(t.Rand, crypticComments)
		if _, err := e.AddComment(c.ID, g.ID(), g.Name(), text); err != nil {
			continue
		}
		out = append(out, record(t, g.ID(), "add_comment", c.ID, map[string]any{"comment": text}))
	}
	for _, c := range chance.Sample(t.Rand, all, chance.IntBetween(t.Rand, 2, 8)) {
		name := chance.MustChoice(t.Rand, designFiles)
		if _, err := e.UploadAttachment(c.ID, name, g.ID()); err != nil {
			continue
		}
		s.DesignVersions++
		out = append(out, record(t, g.ID(), "upload_attachment", c.ID, map[string]any{"filename": name}))
	}
	return out, s
}
