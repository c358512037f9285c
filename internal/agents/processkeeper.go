package agents

import (
	"fizzysim/internal/chance"
	"fizzysim/internal/domain"
)

var essayOpeners = []string{
	"Per our last retro, ",
	"As we discussed in the all-hands, ",
	"Following up on our Slack conversation, ",
	"I wanted to loop back on this - ",
	"Just circling back on this item - ",
	"As per my previous email, ",
	"To build on what we discussed offline, ",
	"I've been thinking about this and wanted to share some thoughts: ",
	"Revisiting this based on stakeholder feedback, ",
}

var essayBodies = []string{
	"I think we should consider the broader implications of this work item in the context of our quarterly objectives and key results. " +
		"While I appreciate the urgency expressed by some team members, it's important that we maintain alignment with our strategic priorities. " +
		"I'd recommend we schedule a sync to discuss the trade-offs involved.",
	"I've noticed this has been sitting in the backlog for some time now. While I understand everyone is busy, " +
		"it might be worth revisiting our prioritization framework to ensure we're tackling the most impactful items first. " +
		"Perhaps we could dedicate some time in our next planning session to discuss?",
	"Looking at this from a customer perspective, I wonder if we're fully capturing the problem statement here. " +
		"The acceptance criteria seem a bit vague, and I'd hate for us to spend engineering cycles on something that doesn't fully address the user need. " +
		"Could we perhaps get some additional context from the design team?",
	"I want to be respectful of everyone's time, but I'm concerned about the scope creep I'm seeing on this ticket. " +
		"What started as a small enhancement seems to have grown significantly. " +
		"Maybe we should break this down into smaller, more manageable chunks?",
	"While I appreciate the enthusiasm to get this shipped, I think we might be skipping some important steps in our process. " +
		"Our definition of done clearly states that we need design review and QA sign-off before moving to done. " +
		"Let's make sure we're following our agreed-upon workflow.",
	"I've been reflecting on our velocity trends, and I'm wondering if our estimation practices need some refinement. " +
		"This particular item has been through several sprints now, which suggests we might have underestimated the complexity. " +
		"Perhaps a technical spike would help us better understand the work involved?",
}

var essayClosers = []string{
	" Thoughts? Let's discuss in our next 1:1.",
	" I'm happy to discuss further if anyone has questions.",
	" Would love to hear other perspectives on this.",
	" Let me know if you'd like to schedule a sync.",
	" I'll leave this here for the team to consider.",
	" Feel free to reach out if you want to chat about this.",
	" No pressure to respond immediately - just wanted to share my thoughts.",
	" I've also added this to our retro board for discussion.",
}

var shortRemarks = []string{
	"Per our last retro...",
	"Interesting. Let's discuss.",
	"I have some thoughts on this. Let's sync.",
	"Worth considering the customer impact here.",
	"Let's make sure we're aligned on priorities.",
	"Following our process is important.",
	"Have we considered all the edge cases?",
	"Just want to make sure we're on the same page.",
	"Let's not rush this.",
	"Quality over speed, team.",
}

type ProcessKeeperState struct {
	Essays int `json:"essays"`
}

// ProcessKeeper only ever comments. It has no code path that moves a card.
type ProcessKeeper struct {
	Activation float64
}

func NewProcessKeeper() ProcessKeeper { return ProcessKeeper{Activation: 0.75} }

func (ProcessKeeper) ID() string                  { return IDProcessKeeper }
func (ProcessKeeper) Name() string                { return "Passive-Aggressive PO Alex" }
func (ProcessKeeper) Initial() ProcessKeeperState { return ProcessKeeperState{} }

func essay(src chance.Source) string {
	return chance.MustChoice(src, essayOpeners) + chance.MustChoice(src, essayBodies) + chance.MustChoice(src, essayClosers)
}

func (a ProcessKeeper) Act(t Turn, s ProcessKeeperState) ([]domain.PersonaAction, ProcessKeeperState) {
	if !chance.Chance(t.Rand, a.Activation) {
		return nil, s
	}
	e := t.Engine
	active := t.Board().Filter(open)
	var out []domain.PersonaAction

	for _, c := range chance.Sample(t.Rand, active, chance.IntBetween(t.Rand, 2, 6)) {
		text := essay(t.Rand)
		if _, err := e.AddComment(c.ID, a.ID(), a.Name(), text); err != nil {
			continue
		}
		s.Essays++
		out = append(out, record(t, a.ID(), "add_comment", c.ID, map[string]any{"kind": "essay", "length": len(text)}))
	}
	for _, c := range chance.Sample(t.Rand, active, chance.IntBetween(t.Rand, 5, 15)) {
		text := chance.MustChoice(t.Rand, shortRemarks)
		if _, err := e.AddComment(c.ID, a.ID(), a.Name(), text); err != nil {
			continue
		}
		out = append(out, record(t, a.ID(), "add_comment", c.ID, map[string]any{"kind": "short", "comment": text}))
	}
	return out, s
}
