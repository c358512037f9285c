// Package janitor is the grounded bot under test. Each day it queries the
// oracle, audits every answer and tidies over-labeled cards.
package janitor

import (
	"strings"

	"fizzysim/internal/agents"
	"fizzysim/internal/chance"
	"fizzysim/internal/domain"
	"fizzysim/internal/oracle"
)

const ID = "ai_janitor"

const (
	CleanupLabel     = "needs-review"
	CleanupBatch     = 10
	AlarmLabelLimit  = 3
	cleanupReasonMsg = "Too many urgent labels detected"
)

// Queries are asked in this order every day.
var Queries = []string{
	"show me all real blockers",
	"status by column",
	"who owns what",
}

var alarmMarkers = []string{"urgent", "p0", "critical"}

type Metrics struct {
	QueryCount          int     `json:"query_count"`
	SuccessfulResponses int     `json:"successful_responses"`
	FabricationCount    int     `json:"fabrication_count"`
	FallbackCount       int     `json:"graceful_fallback_count"`
	FabricationRate     float64 `json:"fabrication_rate"`
	SuccessRate         float64 `json:"success_rate"`
}

// Bot holds the verifier and the running counters.
type Bot struct {
	Verifier  *oracle.Verifier
	queries   int
	successes int
}

func New() *Bot { return &Bot{Verifier: oracle.NewVerifier()} }

func alarmCount(c *domain.Card) int {
	n := 0
	for _, l := range c.Labels {
		ll := strings.ToLower(l)
		for _, m := range alarmMarkers {
			if strings.Contains(ll, m) {
				n++
				break
			}
		}
	}
	return n
}

// OverLabeled reports whether a card carries more than AlarmLabelLimit
// alarm labels.
func OverLabeled(c *domain.Card) bool { return alarmCount(c) > AlarmLabelLimit }

// Act runs the janitor's turn. It uses the same Turn as the persona agents.
func (j *Bot) Act(t agents.Turn) []domain.PersonaAction {
	b := t.Board()
	var out []domain.PersonaAction

	for _, q := range Queries {
		j.queries++
		ans := oracle.Ask(b, q)
		audit := j.Verifier.Check(b, t.Day, t.Now, q, ans)
		if !ans.Success || audit.Outcome == oracle.OutcomeFabrication {
			continue
		}
		j.successes++
		details := map[string]any{
			"query":      q,
			"category":   ans.Category.String(),
			"confidence": ans.Confidence,
			"outcome":    string(audit.Outcome),
		}
		if ans.FallbackMessage != "" {
			details["fallback_message"] = ans.FallbackMessage
		}
		out = append(out, action(t, "query_"+ans.Category.String(), details))
	}

	out = append(out, action(t, "summarize_cycle", map[string]any{"summary": oracle.SummarizeCycle(b)}))

	noisy := b.Filter(OverLabeled)
	if len(noisy) > 0 {
		picked := chance.Sample(t.Rand, noisy, min(CleanupBatch, len(noisy)))
		ids := make([]string, len(picked))
		for i, c := range picked {
			ids[i] = c.ID
		}
		applied := t.Engine.BulkUpdate(ids, domain.CardPatch{Labels: []string{CleanupLabel}}, ID)
		out = append(out, action(t, "cleanup_labels", map[string]any{
			"card_ids": ids,
			"applied":  applied,
			"reason":   cleanupReasonMsg,
		}))
	}
	return out
}

func action(t agents.Turn, kind string, details map[string]any) domain.PersonaAction {
	return domain.PersonaAction{Type: kind, Persona: ID, Timestamp: t.Now, Details: details}
}

func (j *Bot) Metrics() Metrics {
	m := Metrics{
		QueryCount:          j.queries,
		SuccessfulResponses: j.successes,
		FabricationCount:    j.Verifier.Fabrications(),
		FallbackCount:       j.Verifier.Fallbacks(),
	}
	if m.QueryCount > 0 {
		m.FabricationRate = float64(m.FabricationCount) / float64(m.QueryCount)
		m.SuccessRate = float64(m.SuccessfulResponses) / float64(m.QueryCount)
	}
	return m
}

// Survived reports whether no fabrication was ever recorded.
func (j *Bot) Survived() bool { return j.Verifier.Fabrications() == 0 }
