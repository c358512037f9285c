package oracle

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"fizzysim/internal/domain"
)

type Outcome string

const (
	OutcomeGrounded    Outcome = "grounded"
	OutcomeFallback    Outcome = "graceful_fallback"
	OutcomeFabrication Outcome = "fabrication"
)

// Audit is one classified answer. Entries are values and are never edited
// after they are recorded.
type Audit struct {
	Seq        int       `json:"seq"`
	Day        int       `json:"day"`
	At         time.Time `json:"at"`
	Query      string    `json:"query"`
	Category   Category  `json:"category"`
	Outcome    Outcome   `json:"outcome"`
	Confidence float64   `json:"confidence"`
	Detail     string    `json:"detail,omitempty"`
}

// Verifier re-derives ground truth from the board and classifies answers.
type Verifier struct {
	audits       []Audit
	fabrications int
	fallbacks    int
}

func NewVerifier() *Verifier { return &Verifier{} }

// Check classifies ans for query against b and records the result. Answers
// carrying a fallback message are never checked for fabrication.
func (v *Verifier) Check(b *domain.Board, day int, at time.Time, query string, ans Answer) Audit {
	a := Audit{
		Seq:        len(v.audits) + 1,
		Day:        day,
		At:         at,
		Query:      query,
		Category:   Classify(query),
		Outcome:    OutcomeGrounded,
		Confidence: ans.Confidence,
	}
	if ans.FallbackMessage != "" {
		a.Outcome = OutcomeFallback
		a.Detail = ans.FallbackMessage
		v.fallbacks++
		v.audits = append(v.audits, a)
		return a
	}
	if detail := mismatch(b, a.Category, ans.Data); detail != "" {
		a.Outcome = OutcomeFabrication
		a.Detail = detail
		v.fabrications++
	}
	v.audits = append(v.audits, a)
	return a
}

// mismatch returns a description of the first disagreement with ground
// truth, or "" when the payload holds up.
func mismatch(b *domain.Board, cat Category, data Payload) string {
	if data != nil && data.Category() != cat {
		return fmt.Sprintf("%s query answered with %s payload", cat, data.Category())
	}
	switch cat {
	case CategoryBlockers:
		p, ok := data.(Blockers)
		if !ok {
			return "blockers payload missing"
		}
		for _, bc := range p.BlockedCards {
			if _, exists := b.Card(bc.ID); !exists {
				return fmt.Sprintf("reported card %s does not exist", bc.ID)
			}
		}
	case CategoryStatus:
		p, ok := data.(StatusCounts)
		if !ok {
			return "status payload missing"
		}
		actual := b.CountByStatus()
		for _, s := range domain.Columns {
			if actual[s] != p[s] {
				return fmt.Sprintf("status %s: reported %d, actual %d", s, p[s], actual[s])
			}
		}
		for _, s := range slices.Sorted(maps.Keys(p)) {
			if !s.Valid() && p[s] != 0 {
				return fmt.Sprintf("reported unknown status %q", s)
			}
		}
	case CategoryCycleTime, CategoryOwnership, CategorySummary:
	}
	return ""
}

// Audits returns a copy of every recorded audit in order.
func (v *Verifier) Audits() []Audit { return slices.Clone(v.audits) }

func (v *Verifier) Fabrications() int { return v.fabrications }

func (v *Verifier) Fallbacks() int { return v.fallbacks }

// FirstFabrication returns the first fabrication audit, if any.
func (v *Verifier) FirstFabrication() (Audit, bool) {
	for _, a := range v.audits {
		if a.Outcome == OutcomeFabrication {
			return a, true
		}
	}
	return Audit{}, false
}
