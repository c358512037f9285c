// Package oracle answers fixed-category questions about a board by reading
// it, and audits those answers against freshly derived ground truth.
package oracle

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"fizzysim/internal/domain"
	"fizzysim/internal/engine"
)

type Category int

const (
	CategorySummary Category = iota
	CategoryBlockers
	CategoryCycleTime
	CategoryStatus
	CategoryOwnership
)

func (c Category) String() string {
	switch c {
	case CategoryBlockers:
		return "blockers"
	case CategoryCycleTime:
		return "cycle_time"
	case CategoryStatus:
		return "status"
	case CategoryOwnership:
		return "ownership"
	default:
		return "summary"
	}
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ParseCategory is the inverse of String.
func ParseCategory(s string) (Category, error) {
	for _, c := range []Category{CategorySummary, CategoryBlockers, CategoryCycleTime, CategoryStatus, CategoryOwnership} {
		if c.String() == s {
			return c, nil
		}
	}
	return CategorySummary, fmt.Errorf("unknown category %q", s)
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Rule maps lowercase keywords to a category.
type Rule struct {
	Category Category
	Keywords []string
}

// Rules is evaluated top to bottom; the first rule with a keyword contained
// in the lowercased query wins. Unmatched queries fall to CategorySummary.
var Rules = []Rule{
	{CategoryBlockers, []string{"blocker", "blocked"}},
	{CategoryCycleTime, []string{"cycle", "time"}},
	{CategoryStatus, []string{"status", "column"}},
	{CategoryOwnership, []string{"owner", "owns", "assign"}},
}

func Classify(query string) Category {
	q := strings.ToLower(query)
	for _, r := range Rules {
		for _, k := range r.Keywords {
			if strings.Contains(q, k) {
				return r.Category
			}
		}
	}
	return CategorySummary
}

// UncertainThreshold is the reassignment count above which ownership is
// reported as uncertain.
const UncertainThreshold = 5

// Payload is implemented by the per-category result types only.
type Payload interface {
	Category() Category
}

type BlockedCard struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	BlockedBy   []string      `json:"blocked_by"`
	Status      domain.Status `json:"status"`
	LastUpdated time.Time     `json:"last_updated"`
}

type Blockers struct {
	BlockedCards []BlockedCard `json:"blocked_cards"`
}

type CycleTime struct {
	AverageDays string `json:"average_cycle_time_days"`
	DoneCards   int    `json:"total_done_cards"`
	MinDays     string `json:"min_cycle_time"`
	MaxDays     string `json:"max_cycle_time"`
}

// StatusCounts is the number of cards per column.
type StatusCounts map[domain.Status]int

type UncertainCard struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Reassignments int    `json:"assignment_history"`
}

type Ownership struct {
	CardsByAssignee map[string][]string `json:"cards_by_assignee"`
	Uncertain       []UncertainCard     `json:"uncertain_ownership,omitempty"`
}

type Summary struct {
	TotalCards  int      `json:"total_cards"`
	CurrentDay  int      `json:"current_day"`
	TeamMembers []string `json:"team_members"`
}

func (Blockers) Category() Category     { return CategoryBlockers }
func (CycleTime) Category() Category    { return CategoryCycleTime }
func (StatusCounts) Category() Category { return CategoryStatus }
func (Ownership) Category() Category    { return CategoryOwnership }
func (Summary) Category() Category      { return CategorySummary }

type Answer struct {
	Category        Category `json:"category"`
	Success         bool     `json:"success"`
	Data            Payload  `json:"data"`
	Confidence      float64  `json:"confidence"`
	FallbackMessage string   `json:"fallback_message,omitempty"`
}

// Ask answers query from the board. It never mutates the board.
func Ask(b *domain.Board, query string) Answer {
	switch cat := Classify(query); cat {
	case CategoryBlockers:
		return Answer{Category: cat, Success: true, Data: blockers(b), Confidence: 0.95}
	case CategoryCycleTime:
		return Answer{Category: cat, Success: true, Data: cycleTime(b), Confidence: 0.9}
	case CategoryStatus:
		return Answer{Category: cat, Success: true, Data: StatusCounts(b.CountByStatus()), Confidence: 1.0}
	case CategoryOwnership:
		own := ownership(b)
		if len(own.Uncertain) > 0 {
			return Answer{
				Category:        cat,
				Success:         true,
				Data:            own,
				Confidence:      0.6,
				FallbackMessage: fmt.Sprintf("I'm not 100%% sure who actually owns %d cards. Here's the raw history.", len(own.Uncertain)),
			}
		}
		return Answer{Category: cat, Success: true, Data: own, Confidence: 0.9}
	default:
		return Answer{Category: CategorySummary, Success: true, Data: Summary{
			TotalCards:  len(b.Cards),
			CurrentDay:  b.CurrentDay,
			TeamMembers: slices.Clone(b.TeamMembers),
		}, Confidence: 0.7}
	}
}

// A card is reported as blocked when it has inbound blockers or sits in Stuck.
func blockers(b *domain.Board) Blockers {
	out := Blockers{BlockedCards: []BlockedCard{}}
	for _, c := range b.List() {
		if len(c.BlockedBy) == 0 && c.Status != domain.StatusStuck {
			continue
		}
		out.BlockedCards = append(out.BlockedCards, BlockedCard{
			ID:          c.ID,
			Title:       c.Title,
			BlockedBy:   slices.Clone(c.BlockedBy),
			Status:      c.Status,
			LastUpdated: c.UpdatedAt,
		})
	}
	return out
}

// Min and max include zero, so with no Done cards both read 0.00.
func cycleTime(b *domain.Board) CycleTime {
	var days []float64
	for _, c := range b.List() {
		if c.Status == domain.StatusDone {
			days = append(days, c.UpdatedAt.Sub(c.CreatedAt).Hours()/24)
		}
	}
	sum, lo, hi := 0.0, 0.0, 0.0
	for _, d := range days {
		sum += d
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	avg := 0.0
	if len(days) > 0 {
		avg = sum / float64(len(days))
	}
	return CycleTime{
		AverageDays: fmt.Sprintf("%.2f", avg),
		DoneCards:   len(days),
		MinDays:     fmt.Sprintf("%.2f", lo),
		MaxDays:     fmt.Sprintf("%.2f", hi),
	}
}

func ownership(b *domain.Board) Ownership {
	out := Ownership{CardsByAssignee: map[string][]string{}}
	for _, c := range b.List() {
		who := c.Assignee
		if who == "" {
			who = "unassigned"
		}
		out.CardsByAssignee[who] = append(out.CardsByAssignee[who], c.ID)
		if n := reassignments(c); n > UncertainThreshold {
			out.Uncertain = append(out.Uncertain, UncertainCard{ID: c.ID, Title: c.Title, Reassignments: n})
		}
	}
	return out
}

// reassignments counts assign entries plus bulk updates that set an assignee.
func reassignments(c *domain.Card) int {
	n := 0
	for _, h := range c.History {
		switch h.Action {
		case engine.ActionAssign:
			n++
		case engine.ActionBulkUpdate:
			if u, ok := h.Details["updates"].(map[string]any); ok {
				if _, ok := u["assignee"]; ok {
					n++
				}
			}
		}
	}
	return n
}

type CycleSummary struct {
	TotalCards           int                     `json:"total_cards"`
	StatusDistribution   map[domain.Status]int   `json:"status_distribution"`
	PriorityDistribution map[domain.Priority]int `json:"priority_distribution"`
	TotalComments        int                     `json:"total_comments"`
	TotalBlockers        int                     `json:"total_blockers"`
	TotalAttachments     int                     `json:"total_attachments"`
	CurrentDay           int                     `json:"current_day"`
}

// SummarizeCycle tallies the board. Blockers counts inbound edges.
func SummarizeCycle(b *domain.Board) CycleSummary {
	s := CycleSummary{
		TotalCards:           len(b.Cards),
		StatusDistribution:   b.CountByStatus(),
		PriorityDistribution: map[domain.Priority]int{},
		CurrentDay:           b.CurrentDay,
	}
	for _, c := range b.Cards {
		s.PriorityDistribution[c.Priority]++
		s.TotalComments += len(c.Comments)
		s.TotalBlockers += len(c.BlockedBy)
		s.TotalAttachments += len(c.Attachments)
	}
	return s
}
