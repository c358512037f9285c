// Package generator builds the synthetic starting board and applies the
// natural day-to-day drift of card statuses.
package generator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"fizzysim/internal/chance"
	"fizzysim/internal/domain"
	"fizzysim/internal/engine"
	"fizzysim/internal/events"
)

const (
	BoardName   = "Fizzy Team Simulator Board"
	SprintCount = 50
	SprintDays  = 14
	// DriftProbability is the per-day chance that a card moves one step
	// along the forward pipeline.
	DriftProbability = 0.05
)

var ErrInvalidConfig = errors.New("invalid generator config")

type Config struct {
	MinCards            int     `json:"min_cards" yaml:"min_cards" toml:"min_cards"`
	MaxCards            int     `json:"max_cards" yaml:"max_cards" toml:"max_cards"`
	ChaosLevel          float64 `json:"chaos_level" yaml:"chaos_level" toml:"chaos_level"`
	StaleCardPercentage float64 `json:"stale_card_percentage" yaml:"stale_card_percentage" toml:"stale_card_percentage"`
	BlockerDensity      float64 `json:"blocker_density" yaml:"blocker_density" toml:"blocker_density"`
	CommentDensity      float64 `json:"comment_density" yaml:"comment_density" toml:"comment_density"`
}

func DefaultConfig() Config {
	return Config{
		MinCards:            2000,
		MaxCards:            10000,
		ChaosLevel:          0.5,
		StaleCardPercentage: 0.3,
		BlockerDensity:      0.15,
		CommentDensity:      0.4,
	}
}

// Validate rejects bounds the sampler cannot honor.
func (c Config) Validate() error {
	if c.MinCards <= 0 || c.MaxCards <= 0 {
		return fmt.Errorf("%w: card bounds must be positive (min=%d max=%d)", ErrInvalidConfig, c.MinCards, c.MaxCards)
	}
	if c.MinCards > c.MaxCards {
		return fmt.Errorf("%w: min_cards %d exceeds max_cards %d", ErrInvalidConfig, c.MinCards, c.MaxCards)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"chaos_level", c.ChaosLevel},
		{"stale_card_percentage", c.StaleCardPercentage},
		{"blocker_density", c.BlockerDensity},
		{"comment_density", c.CommentDensity},
	} {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, f.name, f.value)
		}
	}
	return nil
}

// Overrides is a partial Config; nil fields keep the base value.
type Overrides struct {
	MinCards            *int     `json:"min_cards,omitempty" yaml:"min_cards,omitempty" toml:"min_cards,omitempty"`
	MaxCards            *int     `json:"max_cards,omitempty" yaml:"max_cards,omitempty" toml:"max_cards,omitempty"`
	ChaosLevel          *float64 `json:"chaos_level,omitempty" yaml:"chaos_level,omitempty" toml:"chaos_level,omitempty"`
	StaleCardPercentage *float64 `json:"stale_card_percentage,omitempty" yaml:"stale_card_percentage,omitempty" toml:"stale_card_percentage,omitempty"`
	BlockerDensity      *float64 `json:"blocker_density,omitempty" yaml:"blocker_density,omitempty" toml:"blocker_density,omitempty"`
	CommentDensity      *float64 `json:"comment_density,omitempty" yaml:"comment_density,omitempty" toml:"comment_density,omitempty"`
}

func (o Overrides) Apply(base Config) Config {
	if o.MinCards != nil {
		base.MinCards = *o.MinCards
	}
	if o.MaxCards != nil {
		base.MaxCards = *o.MaxCards
	}
	if o.ChaosLevel != nil {
		base.ChaosLevel = *o.ChaosLevel
	}
	if o.StaleCardPercentage != nil {
		base.StaleCardPercentage = *o.StaleCardPercentage
	}
	if o.BlockerDensity != nil {
		base.BlockerDensity = *o.BlockerDensity
	}
	if o.CommentDensity != nil {
		base.CommentDensity = *o.CommentDensity
	}
	return base
}

// Status weights follow domain.Columns order.
var (
	staleStatuses = statusTable(0.3, 0.2, 0.1, 0.05, 0.25, 0.05, 0.05)
	freshStatuses = statusTable(0.15, 0.2, 0.25, 0.15, 0.1, 0.1, 0.05)

	chaoticPriorities = priorityTable(0.3, 0.3, 0.2, 0.1, 0.1)
	calmPriorities    = priorityTable(0.05, 0.15, 0.3, 0.3, 0.2)
)

func statusTable(weights ...float64) chance.Table[domain.Status] {
	t := make(chance.Table[domain.Status], len(weights))
	for i, w := range weights {
		t[i] = chance.Bucket[domain.Status]{Value: domain.Columns[i], Weight: w}
	}
	return t
}

func priorityTable(weights ...float64) chance.Table[domain.Priority] {
	t := make(chance.Table[domain.Priority], len(weights))
	for i, w := range weights {
		t[i] = chance.Bucket[domain.Priority]{Value: domain.Priorities[i], Weight: w}
	}
	return t
}

// StatusWeights returns the status table used for stale or fresh cards.
func StatusWeights(stale bool) chance.Table[domain.Status] {
	if stale {
		return staleStatuses
	}
	return freshStatuses
}

// PriorityWeights returns the priority table used for chaotic or calm cards.
func PriorityWeights(chaotic bool) chance.Table[domain.Priority] {
	if chaotic {
		return chaoticPriorities
	}
	return calmPriorities
}

const day = 24 * time.Hour

// Generate builds a board of cfg.MinCards..cfg.MaxCards cards. now anchors
// every backdated timestamp.
func Generate(cfg Config, src chance.Source, now time.Time) (*domain.Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now = now.UTC()
	boardID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("board|"+strconv.Itoa(src.IntN(1<<30))+"|"+strconv.Itoa(src.IntN(1<<30)))).String()
	b := domain.NewBoard(boardID, BoardName, TeamMembers)
	for i := 1; i <= SprintCount; i++ {
		b.Sprints = append(b.Sprints, domain.Sprint{
			ID:       fmt.Sprintf("sprint-%d", i),
			Name:     fmt.Sprintf("Sprint %d", i),
			StartDay: (i - 1) * SprintDays,
			EndDay:   i*SprintDays - 1,
			Cards:    []string{},
		})
	}

	count := chance.IntBetween(src, cfg.MinCards, cfg.MaxCards)
	for i := 0; i < count; i++ {
		c := newCard(cfg, src, now, uuid.NewSHA1(uuid.NameSpaceOID, []byte(boardID+"|card|"+strconv.Itoa(i))).String())
		b.Put(c)
		if c.Sprint != "" {
			if sp, ok := b.SprintByName(c.Sprint); ok {
				sp.Cards = append(sp.Cards, c.ID)
			}
		}
	}

	cards := b.List()
	for _, c := range cards {
		if !chance.Chance(src, cfg.CommentDensity) {
			continue
		}
		n := chance.IntBetween(src, 1, int(15*cfg.ChaosLevel)+1)
		for j := 0; j < n; j++ {
			author := chance.MustChoice(src, TeamMembers)
			c.Comments = append(c.Comments, domain.Comment{
				ID:         engine.SubID(boardID, c.ID, "comment", len(c.Comments)),
				CardID:     c.ID,
				AuthorID:   author,
				AuthorName: author,
				Content:    commentText(src),
				Timestamp:  between(src, c.CreatedAt, now),
			})
		}
	}

	if len(cards) > 1 {
		for _, c := range cards {
			if !chance.Chance(src, cfg.BlockerDensity) {
				continue
			}
			n := chance.IntBetween(src, 1, 3)
			for j := 0; j < n; j++ {
				b.Link(c, otherCard(src, cards, c))
			}
		}
	}
	return b, nil
}

// otherCard draws uniformly among cards excluding self.
func otherCard(src chance.Source, cards []*domain.Card, self *domain.Card) *domain.Card {
	for {
		o := cards[src.IntN(len(cards))]
		if o.ID != self.ID {
			return o
		}
	}
}

func newCard(cfg Config, src chance.Source, now time.Time, id string) *domain.Card {
	stale := chance.Chance(src, cfg.StaleCardPercentage)
	chaotic := chance.Chance(src, cfg.ChaosLevel)

	var ageDays int
	if stale {
		ageDays = chance.IntBetween(src, 365, 365*6)
	} else {
		ageDays = chance.IntBetween(src, 1, 180)
	}
	createdAt := now.Add(-time.Duration(ageDays) * day).Add(-time.Duration(src.IntN(24*60)) * time.Minute)

	var labelCount int
	if chaotic {
		labelCount = chance.IntBetween(src, 3, 10)
	} else {
		labelCount = chance.IntBetween(src, 0, 4)
	}
	labels := make([]string, 0, labelCount)
	for i := 0; i < labelCount; i++ {
		l := chance.MustChoice(src, LabelPool)
		if !contains(labels, l) {
			labels = append(labels, l)
		}
	}

	c := &domain.Card{
		ID:          id,
		Title:       title(src),
		Description: description(src),
		Status:      StatusWeights(stale).Pick(src),
		Priority:    PriorityWeights(chaotic).Pick(src),
		Labels:      labels,
		Creator:     chance.MustChoice(src, TeamMembers),
		CreatedAt:   createdAt,
		Comments:    []domain.Comment{},
		Attachments: []domain.Attachment{},
		BlockedBy:   []string{},
		Blocking:    []string{},
	}
	if chance.Chance(src, 0.8) {
		c.Assignee = chance.MustChoice(src, TeamMembers)
	}
	c.UpdatedAt = between(src, createdAt, now)
	if chance.Chance(src, 0.4) {
		due := now.Add(time.Duration(chance.IntBetween(src, -30, 90)) * day)
		c.DueDate = &due
	}
	if chance.Chance(src, 0.7) {
		sp := chance.IntBetween(src, 1, 21)
		c.StoryPoints = &sp
	}
	if chance.Chance(src, 0.6) {
		c.Sprint = fmt.Sprintf("Sprint %d", chance.IntBetween(src, 1, SprintCount))
	}
	events.Seed(c, c.Creator, createdAt)
	return c
}

func between(src chance.Source, from, to time.Time) time.Time {
	span := to.Sub(from)
	if span <= 0 {
		return from
	}
	return from.Add(time.Duration(src.Float64() * float64(span)))
}

func title(src chance.Source) string {
	t := chance.MustChoice(src, taskPrefixes) + " " + chance.MustChoice(src, taskSubjects)
	if src.Float64() > 0.6 {
		t += " " + chance.MustChoice(src, taskContexts)
	}
	return t
}

func description(src chance.Source) string {
	return fill(chance.MustChoice(src, descriptionTemplates), src)
}

func commentText(src chance.Source) string {
	return fill(chance.MustChoice(src, commentTemplates), src)
}

// fill substitutes the first occurrence of each placeholder.
func fill(tmpl string, src chance.Source) string {
	repl := []struct {
		key   string
		value func() string
	}{
		{"{number}", func() string { return strconv.Itoa(chance.IntBetween(src, 1000, 99999)) }},
		{"{points}", func() string { return strconv.Itoa(chance.IntBetween(src, 1, 21)) }},
		{"{dep1}", func() string { return strconv.Itoa(chance.IntBetween(src, 1000, 99999)) }},
		{"{dep2}", func() string { return strconv.Itoa(chance.IntBetween(src, 1000, 99999)) }},
		{"{person}", func() string { return chance.MustChoice(src, TeamMembers) }},
		{"{version}", func() string { return strconv.Itoa(chance.IntBetween(src, 1, 47)) }},
		{"{company}", func() string { return "Company" + strconv.Itoa(chance.IntBetween(src, 1, 500)) }},
		{"{commit}", func() string { return commitHash(src) }},
	}
	for _, r := range repl {
		if strings.Contains(tmpl, r.key) {
			tmpl = strings.Replace(tmpl, r.key, r.value(), 1)
		}
	}
	return tmpl
}

func commitHash(src chance.Source) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var sb strings.Builder
	for i := 0; i < 7; i++ {
		sb.WriteByte(alphabet[src.IntN(len(alphabet))])
	}
	return sb.String()
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}

// Advance moves the board forward by days. Each card outside Stuck and
// Archived steps one column along domain.DriftPipeline with probability
// DriftProbability per day; every step goes through the engine.
func Advance(e *engine.Engine, src chance.Source, days int) {
	if days <= 0 {
		return
	}
	e.Board.CurrentDay += days
	p := min(DriftProbability*float64(days), 1)
	for _, c := range e.Board.List() {
		if !chance.Chance(src, p) {
			continue
		}
		next, ok := nextDrift(c.Status)
		if !ok {
			continue
		}
		_ = e.Drift(c.ID, next)
	}
}

func nextDrift(s domain.Status) (domain.Status, bool) {
	for i, st := range domain.DriftPipeline {
		if st == s && i < len(domain.DriftPipeline)-1 {
			return domain.DriftPipeline[i+1], true
		}
	}
	return "", false
}
