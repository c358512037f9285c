package domain

import (
	"slices"
	"time"
)

type Status string

const (
	StatusBacklog    Status = "Backlog"
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusReview     Status = "Review"
	StatusStuck      Status = "Stuck"
	StatusDone       Status = "Done"
	StatusArchived   Status = "Archived"
)

// Columns is the fixed column order of every board.
var Columns = []Status{
	StatusBacklog,
	StatusTodo,
	StatusInProgress,
	StatusReview,
	StatusStuck,
	StatusDone,
	StatusArchived,
}

// DriftPipeline is the forward path natural drift walks. Stuck and Archived
// are reachable only through explicit mutations.
var DriftPipeline = []Status{
	StatusBacklog,
	StatusTodo,
	StatusInProgress,
	StatusReview,
	StatusDone,
}

// Valid reports whether s is one of the board columns.
func (s Status) Valid() bool {
	return slices.Contains(Columns, s)
}

// Terminal reports whether the card is closed (Done or Archived).
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusArchived
}

type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

var Priorities = []Priority{PriorityP0, PriorityP1, PriorityP2, PriorityP3, PriorityP4}

// Rank orders priorities, P0 first. Unknown priorities rank last.
func (p Priority) Rank() int {
	if i := slices.Index(Priorities, p); i >= 0 {
		return i
	}
	return len(Priorities)
}

type Comment struct {
	ID         string    `json:"id"`
	CardID     string    `json:"card_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type Attachment struct {
	ID         string    `json:"id"`
	CardID     string    `json:"card_id"`
	Filename   string    `json:"filename"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type BlockerLink struct {
	ID             string    `json:"id"`
	BlockedCardID  string    `json:"blocked_card_id"`
	BlockingCardID string    `json:"blocking_card_id"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	Reason         string    `json:"reason,omitempty"`
}

type HistoryEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Details   map[string]any `json:"details"`
}

type Card struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	Labels      []string       `json:"labels"`
	Assignee    string         `json:"assignee,omitempty"`
	Creator     string         `json:"creator"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	Comments    []Comment      `json:"comments"`
	Attachments []Attachment   `json:"attachments"`
	BlockedBy   []string       `json:"blocked_by"`
	Blocking    []string       `json:"blocking"`
	History     []HistoryEntry `json:"history"`
	StoryPoints *int           `json:"story_points,omitempty"`
	Sprint      string         `json:"sprint,omitempty"`
}

// HasLabel reports whether the card already carries label.
func (c *Card) HasLabel(label string) bool {
	return slices.Contains(c.Labels, label)
}

// CountHistory returns how many history entries carry the given action.
func (c *Card) CountHistory(action string) int {
	n := 0
	for _, h := range c.History {
		if h.Action == action {
			n++
		}
	}
	return n
}

type Sprint struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	StartDay int      `json:"start_day"`
	EndDay   int      `json:"end_day"`
	Cards    []string `json:"cards"`
}

// Board owns every card. Order keeps insertion order so iteration is
// reproducible for a given seed.
type Board struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Cards       map[string]*Card `json:"cards"`
	Order       []string         `json:"order"`
	Columns     []Status         `json:"columns"`
	TeamMembers []string         `json:"team_members"`
	Sprints     []Sprint         `json:"sprints"`
	CurrentDay  int              `json:"current_day"`
}

// NewBoard returns an empty board with the fixed column set.
func NewBoard(id, name string, team []string) *Board {
	return &Board{
		ID:          id,
		Name:        name,
		Cards:       make(map[string]*Card),
		Columns:     slices.Clone(Columns),
		TeamMembers: slices.Clone(team),
	}
}

// Put registers a card. Re-registering an existing id replaces the card
// without changing its position.
func (b *Board) Put(c *Card) {
	if _, ok := b.Cards[c.ID]; !ok {
		b.Order = append(b.Order, c.ID)
	}
	b.Cards[c.ID] = c
}

// Card looks up a card by id.
func (b *Board) Card(id string) (*Card, bool) {
	c, ok := b.Cards[id]
	return c, ok
}

// List returns all cards in insertion order.
func (b *Board) List() []*Card {
	out := make([]*Card, 0, len(b.Order))
	for _, id := range b.Order {
		if c, ok := b.Cards[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Filter returns the cards, in insertion order, for which keep is true.
func (b *Board) Filter(keep func(*Card) bool) []*Card {
	var out []*Card
	for _, id := range b.Order {
		if c, ok := b.Cards[id]; ok && keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Link records that blocking blocks blocked on both adjacency lists.
// It returns false when the edge already existed on both sides.
func (b *Board) Link(blocked, blocking *Card) bool {
	changed := false
	if !slices.Contains(blocked.BlockedBy, blocking.ID) {
		blocked.BlockedBy = append(blocked.BlockedBy, blocking.ID)
		changed = true
	}
	if !slices.Contains(blocking.Blocking, blocked.ID) {
		blocking.Blocking = append(blocking.Blocking, blocked.ID)
		changed = true
	}
	return changed
}

// CountByStatus tallies cards per column; every column is present.
func (b *Board) CountByStatus() map[Status]int {
	counts := make(map[Status]int, len(Columns))
	for _, s := range Columns {
		counts[s] = 0
	}
	for _, c := range b.Cards {
		counts[c.Status]++
	}
	return counts
}

// SprintByName finds a sprint by display name.
func (b *Board) SprintByName(name string) (*Sprint, bool) {
	for i := range b.Sprints {
		if b.Sprints[i].Name == name {
			return &b.Sprints[i], true
		}
	}
	return nil, false
}

// CardPatch is a partial field update applied by bulk updates. Nil fields
// are left untouched.
type CardPatch struct {
	Status   *Status   `json:"status,omitempty"`
	Priority *Priority `json:"priority,omitempty"`
	Assignee *string   `json:"assignee,omitempty"`
	Labels   []string  `json:"labels,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p CardPatch) Empty() bool {
	return p.Status == nil && p.Priority == nil && p.Assignee == nil && p.Labels == nil
}

// PersonaAction is the audit record an agent emits per mutation it performs.
type PersonaAction struct {
	Type      string         `json:"type"`
	Persona   string         `json:"persona"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details"`
	CardID    string         `json:"card_id,omitempty"`
}
