package events

import (
	"time"

	"fizzysim/internal/domain"
)

// Writer appends history entries to cards. It is the only code that grows
// Card.History after generation.
type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one history entry on card and refreshes UpdatedAt.
func (w Writer) Append(card *domain.Card, action, actorID string, payload EventPayload) domain.HistoryEntry {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC()
	if payload == nil {
		payload = EventPayload{}
	}
	entry := domain.HistoryEntry{
		Timestamp: ts,
		Action:    action,
		Actor:     actorID,
		Details:   map[string]any(payload),
	}
	card.History = append(card.History, entry)
	card.UpdatedAt = ts
	return entry
}

// Seed writes the initial "created" entry of a freshly generated card.
// It does not touch UpdatedAt.
func Seed(card *domain.Card, actorID string, at time.Time) {
	card.History = append(card.History[:0], domain.HistoryEntry{
		Timestamp: at.UTC(),
		Action:    "created",
		Actor:     actorID,
		Details:   map[string]any{},
	})
}
