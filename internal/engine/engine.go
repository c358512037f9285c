package engine

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"fizzysim/internal/domain"
	"fizzysim/internal/events"
)

// History actions written by the toolkit.
const (
	ActionMove        = "move_card"
	ActionComment     = "add_comment"
	ActionDueDate     = "set_due_date"
	ActionAddBlocker  = "add_blocker"
	ActionNowBlocking = "now_blocking"
	ActionAddLabel    = "add_label"
	ActionRemoveLabel = "remove_label"
	ActionAssign      = "assign"
	ActionRename      = "rename"
	ActionAttachment  = "upload_attachment"
	ActionPriority    = "set_priority"
	ActionBulkUpdate  = "bulk_update"
	ActionDrift       = "status_change"
)

// SystemActor is the actor natural drift is attributed to.
const SystemActor = "system"

var (
	ErrCardNotFound  = errors.New("card not found")
	ErrSelfLink      = errors.New("card cannot block itself")
	ErrInvalidStatus = errors.New("invalid status")
)

// Engine is the only mutation surface of a board. Every successful call
// appends exactly one history entry per touched card and refreshes UpdatedAt.
// A call against an unknown card returns ErrCardNotFound and writes nothing.
type Engine struct {
	Board *domain.Board
	Now   func() time.Time
}

func New(board *domain.Board) *Engine {
	return &Engine{Board: board, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) record(card *domain.Card, action, actorID string, payload events.EventPayload) {
	events.Writer{Now: e.now}.Append(card, action, actorID, payload)
}

func (e *Engine) card(id string) (*domain.Card, error) {
	c, ok := e.Board.Card(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	return c, nil
}

// SubID derives a stable id for a sub-entity (comment, attachment, link)
// from its board, card and ordinal.
func SubID(boardID, cardID, kind string, n int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(boardID+"|"+cardID+"|"+kind+"|"+strconv.Itoa(n))).String()
}

func (e *Engine) newID(cardID, kind string, n int) string {
	return SubID(e.Board.ID, cardID, kind, n)
}

func (e *Engine) MoveCard(cardID string, status domain.Status, actorID string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	c, err := e.card(cardID)
	if err != nil {
		return err
	}
	from := c.Status
	c.Status = status
	e.record(c, ActionMove, actorID, events.EventPayload{"from": string(from), "to": string(status)})
	return nil
}

// Drift advances a card one pipeline step on behalf of the system actor.
func (e *Engine) Drift(cardID string, to domain.Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	c, err := e.card(cardID)
	if err != nil {
		return err
	}
	from := c.Status
	c.Status = to
	e.record(c, ActionDrift, SystemActor, events.EventPayload{"from": string(from), "to": string(to)})
	return nil
}

func (e *Engine) AddComment(cardID, authorID, authorName, content string) (domain.Comment, error) {
	c, err := e.card(cardID)
	if err != nil {
		return domain.Comment{}, err
	}
	cm := domain.Comment{
		ID:         e.newID(c.ID, "comment", len(c.Comments)),
		CardID:     c.ID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Content:    content,
		Timestamp:  e.now(),
	}
	c.Comments = append(c.Comments, cm)
	e.record(c, ActionComment, authorID, events.EventPayload{"comment_id": cm.ID, "preview": preview(content, 50)})
	return cm, nil
}

func (e *Engine) SetDueDate(cardID string, due time.Time, actorID string) error {
	c, err := e.card(cardID)
	if err != nil {
		return err
	}
	var old any
	if c.DueDate != nil {
		old = c.DueDate.UTC().Format(time.RFC3339)
	}
	due = due.UTC()
	c.DueDate = &due
	e.record(c, ActionDueDate, actorID, events.EventPayload{"old_due_date": old, "new_due_date": due.Format(time.RFC3339)})
	return nil
}

// CreateBlockerLink records that blockingID blocks blockedID. Repeating an
// existing link leaves both adjacency lists unchanged.
func (e *Engine) CreateBlockerLink(blockedID, blockingID, actorID, reason string) (domain.BlockerLink, error) {
	if blockedID == blockingID {
		return domain.BlockerLink{}, fmt.Errorf("%w: %s", ErrSelfLink, blockedID)
	}
	blocked, err := e.card(blockedID)
	if err != nil {
		return domain.BlockerLink{}, err
	}
	blocking, err := e.card(blockingID)
	if err != nil {
		return domain.BlockerLink{}, err
	}
	changed := e.Board.Link(blocked, blocking)
	link := domain.BlockerLink{
		ID:             e.newID(blocked.ID, "blocker|"+blocking.ID, 0),
		BlockedCardID:  blocked.ID,
		BlockingCardID: blocking.ID,
		CreatedBy:      actorID,
		CreatedAt:      e.now(),
		Reason:         reason,
	}
	e.record(blocked, ActionAddBlocker, actorID, events.EventPayload{"blocking_card_id": blocking.ID, "reason": reason, "changed": changed})
	e.record(blocking, ActionNowBlocking, actorID, events.EventPayload{"blocked_card_id": blocked.ID, "reason": reason, "changed": changed})
	return link, nil
}

// AddLabel is idempotent: the label set never holds duplicates.
func (e *Engine) AddLabel(cardID, label, actorID string) error {
	c, err := e.card(cardID)
	if err != nil {
		return err
	}
	changed := !c.HasLabel(label)
	if changed {
		c.Labels = append(c.Labels, label)
	}
	e.record(c, ActionAddLabel, actorID, events.EventPayload{"label": label, "changed": changed})
	return nil
}

func (e *Engine) RemoveLabel(cardID, label, actorID string) error {
	c, err := e.card(cardID)
	if err != nil {
		return err
	}
	i := slices.Index(c.Labels, label)
	if i >= 0 {
		c.Labels = slices.Delete(c.Labels, i, i+1)
	}
	e.record(c, ActionRemoveLabel, actorID, events.EventPayload{"label": label, "changed": i >= 0})
	return nil
}

func (e *Engine) AssignTo(cardID, assignee, actorID string) error {
	c, err := e.card(cardID)
	if err != nil {
		return err
	}
	old := c.Assignee
	c.Assignee = assignee
	e.record(c, ActionAssign, actorID, events.EventPayload{"old_assignee": old, "new_assignee": assignee})
	return nil
}

func (e *Engine) RenameCard(cardID, title, actorID string) error {
	c, err := e.card(cardID)
	if err != nil {
		return err
	}
	old := c.Title
	c.Title = title
	e.record(c, ActionRename, actorID, events.EventPayload{"old_title": old, "new_title": title})
	return nil
}

func (e *Engine) UploadAttachment(cardID, filename, uploadedBy string) (domain.Attachment, error) {
	c, err := e.card(cardID)
	if err != nil {
		return domain.Attachment{}, err
	}
	a := domain.Attachment{
		ID:         e.newID(c.ID, "attachment", len(c.Attachments)),
		CardID:     c.ID,
		Filename:   filename,
		UploadedBy: uploadedBy,
		UploadedAt: e.now(),
	}
	c.Attachments = append(c.Attachments, a)
	e.record(c, ActionAttachment, uploadedBy, events.EventPayload{"filename": filename, "attachment_id": a.ID})
	return a, nil
}

func (e *Engine) SetPriority(cardID string, p domain.Priority, actorID string) error {
	c, err := e.card(cardID)
	if err != nil {
		return err
	}
	old := c.Priority
	c.Priority = p
	e.record(c, ActionPriority, actorID, events.EventPayload{"old_priority": string(old), "new_priority": string(p)})
	return nil
}

// BulkUpdate applies patch to every resolvable id and returns how many cards
// were updated. Unknown ids are skipped.
func (e *Engine) BulkUpdate(cardIDs []string, patch domain.CardPatch, actorID string) int {
	if patch.Status != nil && !patch.Status.Valid() {
		return 0
	}
	applied := 0
	for _, id := range cardIDs {
		c, ok := e.Board.Card(id)
		if !ok {
			continue
		}
		if patch.Status != nil {
			c.Status = *patch.Status
		}
		if patch.Priority != nil {
			c.Priority = *patch.Priority
		}
		if patch.Assignee != nil {
			c.Assignee = *patch.Assignee
		}
		if patch.Labels != nil {
			c.Labels = dedupe(patch.Labels)
		}
		e.record(c, ActionBulkUpdate, actorID, events.EventPayload{"updates": patchPayload(patch)})
		applied++
	}
	return applied
}

func patchPayload(p domain.CardPatch) map[string]any {
	out := map[string]any{}
	if p.Status != nil {
		out["status"] = string(*p.Status)
	}
	if p.Priority != nil {
		out["priority"] = string(*p.Priority)
	}
	if p.Assignee != nil {
		out["assignee"] = *p.Assignee
	}
	if p.Labels != nil {
		out["labels"] = slices.Clone(p.Labels)
	}
	return out
}

func dedupe(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
