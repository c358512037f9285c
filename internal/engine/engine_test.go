package engine_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"fizzysim/internal/domain"
	"fizzysim/internal/engine"
	"fizzysim/internal/events"
)

type testEnv struct {
	Engine *engine.Engine
	Board  *domain.Board
	Now    time.Time
}

func newTestEnv(t *testing.T, ids ...string) testEnv {
	t.Helper()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := domain.NewBoard("board-1", "test", []string{"sarah", "greg"})
	for _, id := range ids {
		c := &domain.Card{
			ID:        id,
			Title:     "Card " + id,
			Status:    domain.StatusTodo,
			Priority:  domain.PriorityP2,
			Creator:   "sarah",
			CreatedAt: created,
			UpdatedAt: created,
		}
		events.Seed(c, "sarah", created)
		b.Put(c)
	}
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	e := engine.New(b)
	e.Now = func() time.Time { return now }
	return testEnv{Engine: e, Board: b, Now: now}
}

func historyLen(t *testing.T, b *domain.Board, id string) int {
	t.Helper()
	c, ok := b.Card(id)
	if !ok {
		t.Fatalf("card %s missing", id)
	}
	return len(c.History)
}

func TestEverySuccessfulCallAppendsOneEntry(t *testing.T) {
	env := newTestEnv(t, "a", "b")
	e := env.Engine
	steps := []struct {
		name string
		run  func() error
	}{
		{"move", func() error { return e.MoveCard("a", domain.StatusInProgress, "sarah") }},
		{"comment", func() error { _, err := e.AddComment("a", "sarah", "Sarah", "Still waiting on design"); return err }},
		{"due", func() error { return e.SetDueDate("a", env.Now.Add(72*time.Hour), "sarah") }},
		{"label", func() error { return e.AddLabel("a", "urgent", "greg") }},
		{"label again", func() error { return e.AddLabel("a", "urgent", "greg") }},
		{"unlabel", func() error { return e.RemoveLabel("a", "urgent", "greg") }},
		{"unlabel absent", func() error { return e.RemoveLabel("a", "urgent", "greg") }},
		{"assign", func() error { return e.AssignTo("a", "greg", "greg") }},
		{"rename", func() error { return e.RenameCard("a", "[URGENT] Card a", "greg") }},
		{"attach", func() error { _, err := e.UploadAttachment("a", "design-v17.zip", "maya"); return err }},
		{"priority", func() error { return e.SetPriority("a", domain.PriorityP0, "greg") }},
		{"drift", func() error { return e.Drift("a", domain.StatusReview) }},
	}
	for _, step := range steps {
		before := historyLen(t, env.Board, "a")
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := historyLen(t, env.Board, "a"); got != before+1 {
			t.Fatalf("%s: history %d -> %d, want +1", step.name, before, got)
		}
	}
	c, _ := env.Board.Card("a")
	if !c.UpdatedAt.Equal(env.Now) {
		t.Fatalf("updated_at not refreshed: %v", c.UpdatedAt)
	}
	if c.History[0].Action != "created" {
		t.Fatalf("first entry %q", c.History[0].Action)
	}
	last := c.History[len(c.History)-1]
	if last.Action != engine.ActionDrift || last.Actor != engine.SystemActor {
		t.Fatalf("unexpected drift entry %+v", last)
	}
}

func TestMissingTargetWritesNothing(t *testing.T) {
	env := newTestEnv(t, "a")
	e := env.Engine
	errs := []error{
		e.MoveCard("nope", domain.StatusDone, "x"),
		e.SetDueDate("nope", env.Now, "x"),
		e.AddLabel("nope", "l", "x"),
		e.RemoveLabel("nope", "l", "x"),
		e.AssignTo("nope", "greg", "x"),
		e.RenameCard("nope", "t", "x"),
		e.SetPriority("nope", domain.PriorityP0, "x"),
	}
	if _, err := e.AddComment("nope", "x", "X", "hi"); err != nil {
		errs = append(errs, err)
	}
	if _, err := e.UploadAttachment("nope", "f.zip", "x"); err != nil {
		errs = append(errs, err)
	}
	if _, err := e.CreateBlockerLink("a", "nope", "x", ""); err != nil {
		errs = append(errs, err)
	}
	if len(errs) != 10 {
		t.Fatalf("expected 10 failures, got %d", len(errs))
	}
	for i, err := range errs {
		if !errors.Is(err, engine.ErrCardNotFound) {
			t.Fatalf("call %d: expected ErrCardNotFound, got %v", i, err)
		}
	}
	if got := historyLen(t, env.Board, "a"); got != 1 {
		t.Fatalf("history grew on failed calls: %d", got)
	}
}

func TestBlockerLinkIsSymmetricAndIdempotent(t *testing.T) {
	env := newTestEnv(t, "a", "b")
	e := env.Engine
	for i := 0; i < 2; i++ {
		if _, err := e.CreateBlockerLink("a", "b", "sarah", "Waiting on this to complete"); err != nil {
			t.Fatalf("link %d: %v", i, err)
		}
	}
	a, _ := env.Board.Card("a")
	b, _ := env.Board.Card("b")
	if !slices.Equal(a.BlockedBy, []string{"b"}) || !slices.Equal(b.Blocking, []string{"a"}) {
		t.Fatalf("asymmetric or duplicated edge: a.blockedBy=%v b.blocking=%v", a.BlockedBy, b.Blocking)
	}
	if len(a.Blocking) != 0 || len(b.BlockedBy) != 0 {
		t.Fatalf("reverse edge leaked")
	}
	if a.CountHistory(engine.ActionAddBlocker) != 2 || b.CountHistory(engine.ActionNowBlocking) != 2 {
		t.Fatalf("expected one entry per card per call")
	}
	if _, err := e.CreateBlockerLink("a", "a", "sarah", ""); !errors.Is(err, engine.ErrSelfLink) {
		t.Fatalf("expected self link rejection, got %v", err)
	}
}

func TestAddLabelIsIdempotent(t *testing.T) {
	env := newTestEnv(t, "a")
	_ = env.Engine.AddLabel("a", "P0!!!", "greg")
	_ = env.Engine.AddLabel("a", "P0!!!", "greg")
	c, _ := env.Board.Card("a")
	if !slices.Equal(c.Labels, []string{"P0!!!"}) {
		t.Fatalf("labels %v", c.Labels)
	}
}

func TestBulkUpdateSkipsUnknownCards(t *testing.T) {
	env := newTestEnv(t, "a", "b")
	done := domain.StatusDone
	n := env.Engine.BulkUpdate([]string{"a", "ghost", "b"}, domain.CardPatch{
		Status: &done,
		Labels: []string{"needs-review", "needs-review"},
	}, "ai_janitor")
	if n != 2 {
		t.Fatalf("applied %d, want 2", n)
	}
	for _, id := range []string{"a", "b"} {
		c, _ := env.Board.Card(id)
		if c.Status != domain.StatusDone || !slices.Equal(c.Labels, []string{"needs-review"}) {
			t.Fatalf("card %s not patched: %+v", id, c)
		}
		if c.CountHistory(engine.ActionBulkUpdate) != 1 {
			t.Fatalf("card %s missing bulk entry", id)
		}
	}
}

func TestMoveRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t, "a")
	if err := env.Engine.MoveCard("a", domain.Status("Limbo"), "x"); !errors.Is(err, engine.ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestSubEntityIDsAreStable(t *testing.T) {
	env1 := newTestEnv(t, "a")
	env2 := newTestEnv(t, "a")
	c1, _ := env1.Engine.AddComment("a", "x", "X", "one")
	c2, _ := env2.Engine.AddComment("a", "x", "X", "one")
	if c1.ID != c2.ID || c1.ID == "" {
		t.Fatalf("ids differ: %s vs %s", c1.ID, c2.ID)
	}
	next, _ := env1.Engine.AddComment("a", "x", "X", "two")
	if next.ID == c1.ID {
		t.Fatalf("expected distinct ids")
	}
}
