package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fizzysim/internal/db"
	"fizzysim/internal/generator"
	"fizzysim/internal/migrate"
	"fizzysim/internal/oracle"
	"fizzysim/internal/simulation"
)

var start = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Memory: strings.ReplaceAll(t.Name(), "/", "_")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Repo{DB: conn}
}

func smallResult(t *testing.T, seed uint64) simulation.Result {
	t.Helper()
	lo, hi := 20, 30
	res, err := simulation.Run(simulation.Config{
		DurationDays: 3,
		Generator:    &generator.Overrides{MinCards: &lo, MaxCards: &hi},
		Seed:         seed,
	}, simulation.Options{Start: start})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return res
}

func TestInsertAndGetRun(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	res := smallResult(t, 7)
	run := NewRun("", "smoke", "alice", res, start)
	if run.ID == "" {
		t.Fatalf("expected generated id")
	}
	if err := r.InsertRun(ctx, run, res); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := r.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != run {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, run)
	}

	full, err := r.GetRunResult(ctx, run.ID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if full.TotalCards != res.TotalCards || len(full.DailyMetrics) != 3 || len(full.Audits) != len(res.Audits) {
		t.Fatalf("unexpected decoded result %+v", full.JanitorMetrics)
	}
	if full.Audits[0].Category != res.Audits[0].Category {
		t.Fatalf("category lost in archive: %v vs %v", full.Audits[0].Category, res.Audits[0].Category)
	}
}

func TestGetRunNotFound(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.GetRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.DailyMetrics(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for metrics, got %v", err)
	}
	if err := r.DeleteRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for delete, got %v", err)
	}
}

func TestDailyMetricsAndAudits(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	res := smallResult(t, 11)
	run := NewRun("run-1", "", "", res, start)
	if err := r.InsertRun(ctx, run, res); err != nil {
		t.Fatalf("insert: %v", err)
	}
	days, err := r.DailyMetrics(ctx, run.ID)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if len(days) != len(res.DailyMetrics) {
		t.Fatalf("expected %d days, got %d", len(res.DailyMetrics), len(days))
	}
	for i, d := range days {
		want := res.DailyMetrics[i]
		if d.Day != want.Day || d.TotalCards != want.TotalCards || d.Queries != want.Queries {
			t.Fatalf("day %d mismatch: %+v vs %+v", i, d, want)
		}
		for status, n := range want.CardsByStatus {
			if d.CardsByStatus[status] != n {
				t.Fatalf("day %d status %s: got %d want %d", d.Day, status, d.CardsByStatus[status], n)
			}
		}
	}

	audits, err := r.ListAudits(ctx, run.ID, "")
	if err != nil {
		t.Fatalf("audits: %v", err)
	}
	if len(audits) != len(res.Audits) {
		t.Fatalf("expected %d audits, got %d", len(res.Audits), len(audits))
	}
	fabs, err := r.ListAudits(ctx, run.ID, oracle.OutcomeFabrication)
	if err != nil {
		t.Fatalf("fabrication audits: %v", err)
	}
	if len(fabs) != res.JanitorMetrics.FabricationCount {
		t.Fatalf("expected %d fabrications, got %d", res.JanitorMetrics.FabricationCount, len(fabs))
	}
}

func TestListRunsFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	res := smallResult(t, 3)
	for i, who := range []string{"alice", "bob", "alice"} {
		run := NewRun("", "smoke", who, res, start.Add(time.Duration(i)*time.Minute))
		if err := r.InsertRun(ctx, run, res); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	all, err := r.ListRuns(ctx, RunFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	if all[0].CreatedAt < all[1].CreatedAt {
		t.Fatalf("expected newest first")
	}

	alice, err := r.ListRuns(ctx, RunFilters{RequestedBy: "alice"})
	if err != nil || len(alice) != 2 {
		t.Fatalf("expected 2 runs for alice, got %d (%v)", len(alice), err)
	}

	page, err := r.ListRuns(ctx, RunFilters{Limit: 2})
	if err != nil || len(page) != 2 {
		t.Fatalf("expected page of 2, got %d (%v)", len(page), err)
	}
	last := page[len(page)-1]
	rest, err := r.ListRuns(ctx, RunFilters{Limit: 2, CursorCreatedAt: last.CreatedAt, CursorID: last.ID})
	if err != nil || len(rest) != 1 {
		t.Fatalf("expected 1 remaining run, got %d (%v)", len(rest), err)
	}

	survived := true
	ok, err := r.ListRuns(ctx, RunFilters{Survived: &survived})
	if err != nil {
		t.Fatalf("list survived: %v", err)
	}
	if res.JanitorMetrics.Survived && len(ok) != 3 {
		t.Fatalf("expected all runs survived, got %d", len(ok))
	}

	if err := r.DeleteRun(ctx, all[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.DailyMetrics(ctx, all[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted run to be gone, got %v", err)
	}
}
