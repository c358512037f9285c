package fizzysdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fizzysim/internal/app"
	"fizzysim/internal/config"
	"fizzysim/internal/db"
	"fizzysim/internal/migrate"
	"fizzysim/internal/repo"
	"fizzysim/internal/server"
	fizzysdk "fizzysim/sdk/go"
)

func newClient(t *testing.T) *fizzysdk.Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	handler, err := server.New(server.Config{Service: app.Service{
		Config: config.Default(),
		Repo:   &repo.Repo{DB: conn},
		Now:    func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) },
	}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return fizzysdk.New(srv.URL)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	days := 2
	created, err := c.CreateSimulation(ctx, fizzysdk.SimulationRequest{Preset: "smoke", DurationDays: &days, IncludeResult: true})
	if err != nil {
		t.Fatalf("create simulation: %v", err)
	}
	if created.Run.ID == "" || created.Run.DurationDays != 2 || len(created.Result) == 0 {
		t.Fatalf("unexpected run %+v", created.Run)
	}

	page, err := c.ListRuns(ctx, fizzysdk.RunFilters{Preset: "smoke", Limit: 10})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != created.Run.ID {
		t.Fatalf("unexpected page %+v", page)
	}

	metrics, err := c.RunMetrics(ctx, created.Run.ID)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if len(metrics) != 2 || metrics[0].Day != 1 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}

	ans, err := c.Ask(ctx, fizzysdk.AskRequest{Query: "show me all real blockers", Preset: "smoke"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Category != "blockers" || ans.Outcome != "grounded" {
		t.Fatalf("unexpected answer %+v", ans)
	}
	var blockers struct {
		BlockedCards []json.RawMessage `json:"blocked_cards"`
	}
	if err := json.Unmarshal(ans.Answer.Data, &blockers); err != nil {
		t.Fatalf("decode blockers payload: %v", err)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	c := newClient(t)
	_, err := c.GetRun(context.Background(), "missing")
	var apiErr *fizzysdk.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", apiErr.StatusCode)
	}
}
