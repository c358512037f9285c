package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fizzysim/internal/app"
	"fizzysim/internal/config"
	"fizzysim/internal/db"
	"fizzysim/internal/migrate"
	"fizzysim/internal/repo"
	"fizzysim/internal/simulation"
)

var fixedNow = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

type testOptions struct {
	auth      AuthConfig
	webhooks  []config.WebhookConfig
	noArchive bool
}

func newTestServer(t *testing.T, opts testOptions) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	svc := app.Service{
		Config: config.Default(),
		Now:    func() time.Time { return fixedNow },
	}
	var conn io.Closer = io.NopCloser(nil)
	if !opts.noArchive {
		c, err := db.Open(db.Config{Workspace: workspace})
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		if err := migrate.Migrate(c); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		svc.Repo = &repo.Repo{DB: c}
		conn = c
	}
	handler, err := New(Config{Service: svc, BasePath: "/v0", Auth: opts.auth, Webhooks: opts.webhooks})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env.Error.Code
}

var smokeRun = map[string]any{"preset": "smoke", "duration_days": 2}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	var h HealthResponse
	if err := json.Unmarshal(data, &h); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if h.Status != "ok" || !h.Archive || h.SchemaVersion != 2 {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestCreateSimulationAndBrowseRuns(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/simulations", smokeRun, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create simulation status %d: %s", res.StatusCode, string(data))
	}
	var created RunResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal run: %v", err)
	}
	if created.Run.ID == "" || created.Run.Seed != 42 || created.Run.DurationDays != 2 {
		t.Fatalf("unexpected run %+v", created.Run)
	}
	if created.Run.RequestedBy != anonymousSubject {
		t.Fatalf("expected anonymous requester, got %q", created.Run.RequestedBy)
	}
	if created.Result != nil {
		t.Fatalf("result should be omitted unless requested")
	}

	listRes, listData := doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs", nil, nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list runs status %d: %s", listRes.StatusCode, string(listData))
	}
	var page paginatedRuns
	if err := json.Unmarshal(listData, &page); err != nil {
		t.Fatalf("unmarshal runs: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != created.Run.ID {
		t.Fatalf("expected the created run listed, got %+v", page.Items)
	}

	getRes, getData := doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs/"+created.Run.ID, nil, nil)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get run status %d: %s", getRes.StatusCode, string(getData))
	}
	var full struct {
		Run    repo.Run `json:"run"`
		Result struct {
			DurationDays int               `json:"duration_days"`
			DailyMetrics []json.RawMessage `json:"daily_metrics"`
		} `json:"result"`
	}
	if err := json.Unmarshal(getData, &full); err != nil {
		t.Fatalf("unmarshal full run: %v", err)
	}
	if full.Result.DurationDays != 2 || len(full.Result.DailyMetrics) != 2 {
		t.Fatalf("unexpected archived result %+v", full.Result)
	}

	metricsRes, metricsData := doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs/"+created.Run.ID+"/metrics", nil, nil)
	if metricsRes.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d: %s", metricsRes.StatusCode, string(metricsData))
	}
	var metrics struct {
		Days []struct {
			Day     int `json:"day"`
			Queries int `json:"queries"`
		} `json:"days"`
	}
	if err := json.Unmarshal(metricsData, &metrics); err != nil {
		t.Fatalf("unmarshal metrics: %v", err)
	}
	if len(metrics.Days) != 2 || metrics.Days[1].Day != 2 || metrics.Days[1].Queries != 6 {
		t.Fatalf("unexpected metrics %+v", metrics.Days)
	}

	auditRes, auditData := doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs/"+created.Run.ID+"/audits?outcome=fabrication", nil, nil)
	if auditRes.StatusCode != http.StatusOK {
		t.Fatalf("audits status %d: %s", auditRes.StatusCode, string(auditData))
	}
}

func TestRunNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/runs/missing", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "not_found" {
		t.Fatalf("expected not_found, got %s", code)
	}
}

func TestCreateSimulationRejectsBadInput(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/simulations", map[string]any{"preset": "nope"}, nil)
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "unknown_preset" {
		t.Fatalf("expected unknown_preset 400, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/simulations", map[string]any{"preset": "smoke", "agents": []string{"dave"}}, nil)
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "invalid_config" {
		t.Fatalf("expected invalid_config 400, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/simulations", map[string]any{"duration_days": 0}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected schema validation 400, got %d %s", res.StatusCode, string(data))
	}
}

func TestBearerAuthOnPost(t *testing.T) {
	secret := "test-secret"
	srv, cleanup := newTestServer(t, testOptions{auth: AuthConfig{JWTSecret: secret}})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/simulations", smokeRun, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/simulations", smokeRun, map[string]string{"Authorization": "Bearer garbage"})
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %d %s", res.StatusCode, string(data))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/simulations", smokeRun, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 with token, got %d %s", res.StatusCode, string(data))
	}
	var created RunResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal run: %v", err)
	}
	if created.Run.RequestedBy != "alice" {
		t.Fatalf("expected requested_by alice, got %q", created.Run.RequestedBy)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/runs?requested_by=alice", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reads stay open, got %d %s", res.StatusCode, string(data))
	}
}

func TestAsk(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/ask", map[string]any{
		"preset": "smoke",
		"query":  "status by column",
		"days":   1,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ask status %d: %s", res.StatusCode, string(data))
	}
	var got AskResponse
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal ask: %v", err)
	}
	if got.Category != "status" || got.Day != 1 || got.Outcome != "grounded" {
		t.Fatalf("unexpected answer %+v", got)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/ask", map[string]any{"query": ""}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d %s", res.StatusCode, string(data))
	}
}

func TestArchiveDisabled(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{noArchive: true})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/runs", nil, nil)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "archive_disabled" {
		t.Fatalf("expected archive_disabled, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/simulations", smokeRun, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("runs still work without archive, got %d %s", res.StatusCode, string(data))
	}
}

func TestWebhookOnRunCompleted(t *testing.T) {
	received := make(chan http.Header, 4)
	hookLn, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen hook: %v", err)
	}
	hook := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err == nil && evt.Run.ID != "" {
			received <- r.Header.Clone()
		}
		w.WriteHeader(http.StatusNoContent)
	})}
	go hook.Serve(hookLn)
	defer hook.Shutdown(context.Background())

	srv, cleanup := newTestServer(t, testOptions{webhooks: []config.WebhookConfig{{
		URL:    "http://" + hookLn.Addr().String() + "/hook",
		Events: []string{EventRunCompleted},
		Secret: "shh",
	}}})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/simulations", smokeRun, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create simulation status %d: %s", res.StatusCode, string(data))
	}
	select {
	case h := <-received:
		if h.Get("X-Fizzy-Event") != EventRunCompleted || h.Get("X-Fizzy-Secret") != "shh" {
			t.Fatalf("unexpected webhook headers %v", h)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("webhook not delivered")
	}
}

func TestEventFilter(t *testing.T) {
	if !newEventFilter(nil).match(EventRunFabricated) {
		t.Fatalf("empty filter should match everything")
	}
	f := newEventFilter([]string{" run.completed ", ""})
	if !f.match(EventRunCompleted) || f.match(EventRunFabricated) {
		t.Fatalf("filter should only match run.completed")
	}
	if got := runEvents(repo.Run{Survived: false}); strings.Join(got, ",") != "run.completed,run.fabricated" {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestOpenAPIServedConcurrently(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{noArchive: true})
	defer cleanup()

	const workers = 8
	bodies := make([][]byte, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := srv.Client().Get(srv.URL + "/v0/openapi.json")
			if err != nil {
				errs <- err
				return
			}
			defer res.Body.Close()
			bodies[i], err = io.ReadAll(res.Body)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("fetch openapi: %v", err)
		}
	}
	for i := 1; i < workers; i++ {
		if !bytes.Equal(bodies[0], bodies[i]) {
			t.Fatalf("openapi document %d differs from the first", i)
		}
	}
	var doc map[string]any
	if err := json.Unmarshal(bodies[0], &doc); err != nil {
		t.Fatalf("openapi is not json: %v", err)
	}
	if _, ok := doc["paths"]; !ok {
		t.Fatalf("openapi document has no paths")
	}
}

func TestWebhookDeliveryResults(t *testing.T) {
	okLn, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen ok hook: %v", err)
	}
	okHook := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}
	go okHook.Serve(okLn)
	defer okHook.Shutdown(context.Background())

	badLn, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen bad hook: %v", err)
	}
	badHook := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})}
	go badHook.Serve(badLn)
	defer badHook.Shutdown(context.Background())

	disabled := false
	d := newWebhookDispatcher([]config.WebhookConfig{
		{URL: "http://" + okLn.Addr().String() + "/hook"},
		{URL: "http://" + badLn.Addr().String() + "/hook", Events: []string{EventRunFabricated}},
		{URL: "http://" + okLn.Addr().String() + "/off", Enabled: &disabled},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if d == nil || len(d.webhooks) != 2 {
		t.Fatalf("expected two active hooks")
	}
	results := make(chan error, 4)
	d.deliveries = results

	d.notify(context.Background(), repo.Run{ID: "run-1", Survived: false}, simulation.Result{})

	// run.completed and run.fabricated to the first hook, run.fabricated to the second.
	var ok, failed int
	for i := 0; i < 3; i++ {
		select {
		case err := <-results:
			if err == nil {
				ok++
			} else if strings.Contains(err.Error(), "status 500") {
				failed++
			} else {
				t.Fatalf("unexpected delivery error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("delivery %d not reported", i+1)
		}
	}
	if ok != 2 || failed != 1 {
		t.Fatalf("expected 2 delivered and 1 failed, got %d and %d", ok, failed)
	}
}
