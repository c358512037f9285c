package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fizzysim/internal/app"
	"fizzysim/internal/config"
	"fizzysim/internal/generator"
	"fizzysim/internal/migrate"
	"fizzysim/internal/oracle"
	"fizzysim/internal/repo"
	"fizzysim/internal/simulation"
)

// Config for the HTTP API handler.
type Config struct {
	Service  app.Service
	BasePath string
	Auth     AuthConfig
	Webhooks []config.WebhookConfig
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"run not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"run_id\":\"7c0e\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

var errArchiveDisabled = errors.New("run archive is disabled")

// New returns an HTTP handler exposing the simulator API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	svc := cfg.Service
	if svc.Logger == nil {
		svc.Logger = log
	}
	if d := newWebhookDispatcher(cfg.Webhooks, log); d != nil {
		prev := svc.OnComplete
		svc.OnComplete = func(ctx context.Context, run repo.Run, res simulation.Result) {
			if prev != nil {
				prev(ctx, run, res)
			}
			d.notify(ctx, run, res)
		}
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Fizzy Simulator API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group, svc)
	registerSimulations(group, svc)
	registerRuns(group, svc)
	registerAsk(group, svc)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(started),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, errArchiveDisabled):
		return newAPIError(http.StatusNotFound, "archive_disabled", msg, nil)
	case errors.Is(err, config.ErrUnknownPreset):
		return newAPIError(http.StatusBadRequest, "unknown_preset", msg, nil)
	case errors.Is(err, simulation.ErrInvalidConfig), errors.Is(err, generator.ErrInvalidConfig):
		return newAPIError(http.StatusBadRequest, "invalid_config", msg, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newAPIError(http.StatusServiceUnavailable, "cancelled", msg, nil)
	}
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") || strings.Contains(lowered, "must"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

// applyAuthSecurity marks POST operations as bearer-protected.
func applyAuthSecurity(oas *huma.OpenAPI) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	for _, item := range oas.Paths {
		if item.Post != nil {
			item.Post.Security = []map[string][]string{{"bearerAuth": {}}}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Fizzy Simulator API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      POST routes take Authorization: Bearer &lt;token&gt; when the server has a JWT secret.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API, svc app.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		resp := HealthResponse{Status: "ok", Archive: svc.Repo != nil}
		if svc.Repo != nil {
			v, err := migrate.Current(svc.Repo.DB)
			if err != nil {
				return nil, handleError(err)
			}
			resp.SchemaVersion = v
		}
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerSimulations(api huma.API, svc app.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-simulation",
		Method:        http.MethodPost,
		Path:          "/simulations",
		Summary:       "Run a simulation",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateSimulationRequest
	}) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		run, res, err := svc.Run(ctx, app.Request{
			Preset:       input.Body.Preset,
			DurationDays: input.Body.DurationDays,
			Seed:         input.Body.Seed,
			Agents:       input.Body.Agents,
			Generator:    input.Body.Generator,
			RequestedBy:  requesterFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := RunResponse{Run: run}
		if input.Body.IncludeResult {
			resp.Result = &res
		}
		return &struct {
			Body RunResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerRuns(api huma.API, svc app.Service) {
	archive := func() (*repo.Repo, error) {
		if svc.Repo == nil {
			return nil, errArchiveDisabled
		}
		return svc.Repo, nil
	}
	type runPath struct {
		RunID string `path:"run_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List archived runs",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Preset      string `query:"preset"`
		RequestedBy string `query:"requested_by"`
		Survived    string `query:"survived" enum:"true,false"`
		Limit       int    `query:"limit" default:"50"`
		Cursor      string `query:"cursor"`
	}) (*struct {
		Body paginatedRuns `json:"body"`
	}, error) {
		r, err := archive()
		if err != nil {
			return nil, handleError(err)
		}
		cursorAt, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		f := repo.RunFilters{
			Preset:          input.Preset,
			RequestedBy:     input.RequestedBy,
			Limit:           normalizeLimit(input.Limit) + 1,
			CursorCreatedAt: cursorAt,
			CursorID:        cursorID,
		}
		if input.Survived != "" {
			survived := input.Survived == "true"
			f.Survived = &survived
		}
		items, err := r.ListRuns(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		resp := paginatedRuns{Items: []repo.Run{}}
		if len(items) > limit {
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
			items = items[:limit]
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body paginatedRuns `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{run_id}",
		Summary:     "Get an archived run with its full result",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *runPath) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		r, err := archive()
		if err != nil {
			return nil, handleError(err)
		}
		run, err := r.GetRun(ctx, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := r.GetRunResult(ctx, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunResponse `json:"body"`
		}{Body: RunResponse{Run: run, Result: &res}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run-metrics",
		Method:      http.MethodGet,
		Path:        "/runs/{run_id}/metrics",
		Summary:     "Daily metrics of an archived run",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *runPath) (*struct {
		Body RunMetricsResponse `json:"body"`
	}, error) {
		r, err := archive()
		if err != nil {
			return nil, handleError(err)
		}
		days, err := r.DailyMetrics(ctx, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		if days == nil {
			days = []simulation.DailyMetrics{}
		}
		return &struct {
			Body RunMetricsResponse `json:"body"`
		}{Body: RunMetricsResponse{RunID: input.RunID, Days: days}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-run-audits",
		Method:      http.MethodGet,
		Path:        "/runs/{run_id}/audits",
		Summary:     "Verifier audit trail of an archived run",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RunID   string `path:"run_id"`
		Outcome string `query:"outcome" enum:"grounded,graceful_fallback,fabrication"`
	}) (*struct {
		Body AuditListResponse `json:"body"`
	}, error) {
		r, err := archive()
		if err != nil {
			return nil, handleError(err)
		}
		if _, err := r.GetRun(ctx, input.RunID); err != nil {
			return nil, handleError(err)
		}
		audits, err := r.ListAudits(ctx, input.RunID, oracle.Outcome(input.Outcome))
		if err != nil {
			return nil, handleError(err)
		}
		if audits == nil {
			audits = []oracle.Audit{}
		}
		return &struct {
			Body AuditListResponse `json:"body"`
		}{Body: AuditListResponse{RunID: input.RunID, Audits: audits}}, nil
	})
}

func registerAsk(api huma.API, svc app.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "ask",
		Method:      http.MethodPost,
		Path:        "/ask",
		Summary:     "Ask the oracle about a generated board",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body AskRequest
	}) (*struct {
		Body AskResponse `json:"body"`
	}, error) {
		res, err := svc.Ask(ctx, app.AskRequest{
			Preset:    input.Body.Preset,
			Seed:      input.Body.Seed,
			Days:      input.Body.Days,
			Generator: input.Body.Generator,
			Query:     input.Body.Query,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AskResponse `json:"body"`
		}{Body: AskResponse{
			Seed:       res.Seed,
			Day:        res.Day,
			TotalCards: res.TotalCards,
			Category:   res.Answer.Category.String(),
			Answer:     res.Answer,
			Outcome:    string(res.Audit.Outcome),
			Detail:     res.Audit.Detail,
		}}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}
