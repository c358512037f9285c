package fizzysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Fizzy simulator HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. Simulations run synchronously, so
// the timeout is generous.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  5 * time.Minute,
	}
}

// Run is the archived summary of a simulation.
type Run struct {
	ID           string `json:"id"`
	Seed         uint64 `json:"seed"`
	Preset       string `json:"preset,omitempty"`
	RequestedBy  string `json:"requested_by,omitempty"`
	DurationDays int    `json:"duration_days"`
	TotalCards   int    `json:"total_cards"`
	Survived     bool   `json:"survived"`
	SurvivalDays int    `json:"survival_days"`
	QueryCount   int    `json:"query_count"`
	Fabrications int    `json:"fabrications"`
	Fallbacks    int    `json:"graceful_fallbacks"`
	CreatedAt    string `json:"created_at"`
}

// GeneratorOverrides mirrors the board generator knobs; nil keeps the preset value.
type GeneratorOverrides struct {
	MinCards            *int     `json:"min_cards,omitempty"`
	MaxCards            *int     `json:"max_cards,omitempty"`
	ChaosLevel          *float64 `json:"chaos_level,omitempty"`
	StaleCardPercentage *float64 `json:"stale_card_percentage,omitempty"`
	BlockerDensity      *float64 `json:"blocker_density,omitempty"`
	CommentDensity      *float64 `json:"comment_density,omitempty"`
}

type SimulationRequest struct {
	Preset        string              `json:"preset,omitempty"`
	DurationDays  *int                `json:"duration_days,omitempty"`
	Seed          *uint64             `json:"seed,omitempty"`
	Agents        []string            `json:"agents,omitempty"`
	Generator     *GeneratorOverrides `json:"generator,omitempty"`
	IncludeResult bool                `json:"include_result,omitempty"`
}

// RunResult carries the run and, when requested, the raw result document.
type RunResult struct {
	Run    Run             `json:"run"`
	Result json.RawMessage `json:"result,omitempty"`
}

type DailyMetrics struct {
	Day                 int            `json:"day"`
	TotalCards          int            `json:"total_cards"`
	CardsByStatus       map[string]int `json:"cards_by_status"`
	TotalComments       int            `json:"total_comments"`
	CardsReassigned     int            `json:"cards_reassigned"`
	BlockerLinks        int            `json:"blocker_links"`
	Fabrications        int            `json:"fabrications"`
	GracefulFallbacks   int            `json:"graceful_fallbacks"`
	Queries             int            `json:"queries"`
	SuccessfulResponses int            `json:"successful_responses"`
}

type AskRequest struct {
	Query     string              `json:"query"`
	Preset    string              `json:"preset,omitempty"`
	Seed      *uint64             `json:"seed,omitempty"`
	Days      int                 `json:"days,omitempty"`
	Generator *GeneratorOverrides `json:"generator,omitempty"`
}

// Answer is an oracle reply; Data stays raw because its shape depends on Category.
type Answer struct {
	Category        string          `json:"category"`
	Success         bool            `json:"success"`
	Data            json.RawMessage `json:"data"`
	Confidence      float64         `json:"confidence"`
	FallbackMessage string          `json:"fallback_message,omitempty"`
}

type AskResponse struct {
	Seed       uint64 `json:"seed"`
	Day        int    `json:"day"`
	TotalCards int    `json:"total_cards"`
	Category   string `json:"category"`
	Answer     Answer `json:"answer"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedRuns wraps list responses with cursors.
type PaginatedRuns struct {
	Items      []Run  `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// RunFilters narrows ListRuns; zero values are ignored.
type RunFilters struct {
	Preset      string
	RequestedBy string
	Survived    *bool
	Limit       int
	Cursor      string
}

// CreateSimulation runs a simulation on the server and returns its archive entry.
func (c *Client) CreateSimulation(ctx context.Context, req SimulationRequest) (RunResult, error) {
	var resp RunResult
	err := c.do(ctx, http.MethodPost, "simulations", req, &resp)
	return resp, err
}

// ListRuns returns one page of archived runs, newest first.
func (c *Client) ListRuns(ctx context.Context, f RunFilters) (PaginatedRuns, error) {
	q := url.Values{}
	if f.Preset != "" {
		q.Set("preset", f.Preset)
	}
	if f.RequestedBy != "" {
		q.Set("requested_by", f.RequestedBy)
	}
	if f.Survived != nil {
		q.Set("survived", fmt.Sprintf("%t", *f.Survived))
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	if f.Cursor != "" {
		q.Set("cursor", f.Cursor)
	}
	endpoint := "runs"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedRuns
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetRun returns a run with its full result.
func (c *Client) GetRun(ctx context.Context, id string) (RunResult, error) {
	var resp RunResult
	err := c.do(ctx, http.MethodGet, "runs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// RunMetrics returns the per-day snapshots of a run.
func (c *Client) RunMetrics(ctx context.Context, id string) ([]DailyMetrics, error) {
	var resp struct {
		Days []DailyMetrics `json:"days"`
	}
	err := c.do(ctx, http.MethodGet, "runs/"+url.PathEscape(id)+"/metrics", nil, &resp)
	return resp.Days, err
}

// Ask queries the oracle about a generated board.
func (c *Client) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	var resp AskResponse
	err := c.do(ctx, http.MethodPost, "ask", req, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
