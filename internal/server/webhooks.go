package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"fizzysim/internal/config"
	"fizzysim/internal/repo"
	"fizzysim/internal/simulation"
)

const (
	defaultWebhookTimeout = 5 * time.Second

	EventRunCompleted  = "run.completed"
	EventRunFabricated = "run.fabricated"
)

type webhookDispatcher struct {
	webhooks []config.WebhookConfig
	client   *http.Client
	log      *slog.Logger
	// deliveries, when set, receives every delivery result
	deliveries chan<- error
}

func newWebhookDispatcher(hooks []config.WebhookConfig, log *slog.Logger) *webhookDispatcher {
	var active []config.WebhookConfig
	for _, hook := range hooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		active = append(active, hook)
	}
	if len(active) == 0 {
		return nil
	}
	return &webhookDispatcher{
		webhooks: active,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      log,
	}
}

type webhookEvent struct {
	ID      string                    `json:"id"`
	Type    string                    `json:"type"`
	TS      string                    `json:"ts"`
	Run     repo.Run                  `json:"run"`
	Janitor simulation.JanitorMetrics `json:"janitor"`
}

func runEvents(run repo.Run) []string {
	events := []string{EventRunCompleted}
	if !run.Survived {
		events = append(events, EventRunFabricated)
	}
	return events
}

// notify fans the run's events out to every matching hook. Delivery happens
// off the request goroutine.
func (d *webhookDispatcher) notify(_ context.Context, run repo.Run, res simulation.Result) {
	for _, evtType := range runEvents(run) {
		evt := webhookEvent{
			ID:      uuid.NewString(),
			Type:    evtType,
			TS:      time.Now().UTC().Format(time.RFC3339),
			Run:     run,
			Janitor: res.JanitorMetrics,
		}
		for _, hook := range d.webhooks {
			if !newEventFilter(hook.Events).match(evtType) {
				continue
			}
			go func(hook config.WebhookConfig) {
				err := d.postEvent(context.Background(), hook, evt)
				if err != nil {
					d.log.Warn("webhook delivery failed", "url", hook.URL, "event", evt.Type, "err", err)
				}
				if d.deliveries != nil {
					d.deliveries <- err
				}
			}(hook)
		}
	}
}

func (d *webhookDispatcher) postEvent(ctx context.Context, hook config.WebhookConfig, evt webhookEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(hook.TimeoutSeconds) * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fizzy-Event", evt.Type)
	req.Header.Set("X-Fizzy-Delivery", evt.ID)
	req.Header.Set("X-Fizzy-Run", evt.Run.ID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Fizzy-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
