package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"convoy/internal/config"
)

const userAgent = "convoy/0.1"

// Event identifies what happened.
type Event string

const (
	EventFileFailed     Event = "file_failed"
	EventBatchCompleted Event = "batch_completed"
	EventWatchStopped   Event = "watch_stopped"
	EventTest           Event = "test"
)

// Payload carries event-specific values. Keys are documented per event in
// format.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventFileFailed:     cfg.Notifications.Failures,
			EventBatchCompleted: cfg.Notifications.BatchComplete,
			EventWatchStopped:   cfg.Notifications.WatchStopped,
			EventTest:           true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventFileFailed:
		name := filepath.Base(payload.text("path"))
		body := fmt.Sprintf("Conversion failed: %s", name)
		if reason := payload.text("reason"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return message{
			title:    "convoy - Failed",
			body:     body,
			tags:     []string{"convoy", "failure"},
			priority: "high",
		}, true
	case EventBatchCompleted:
		completed, failed, skipped := payload.count("completed"), payload.count("failed"), payload.count("skipped")
		title := "convoy - Batch Complete"
		if failed > 0 {
			title = "convoy - Batch Complete (with errors)"
		}
		body := fmt.Sprintf("%d converted, %d failed, %d skipped in %s",
			completed, failed, skipped, payload.elapsed("elapsed"))
		return message{
			title: title,
			body:  body,
			tags:  []string{"convoy", "batch", "completed"},
		}, true
	case EventWatchStopped:
		return message{
			title: "convoy - Watch Stopped",
			body:  fmt.Sprintf("Stopped watching %s after %d files", payload.text("watchDir"), payload.count("processed")),
			tags:  []string{"convoy", "watch", "stopped"},
		}, true
	case EventTest:
		return message{
			title:    "convoy - Test",
			body:     "Notification system test",
			tags:     []string{"convoy", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	if v, ok := p[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) elapsed(key string) string {
	d, _ := p[key].(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
