package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"relocate/internal/config"
)

const userAgent = "relocate/1"

// Event identifies a notification type.
type Event string

const (
	EventRunStarted       Event = "run_started"
	EventResourceFailed   Event = "resource_failed"
	EventRunFinished      Event = "run_finished"
	EventRunInterrupted   Event = "run_interrupted"
	EventTestNotification Event = "test"
)

// Payload carries event fields. Keys used per event:
//
//	run_started:     resources (int), mode (string)
//	resource_failed: resource (string), error (string), hint (string)
//	run_finished:    completed, skipped, deferred, failed (int), duration (time.Duration)
//	run_interrupted: resume (string)
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy notifier, or a no-op when no topic is configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return &ntfyService{
		endpoint: topic,
		host:     host,
		client:   &http.Client{Timeout: timeout},
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
	host     string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunStarted:
		return message{
			title: n.title("Migration Started"),
			body:  fmt.Sprintf("Migrating %d resource(s) (%s run)", intValue(payload, "resources"), stringValue(payload, "mode")),
			tags:  []string{"relocate", "run", "started"},
		}, true
	case EventResourceFailed:
		body := fmt.Sprintf("%s failed: %s", stringValue(payload, "resource"), stringValue(payload, "error"))
		if hint := stringValue(payload, "hint"); hint != "" {
			body += "\n" + hint
		}
		return message{
			title:    n.title("Resource Failed"),
			body:     body,
			tags:     []string{"relocate", "error", "alert"},
			priority: "high",
		}, true
	case EventRunFinished:
		failed := intValue(payload, "failed")
		duration := durationValue(payload, "duration").Round(time.Second)
		body := fmt.Sprintf("%d completed, %d skipped, %d deferred, %d failed in %s",
			intValue(payload, "completed"),
			intValue(payload, "skipped"),
			intValue(payload, "deferred"),
			failed,
			duration,
		)
		msg := message{
			title: n.title("Migration Complete"),
			body:  body,
			tags:  []string{"relocate", "run", "completed"},
		}
		if failed > 0 {
			msg.title = n.title("Migration Complete (with errors)")
			msg.priority = "high"
		}
		return msg, true
	case EventRunInterrupted:
		return message{
			title:    n.title("Migration Interrupted"),
			body:     "Run stopped between steps. Resume with: " + stringValue(payload, "resume"),
			tags:     []string{"relocate", "run", "interrupted"},
			priority: "high",
		}, true
	case EventTestNotification:
		return message{
			title:    n.title("Test"),
			body:     "Notification system test",
			tags:     []string{"relocate", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) title(suffix string) string {
	return fmt.Sprintf("relocate on %s - %s", n.host, suffix)
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

func stringValue(payload Payload, key string) string {
	if v, ok := payload[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intValue(payload Payload, key string) int {
	if v, ok := payload[key].(int); ok {
		return v
	}
	return 0
}

func durationValue(payload Payload, key string) time.Duration {
	if v, ok := payload[key].(time.Duration); ok && v > 0 {
		return v
	}
	return 0
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
