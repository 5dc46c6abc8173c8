package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"relocate/internal/config"
	"relocate/internal/notifications"
)

type capturedRequest struct {
	title    string
	body     string
	tags     string
	priority string
}

func newTopic(t *testing.T, status int) (*config.Config, <-chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- capturedRequest{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL + "/relocate"
	return &cfg, requests
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRunFinished, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestRunFinishedMessage(t *testing.T) {
	cfg, requests := newTopic(t, http.StatusOK)
	svc := notifications.NewService(cfg)

	err := svc.Publish(context.Background(), notifications.EventRunFinished, notifications.Payload{
		"completed": 2,
		"skipped":   1,
		"deferred":  0,
		"failed":    1,
		"duration":  95 * time.Second,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got := <-requests
	if !strings.HasSuffix(got.title, "Migration Complete (with errors)") {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.body != "2 completed, 1 skipped, 0 deferred, 1 failed in 1m35s" {
		t.Fatalf("unexpected body %q", got.body)
	}
	if got.priority != "high" || got.tags != "relocate,run,completed" {
		t.Fatalf("unexpected headers %+v", got)
	}
}

func TestResourceFailedIncludesHint(t *testing.T) {
	cfg, requests := newTopic(t, http.StatusOK)
	svc := notifications.NewService(cfg)

	err := svc.Publish(context.Background(), notifications.EventResourceFailed, notifications.Payload{
		"resource": "docker",
		"error":    "verification failed",
		"hint":     "check the service status",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got := <-requests
	if got.body != "docker failed: verification failed\ncheck the service status" {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestPublishReportsServerErrors(t *testing.T) {
	cfg, _ := newTopic(t, http.StatusForbidden)
	svc := notifications.NewService(cfg)
	err := svc.Publish(context.Background(), notifications.EventTestNotification, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestPublishRejectsUnknownEvent(t *testing.T) {
	cfg, _ := newTopic(t, http.StatusOK)
	svc := notifications.NewService(cfg)
	if err := svc.Publish(context.Background(), notifications.Event("bogus"), nil); err == nil {
		t.Fatal("expected unknown event to fail")
	}
}
