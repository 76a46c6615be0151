package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"smoothieq/internal/config"
	"smoothieq/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newServer(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyTaskFailed(context.Background(), 1, "/a.mkv", "boom"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.NotifyQueueFinished(context.Background(), notifications.QueueSummary{}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	srv, requests := newServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyTaskFailed(ctx, 7, "/videos/holiday.mkv", "Task 7 failed with status: exit status 1"); err != nil {
		t.Fatalf("NotifyTaskFailed: %v", err)
	}
	if err := svc.NotifyQueueFinished(ctx, notifications.QueueSummary{Completed: 3, Duration: 90 * time.Second}); err != nil {
		t.Fatalf("NotifyQueueFinished: %v", err)
	}
	if err := svc.NotifyQueueFinished(ctx, notifications.QueueSummary{Completed: 1, Failed: 1, Cancelled: 2, Duration: time.Second}); err != nil {
		t.Fatalf("NotifyQueueFinished: %v", err)
	}

	got := requests()
	if len(got) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(got))
	}
	if got[0].title != "smoothieq - Task Failed" || got[0].priority != "high" {
		t.Fatalf("unexpected failure headers: %+v", got[0])
	}
	if !strings.Contains(got[0].body, "holiday.mkv") || !strings.Contains(got[0].body, "exit status 1") {
		t.Fatalf("unexpected failure body: %q", got[0].body)
	}
	if got[1].body != "✅ 3 rendered in 1m30s" || got[1].tags != "smoothieq,queue,finished" {
		t.Fatalf("unexpected finish payload: %+v", got[1])
	}
	if got[2].title != "smoothieq - Queue Finished (with errors)" || got[2].body != "1 rendered, 1 failed, 2 cancelled in 1s" {
		t.Fatalf("unexpected finish-with-errors payload: %+v", got[2])
	}
}

func TestNtfyServiceRespectsToggles(t *testing.T) {
	srv, requests := newServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.TaskFailed = false
	cfg.Notifications.QueueFinished = false
	svc := notifications.NewService(&cfg)

	_ = svc.NotifyTaskFailed(context.Background(), 1, "a.mp4", "x")
	_ = svc.NotifyQueueFinished(context.Background(), notifications.QueueSummary{})
	if n := len(requests()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if n := len(requests()); n != 1 {
		t.Fatalf("expected test notification to bypass toggles, got %d", n)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status error, got %v", err)
	}
}
