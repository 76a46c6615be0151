package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"smoothieq/internal/config"
)

const userAgent = "smoothieq/0.1.0"

// QueueSummary describes a finished worker run.
type QueueSummary struct {
	Completed int
	Failed    int
	Cancelled int
	Duration  time.Duration
}

// Service defines the notification surface used by the workflow manager.
type Service interface {
	NotifyTaskFailed(ctx context.Context, taskID int64, inputPath, reason string) error
	NotifyQueueFinished(ctx context.Context, summary QueueSummary) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
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
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		taskFailed:    cfg.Notifications.TaskFailed,
		queueFinished: cfg.Notifications.QueueFinished,
	}
}

// payload is one ntfy message. Title, tags and priority travel as headers.
type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

func (p payload) request(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(p.message))
	if err != nil {
		return nil, fmt.Errorf("build ntfy request: %w", err)
	}
	headers := map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": "text/plain; charset=utf-8",
		"Title":        p.title,
		"Tags":         strings.Join(p.tags, ","),
		"Priority":     p.priority,
	}
	for key, value := range headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
	return req, nil
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	taskFailed    bool
	queueFinished bool
}

func (n *ntfyService) NotifyTaskFailed(ctx context.Context, taskID int64, inputPath, reason string) error {
	if !n.taskFailed {
		return nil
	}
	name := filepath.Base(strings.TrimSpace(inputPath))
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	data := payload{
		title:    "smoothieq - Task Failed",
		message:  fmt.Sprintf("❌ Task %d (%s) failed\n%s", taskID, name, reason),
		tags:     []string{"smoothieq", "task", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueFinished(ctx context.Context, summary QueueSummary) error {
	if !n.queueFinished {
		return nil
	}
	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := "smoothieq - Queue Finished"
	message := fmt.Sprintf("✅ %d rendered in %s", summary.Completed, duration)
	if summary.Failed > 0 || summary.Cancelled > 0 {
		title = "smoothieq - Queue Finished (with errors)"
		message = fmt.Sprintf("%d rendered, %d failed, %d cancelled in %s",
			summary.Completed, summary.Failed, summary.Cancelled, duration)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"smoothieq", "queue", "finished"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "smoothieq - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"smoothieq", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	req, err := data.request(ctx, n.endpoint)
	if err != nil {
		return err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyTaskFailed(context.Context, int64, string, string) error { return nil }
func (noopService) NotifyQueueFinished(context.Context, QueueSummary) error       { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
