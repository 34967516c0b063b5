package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recast/internal/config"
)

const userAgent = "Recast-Go/0.1.0"

// Event identifies a conversion milestone worth notifying about.
type Event string

const (
	EventJobCompleted   Event = "job_completed"
	EventJobFailed      Event = "job_failed"
	EventJobCancelled   Event = "job_cancelled"
	EventQueueStarted   Event = "queue_started"
	EventQueueCompleted Event = "queue_completed"
	EventQueuePaused    Event = "queue_paused"
	EventQueueResumed   Event = "queue_resumed"
	EventTest           Event = "test"
)

// Payload carries event-specific values used to render notification text.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		failed:    cfg.Notifications.Failed,
		queue:     cfg.Notifications.Queue,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
	queue     bool
}

// Publish renders the event into an ntfy message and posts it. Events
// suppressed by configuration are dropped without error.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventJobCompleted:
		return n.completed
	case EventJobFailed, EventJobCancelled:
		return n.failed
	case EventQueueStarted, EventQueueCompleted, EventQueuePaused, EventQueueResumed:
		return n.queue
	default:
		return true
	}
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobCompleted:
		body := fmt.Sprintf("✅ Converted: %s", payloadString(payload, "source"))
		if output := payloadString(payload, "output"); output != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, output)
		}
		return message{
			title: "Recast - Conversion Complete",
			body:  body,
			tags:  []string{"recast", "convert", "completed"},
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("❌ Conversion failed: %s", payloadString(payload, "source"))
		if detail := payloadString(payload, "error"); detail != "" {
			body = fmt.Sprintf("%s\n%s", body, detail)
		}
		return message{
			title:    "Recast - Conversion Failed",
			body:     body,
			tags:     []string{"recast", "convert", "failed"},
			priority: "high",
		}, true
	case EventJobCancelled:
		return message{
			title: "Recast - Conversion Cancelled",
			body:  fmt.Sprintf("Conversion cancelled: %s", payloadString(payload, "source")),
			tags:  []string{"recast", "convert", "cancelled"},
		}, true
	case EventQueueStarted:
		return message{
			title: "Recast - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %d items", payloadInt(payload, "count")),
			tags:  []string{"recast", "queue", "started"},
		}, true
	case EventQueueCompleted:
		return renderQueueCompleted(payload), true
	case EventQueuePaused:
		return message{
			title: "Recast - Queue Paused",
			body:  "Queue processing paused",
			tags:  []string{"recast", "queue", "paused"},
		}, true
	case EventQueueResumed:
		return message{
			title: "Recast - Queue Resumed",
			body:  "Queue processing resumed",
			tags:  []string{"recast", "queue", "resumed"},
		}, true
	case EventTest:
		return message{
			title:    "Recast - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"recast", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func renderQueueCompleted(payload Payload) message {
	duration := payloadDuration(payload, "duration").Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	processed := payloadInt(payload, "processed")
	failed := payloadInt(payload, "failed")
	if failed == 0 {
		return message{
			title: "Recast - Queue Complete",
			body:  fmt.Sprintf("Queue processing complete: %d items converted in %s", processed, duration),
			tags:  []string{"recast", "queue", "completed"},
		}
	}
	return message{
		title: "Recast - Queue Complete (with errors)",
		body:  fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, duration),
		tags:  []string{"recast", "queue", "completed"},
	}
}

func payloadString(payload Payload, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadInt(payload Payload, key string) int {
	if v, ok := payload[key].(int); ok {
		return v
	}
	return 0
}

func payloadDuration(payload Payload, key string) time.Duration {
	if v, ok := payload[key].(time.Duration); ok {
		return v
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

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
