package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"memeshop/internal/config"
)

const userAgent = "memeshop/0.1.0"

// Event identifies a pipeline milestone worth pushing to a phone.
type Event string

const (
	EventRunCompleted     Event = "run_completed"
	EventChannelExhausted Event = "channel_exhausted"
	EventPublishFailed    Event = "publish_failed"
	EventListingsPruned   Event = "listings_pruned"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries event-specific values keyed by name.
type Payload map[string]any

// Service defines the notification surface exposed to pipeline stages.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
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
			EventRunCompleted:     cfg.Notifications.RunSummary,
			EventChannelExhausted: cfg.Notifications.Exhausted,
			EventPublishFailed:    cfg.Notifications.Errors,
			EventListingsPruned:   cfg.Notifications.RunSummary,
			EventError:            cfg.Notifications.Errors,
			EventTest:             true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := n.buildPayload(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) buildPayload(event Event, data Payload) (payload, bool) {
	switch event {
	case EventRunCompleted:
		published := intValue(data, "published")
		posted := intValue(data, "posted")
		exhausted := intValue(data, "exhausted")
		failed := intValue(data, "publishFailed")
		duration := durationText(data["duration"])
		if published == 0 && posted == 0 && exhausted == 0 && failed == 0 {
			return payload{}, false
		}
		title := "memeshop - Run Complete"
		message := fmt.Sprintf("🛒 %d listed, 📣 %d posted in %s", published, posted, duration)
		if exhausted > 0 || failed > 0 {
			title = "memeshop - Run Complete (with errors)"
			message = fmt.Sprintf("%s\n%d publish failures, %d channel posts abandoned", message, failed, exhausted)
		}
		return payload{
			title:   title,
			message: message,
			tags:    []string{"memeshop", "run", "completed"},
		}, true
	case EventChannelExhausted:
		channel := stringValue(data, "channel")
		return payload{
			title:    "memeshop - Post Abandoned",
			message:  fmt.Sprintf("📵 %s gave up on \"%s\" after %d attempts", channel, stringValue(data, "title"), intValue(data, "attempts")),
			tags:     []string{"memeshop", "post", channel},
			priority: "high",
		}, true
	case EventPublishFailed:
		return payload{
			title:   "memeshop - Listing Failed",
			message: fmt.Sprintf("Could not list \"%s\": %s", stringValue(data, "title"), stringValue(data, "error")),
			tags:    []string{"memeshop", "publish", "failed"},
		}, true
	case EventListingsPruned:
		count := intValue(data, "count")
		if count == 0 {
			return payload{}, false
		}
		return payload{
			title:   "memeshop - Listings Pruned",
			message: fmt.Sprintf("🧹 Removed %d unsold listings", count),
			tags:    []string{"memeshop", "prune"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := stringValue(data, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if text := stringValue(data, "error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "memeshop - Error",
			message:  builder.String(),
			tags:     []string{"memeshop", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "memeshop - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"memeshop", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func stringValue(data Payload, key string) string {
	if data == nil {
		return ""
	}
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intValue(data Payload, key string) int {
	if data == nil {
		return 0
	}
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func durationText(value any) string {
	d, _ := value.(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
