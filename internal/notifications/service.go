package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shikiwatch/internal/config"
)

const (
	userAgent     = "shikiwatch"
	shikimoriSite = "https://shikimori.one"
)

// Event identifies a notification kind.
type Event string

const (
	EventProgress         Event = "progress"
	EventCompleted        Event = "completed"
	EventRewatchCompleted Event = "rewatch_completed"
	EventStatusChanged    Event = "status_changed"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries event fields. Keys: name, url, episode, total, score,
// rewatches, from, to, context, error.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
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
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		progress:  cfg.Notifications.Progress,
		completed: cfg.Notifications.Completed,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
	click    string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	progress  bool
	completed bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, p Payload) (message, bool) {
	name := p.text("name")
	click := absoluteURL(p.text("url"))
	switch event {
	case EventProgress:
		if !n.progress {
			return message{}, false
		}
		body := fmt.Sprintf("📺 %s: episode %d", name, p.number("episode"))
		if total := p.number("total"); total > 0 {
			body += fmt.Sprintf(" of %d", total)
		}
		return message{title: "shikiwatch - Episode Watched", body: body, tags: []string{"shikiwatch", "progress"}, click: click}, true
	case EventCompleted:
		if !n.progress && !n.completed {
			return message{}, false
		}
		body := "🎉 Completed: " + name + scoreSuffix(p)
		return message{title: "shikiwatch - Completed", body: body, tags: []string{"shikiwatch", "completed"}, click: click}, true
	case EventRewatchCompleted:
		if !n.progress && !n.completed {
			return message{}, false
		}
		body := fmt.Sprintf("🔄 Rewatched: %s (rewatch #%d)", name, p.number("rewatches")) + scoreSuffix(p)
		return message{title: "shikiwatch - Rewatched", body: body, tags: []string{"shikiwatch", "rewatch", "completed"}, click: click}, true
	case EventStatusChanged:
		if !n.progress {
			return message{}, false
		}
		body := fmt.Sprintf("📊 %s: %s → %s", name, p.text("from"), p.text("to"))
		return message{title: "shikiwatch - Status Changed", body: body, tags: []string{"shikiwatch", "status"}, click: click}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := p.text("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := p.text("error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{title: "shikiwatch - Error", body: b.String(), tags: []string{"shikiwatch", "error", "alert"}, priority: "high"}, true
	case EventTest:
		return message{title: "shikiwatch - Test", body: "🧪 Notification system test", tags: []string{"shikiwatch", "test"}, priority: "low"}, true
	default:
		return message{}, false
	}
}

func scoreSuffix(p Payload) string {
	if score := p.number("score"); score > 0 {
		return fmt.Sprintf("\nScore: %d/10", score)
	}
	return ""
}

func absoluteURL(raw string) string {
	if strings.HasPrefix(raw, "/") {
		return shikimoriSite + raw
	}
	return raw
}

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) number(key string) int {
	switch v := p[key].(type) {
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
	if msg.click != "" {
		req.Header.Set("Click", msg.click)
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
