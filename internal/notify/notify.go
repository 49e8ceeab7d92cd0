// Package notify delivers signal and run notifications over webhook and Telegram.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"swing-trader/internal/config"
	"swing-trader/internal/errors"
	"swing-trader/internal/models"
	"swing-trader/internal/security"
	"swing-trader/pkg/utils"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendSignals(ctx context.Context, signals []models.Signal) error
	SendRunSummary(ctx context.Context, run models.RunRecord) error
	SendError(ctx context.Context, err error, job models.JobName) error
}

// Channel is one delivery channel.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationSignal  NotificationType = "signal"
	NotificationSummary NotificationType = "summary"
	NotificationError   NotificationType = "error"
)

const defaultTimeout = 10 * time.Second

// MultiNotifier fans a notification out to every enabled channel.
type MultiNotifier struct {
	mu       sync.RWMutex
	channels []Channel
}

// New builds a notifier from configuration. Disabled notifications yield a
// notifier with no channels.
func New(cfg config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{}
	if !cfg.Enabled {
		return mn
	}
	if cfg.Webhook.Enabled {
		mn.AddChannel(NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.Enabled {
		mn.AddChannel(NewTelegramNotifier(cfg.Telegram))
	}
	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Enabled reports whether any channel would deliver.
func (mn *MultiNotifier) Enabled() bool {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	for _, ch := range mn.channels {
		if ch.IsEnabled() {
			return true
		}
	}
	return false
}

// Send delivers n to every enabled channel. One failing channel does not stop
// the others; their errors are joined.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []error
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, n); err != nil {
			errs = append(errs, errors.Wrap(err, ch.Name()))
		}
	}
	return errors.Join(errs...)
}

// SendSignals announces the signals of a finalization run. Nothing is sent
// when there are none.
func (mn *MultiNotifier) SendSignals(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	var sb strings.Builder
	symbols := make([]string, 0, len(signals))
	for _, s := range signals {
		symbols = append(symbols, s.Symbol)
		fmt.Fprintf(&sb, "%s: %s above level %s\n", s.Symbol, formatPrice(s.CurrentPrice), formatPrice(s.Candle3High))
	}
	sb.WriteString(fmt.Sprintf("\nMode: %s | %s", signals[0].Mode, signals[0].SignalDate.In(utils.IndiaLocation).Format("02-Jan-2006 15:04 IST")))

	return mn.Send(ctx, Notification{
		Type:    NotificationSignal,
		Title:   fmt.Sprintf("📈 %d breakout signal(s)", len(signals)),
		Message: sb.String(),
		Data: map[string]interface{}{
			"symbols": symbols,
			"mode":    string(signals[0].Mode),
		},
	})
}

// SendRunSummary reports the counters of a finished run.
func (mn *MultiNotifier) SendRunSummary(ctx context.Context, run models.RunRecord) error {
	emoji := "✅"
	if run.Status == models.RunFailed {
		emoji = "❌"
	}

	message := fmt.Sprintf("Scanned: %d\nMatched: %d\nSkipped: %d\nFailed: %d\nFinished: %s",
		run.Scanned, run.Matched, run.Skipped, run.Failed,
		run.FinishedAt.In(utils.IndiaLocation).Format("15:04:05 IST"))
	if run.Error != "" {
		message += "\nError: " + run.Error
	}

	return mn.Send(ctx, Notification{
		Type:    NotificationSummary,
		Title:   fmt.Sprintf("%s %s %s", emoji, run.Job, strings.ToLower(string(run.Status))),
		Message: message,
		Data: map[string]interface{}{
			"run_id":  run.ID,
			"job":     string(run.Job),
			"status":  string(run.Status),
			"scanned": run.Scanned,
			"matched": run.Matched,
			"skipped": run.Skipped,
			"failed":  run.Failed,
		},
	})
}

// SendError reports a job failure.
func (mn *MultiNotifier) SendError(ctx context.Context, err error, job models.JobName) error {
	return mn.Send(ctx, Notification{
		Type:    NotificationError,
		Title:   "❌ Job failed",
		Message: fmt.Sprintf("Job: %s\nError: %v", job, err),
		Data: map[string]interface{}{
			"job":   string(job),
			"error": err.Error(),
		},
	})
}

func formatPrice(v float64) string {
	return fmt.Sprintf("₹%.2f", v)
}

// WebhookNotifier posts notifications as JSON.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (w *WebhookNotifier) Name() string    { return "webhook" }
func (w *WebhookNotifier) IsEnabled() bool { return w.enabled }

// Send posts n to the webhook URL.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}
	return postJSON(ctx, w.client, w.url, payload, "SwingTrader/1.0")
}

// TelegramNotifier sends notifications through the Telegram bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	apiBase  string
	client   *http.Client
}

// NewTelegramNotifier creates a new TelegramNotifier.
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		apiBase:  "https://api.telegram.org",
		client:   &http.Client{Timeout: defaultTimeout},
	}
}

func (t *TelegramNotifier) Name() string    { return "telegram" }
func (t *TelegramNotifier) IsEnabled() bool { return t.enabled }

// Send sends n as an HTML formatted message.
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	if !t.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("<b>%s</b>\n\n%s", escapeHTML(n.Title), escapeHTML(n.Message)),
		"parse_mode": "HTML",
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	if err := postJSON(ctx, t.client, url, payload, ""); err != nil {
		// Transport errors quote the request URL, which carries the token.
		return fmt.Errorf("%s", security.MaskSecrets(err.Error()))
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}, userAgent string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// escapeHTML escapes HTML special characters for Telegram.
func escapeHTML(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
