package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quantsignal/forecast-api/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	// HealthURL, when set, is linked from health events.
	HealthURL string
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

// Client delivers notifications to a Slack webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	healthURL  string
	http       *resty.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(timeout).
		SetRetryCount(max(cfg.RetryLimit, 0)).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryOnServerError)

	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   fallbackString(strings.TrimSpace(cfg.Username), "forecast"),
		healthURL:  strings.TrimSpace(cfg.HealthURL),
		http:       rc,
	}, nil
}

func retryOnServerError(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp != nil && (resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests)
}

// Send posts a formatted message to Slack.
func (c *Client) Send(ctx context.Context, event notify.Event) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(c.formatMessage(event)).
		Post(c.webhookURL)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack webhook %s: %s", resp.Status(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func (c *Client) formatMessage(event notify.Event) map[string]any {
	timestamp := event.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	text := strings.Builder{}
	writeSlackHeader(&text, event)
	appendSlackDetails(&text, event, c.healthLink(event))
	appendSlackMetadata(&text, event.Metadata)
	writeSlackTimestamp(&text, timestamp)

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func (c *Client) healthLink(event notify.Event) string {
	if c.healthURL == "" || event.Kind == notify.KindJobFailure {
		return ""
	}
	return "<" + c.healthURL + "|health report>"
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func writeSlackHeader(text *strings.Builder, event notify.Event) {
	switch event.Kind {
	case notify.KindHealthDegraded:
		text.WriteString("*Health alert*")
	case notify.KindHealthRecovered:
		text.WriteString("*Health recovered*")
	default:
		text.WriteString("*Job failure alert*")
	}
	if event.Subject != "" {
		text.WriteString(" `")
		text.WriteString(escapeSlackText(event.Subject))
		text.WriteByte('`')
	}
	text.WriteByte('\n')
}

func appendSlackDetails(text *strings.Builder, event notify.Event, link string) {
	fields := []struct {
		label string
		value string
	}{
		{"Severity", fallbackString(event.Severity, notify.SeverityCritical)},
		{"Summary", escapeSlackText(event.Summary)},
		{"Error class", event.ErrorClass},
		{"Error", escapeSlackText(event.Error)},
		{"Details", link},
	}

	for _, field := range fields {
		appendSlackField(text, field.label, field.value)
	}
}

func escapeSlackText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(value)
}

func appendSlackField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}

func appendSlackMetadata(text *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	text.WriteString("• Metadata:\n")
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		text.WriteString("    • ")
		text.WriteString(k)
		text.WriteString(": ")
		text.WriteString(escapeSlackText(metadata[k]))
		text.WriteByte('\n')
	}
}

func writeSlackTimestamp(text *strings.Builder, timestamp time.Time) {
	text.WriteString("• Timestamp: ")
	text.WriteString(timestamp.UTC().Format(time.RFC3339))
}
