package pagerduty

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quantsignal/forecast-api/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Endpoint   string
	Timeout    time.Duration
	RetryLimit int
	HTTPClient *http.Client
}

// Client publishes events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	http       *resty.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient constructs a PagerDuty events client from config. Callers must provide a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
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
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			// Events API asks clients to retry 429 and 5xx.
			return resp != nil && (resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500)
		})

	return &Client{
		routingKey: key,
		source:     fallbackString(strings.TrimSpace(cfg.Source), "forecast"),
		component:  fallbackString(strings.TrimSpace(cfg.Component), "forecast"),
		endpoint:   fallbackString(strings.TrimSpace(cfg.Endpoint), APIEndpoint),
		http:       rc,
	}, nil
}

// Send submits a trigger event, or a resolve event for recoveries.
func (c *Client) Send(ctx context.Context, event notify.Event) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(c.buildEvent(event)).
		Post(c.endpoint)
	if err != nil {
		return fmt.Errorf("pagerduty request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("pagerduty api %s: %s", resp.Status(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func (c *Client) buildEvent(event notify.Event) map[string]any {
	action := "trigger"
	if event.Resolves() {
		action = "resolve"
	}

	body := map[string]any{
		"routing_key":  c.routingKey,
		"event_action": action,
		"dedup_key":    event.DedupKey(),
	}
	if action == "resolve" {
		return body
	}

	occurredAt := event.OccurredAt.UTC()
	if event.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	custom := map[string]any{
		"kind":        string(event.Kind),
		"subject":     event.Subject,
		"error":       event.Error,
		"error_class": event.ErrorClass,
	}
	for k, v := range event.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}

	summary := event.Summary
	if summary == "" {
		summary = fmt.Sprintf("Job %s failed", fallbackString(event.Subject, "unknown"))
	}

	body["payload"] = map[string]any{
		"summary":        summary,
		"severity":       fallbackString(strings.ToLower(event.Severity), notify.SeverityCritical),
		"source":         c.source,
		"component":      c.component,
		"timestamp":      occurredAt.Format(time.RFC3339),
		"custom_details": custom,
	}
	return body
}

func fallbackString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
