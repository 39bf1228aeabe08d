// Package healthclient reads the health report of a remote forecast-api instance.
package healthclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quantsignal/forecast-api/internal/data"
	"github.com/quantsignal/forecast-api/internal/domain/model"
)

// Config configures Client.
type Config struct {
	URL        string // Required: full URL of /health/check
	Timeout    time.Duration
	HTTPClient *http.Client
	Clock      data.TimeProvider
	Logger     *slog.Logger
}

// Client fetches /health/check. It satisfies service.HealthChecker so a
// watcher can run in a separate process from the API.
type Client struct {
	url    string
	http   *resty.Client
	clock  data.TimeProvider
	logger *slog.Logger
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("health check url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(timeout).SetHeader("Accept", "application/json")

	clock := cfg.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{url: url, http: rc, clock: clock, logger: logger.With("component", "health_client")}, nil
}

// Check returns the remote report. 200 and 207 both carry a report body.
// Any failure to obtain one is itself reported as unhealthy.
func (c *Client) Check(ctx context.Context) model.HealthReport {
	report, err := c.fetch(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "remote health check failed", "url", c.url, "error", err)
		return c.unreachable(err)
	}
	return report
}

func (c *Client) fetch(ctx context.Context) (model.HealthReport, error) {
	var report model.HealthReport
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&report).
		Get(c.url)
	if err != nil {
		return model.HealthReport{}, fmt.Errorf("request: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusMultiStatus:
	default:
		return model.HealthReport{}, fmt.Errorf("unexpected status %s", resp.Status())
	}
	if report.Status == "" {
		return model.HealthReport{}, errors.New("response has no status")
	}
	return report, nil
}

func (c *Client) unreachable(err error) model.HealthReport {
	down := model.ComponentHealth{Status: model.ComponentError, Message: "unreachable: " + err.Error()}
	return model.HealthReport{
		Status:    model.HealthUnhealthy,
		Timestamp: c.clock.Now().UTC(),
		Components: model.HealthComponents{
			Database:        down,
			CounterStore:    down,
			BackgroundTasks: model.BackgroundTasksHealth{Status: model.ComponentError, Message: down.Message},
			Models:          model.ModelsHealth{Status: model.ComponentError, Message: down.Message},
		},
	}
}
