// Package marketdata fetches daily bars from an upstream HTTP provider.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/time/rate"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/domain/model"
)

const (
	barsPath   = "/v1/bars"
	dateLayout = "2006-01-02"
)

var _ core.MarketDataSource = (*Source)(nil)

// Options configures Source.
type Options struct {
	Config     config.MarketDataConfig
	HTTPClient *http.Client // Optional: overrides the transport
	Logger     *slog.Logger
}

// Source is a rate-limited client for the provider's bars endpoint. The bar
// array is located in the response with a JMESPath expression so providers
// with different envelopes can be used without code changes.
type Source struct {
	http    *resty.Client
	limiter *rate.Limiter
	expr    string
	bars    jmespath.JMESPath
	logger  *slog.Logger
}

// New builds a Source. The expression is compiled once to fail fast.
func New(opts Options) (*Source, error) {
	cfg := opts.Config
	cfg.Sanitize()
	if cfg.BaseURL == "" {
		return nil, errors.New("market data base url is required")
	}
	bars, err := jmespath.Compile(cfg.BarsExpression)
	if err != nil {
		return nil, fmt.Errorf("compile bars expression %q: %w", cfg.BarsExpression, err)
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(250*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(retryable).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		rc.SetHeader("X-API-Key", cfg.APIKey)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		expr:    cfg.BarsExpression,
		bars:    bars,
		logger:  logger.With("component", "market_data_source"),
	}, nil
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return resp != nil && (resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests)
}

// FetchBars returns the daily bars for ticker between start and end inclusive.
func (s *Source) FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]model.Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ticker": ticker,
			"start":  start.UTC().Format(dateLayout),
			"end":    end.UTC().Format(dateLayout),
		}).
		Get(barsPath)
	if err != nil {
		return nil, fmt.Errorf("request bars: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("market data provider %s: %s", resp.Status(), truncate(resp.String(), 200))
	}

	bars, err := s.decode(resp.Body(), ticker)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "fetched bars", "ticker", ticker, "count", len(bars))
	return bars, nil
}

func (s *Source) decode(body []byte, ticker string) ([]model.Bar, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	selected, err := s.bars.Search(doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", s.expr, err)
	}
	if selected == nil {
		return nil, nil
	}
	rows, ok := selected.([]any)
	if !ok {
		return nil, fmt.Errorf("expression %q selected %T, want an array", s.expr, selected)
	}

	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		bar, err := parseBar(row)
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		bar.Ticker = ticker
		bars = append(bars, bar)
	}
	return bars, nil
}

// wireBar accepts the provider's row shape; the date may be a date, an
// RFC 3339 timestamp, or Unix seconds.
type wireBar struct {
	Date   json.RawMessage `json:"date"`
	Open   float64         `json:"open"`
	High   float64         `json:"high"`
	Low    float64         `json:"low"`
	Close  float64         `json:"close"`
	Volume float64         `json:"volume"`
}

func parseBar(row any) (model.Bar, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return model.Bar{}, err
	}
	var w wireBar
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.Bar{}, err
	}
	date, err := parseDate(w.Date)
	if err != nil {
		return model.Bar{}, err
	}
	return model.Bar{
		Date:   date,
		Open:   w.Open,
		High:   w.High,
		Low:    w.Low,
		Close:  w.Close,
		Volume: int64(w.Volume),
	}, nil
}

func parseDate(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, errors.New("missing date")
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return time.Unix(int64(secs), 0).UTC().Truncate(24 * time.Hour), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("date %s: %w", raw, err)
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: unsupported format", s)
	}
	return t.UTC().Truncate(24 * time.Hour), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
