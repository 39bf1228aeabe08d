package config

import (
	"strings"
	"time"
)

// JobsConfig contains schedules and knobs for the background jobs.
// All hours are interpreted in the scheduler's location (UTC unless TZ is set).
type JobsConfig struct {
	RetrainingHour      int `env:"RETRAINING_HOUR"       envDefault:"1"`
	RetrainingMinute    int `env:"RETRAINING_MINUTE"     envDefault:"0"`
	TrainingHistoryDays int `env:"TRAINING_HISTORY_DAYS" envDefault:"3650"`
	PopularTickersLimit int `env:"POPULAR_TICKERS_LIMIT" envDefault:"5"`
	PopularLookbackDays int `env:"POPULAR_LOOKBACK_DAYS" envDefault:"7"`

	MarketHoursStart          int `env:"MARKET_HOURS_START"           envDefault:"9"`
	MarketHoursEnd            int `env:"MARKET_HOURS_END"             envDefault:"16"`
	MarketUpdateIntervalHours int `env:"MARKET_UPDATE_INTERVAL_HOURS" envDefault:"4"`
	MarketUpdateMinute        int `env:"MARKET_UPDATE_MINUTE"         envDefault:"0"`
	UpdateHistoryDays         int `env:"UPDATE_HISTORY_DAYS"          envDefault:"7"`
	MaxConcurrentUpdates      int `env:"MAX_CONCURRENT_UPDATES"       envDefault:"5"`

	CacheCleanupHour        int           `env:"CACHE_CLEANUP_HOUR"        envDefault:"2"`
	CacheCleanupMinute      int           `env:"CACHE_CLEANUP_MINUTE"      envDefault:"0"`
	PredictionRetentionDays int           `env:"PREDICTION_RETENTION_DAYS" envDefault:"30"`
	CacheTTL                time.Duration `env:"CACHE_TTL"                 envDefault:"24h"`

	TaskTimeout  time.Duration `env:"TASK_TIMEOUT"  envDefault:"1h"`
	HistoryLimit int           `env:"HISTORY_LIMIT" envDefault:"100"`
	Timezone     string        `env:"TZ"            envDefault:"UTC"`

	EnableModelRetraining  bool `env:"ENABLE_MODEL_RETRAINING"   envDefault:"true"`
	EnableMarketDataUpdate bool `env:"ENABLE_MARKET_DATA_UPDATE" envDefault:"true"`
	EnableCacheCleanup     bool `env:"ENABLE_CACHE_CLEANUP"      envDefault:"true"`

	// Tickers is the watchlist always refreshed by market_data_update.
	Tickers []string `env:"TICKERS" envDefault:"AAPL,MSFT,GOOGL,AMZN,NVDA" envSeparator:","`
}

// Sanitize applies guardrails to job configuration values.
// Hour and minute ranges are validated when triggers are compiled.
func (c *JobsConfig) Sanitize() {
	if c.TrainingHistoryDays < 1 {
		c.TrainingHistoryDays = 1
	}
	if c.PopularTickersLimit < 1 {
		c.PopularTickersLimit = 1
	}
	if c.PopularLookbackDays < 1 {
		c.PopularLookbackDays = 1
	}
	if c.MarketUpdateIntervalHours < 1 {
		c.MarketUpdateIntervalHours = 1
	}
	if c.UpdateHistoryDays < 1 {
		c.UpdateHistoryDays = 1
	}
	if c.MaxConcurrentUpdates < 1 {
		c.MaxConcurrentUpdates = 1
	}
	if c.PredictionRetentionDays < 1 {
		c.PredictionRetentionDays = 1
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = time.Hour
	}
	if c.HistoryLimit < 1 {
		c.HistoryLimit = 1
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = "UTC"
	}

	tickers := make([]string, 0, len(c.Tickers))
	seen := make(map[string]struct{}, len(c.Tickers))
	for _, t := range c.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tickers = append(tickers, t)
	}
	c.Tickers = tickers
}

// Location resolves Timezone, falling back to UTC.
func (c JobsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MarketDataConfig configures the upstream market data provider.
type MarketDataConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:9090"`
	APIKey  string `env:"API_KEY"`

	// BarsExpression is a JMESPath expression selecting the bar array from the response body.
	BarsExpression string `env:"BARS_EXPRESSION" envDefault:"data[]"`

	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"5"`
	Burst             int           `env:"BURST"               envDefault:"1"`
	Timeout           time.Duration `env:"TIMEOUT"             envDefault:"30s"`
	RetryCount        int           `env:"RETRY_COUNT"         envDefault:"2"`
}

// Sanitize applies guardrails to market data configuration values.
func (c *MarketDataConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if strings.TrimSpace(c.BarsExpression) == "" {
		c.BarsExpression = "data[]"
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
}

// PredictorConfig configures the model serving collaborator.
type PredictorConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:9091"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"10m"`
}

// Sanitize applies guardrails to predictor configuration values.
func (c *PredictorConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
}

// ModelsConfig locates persisted model artifacts.
type ModelsConfig struct {
	Dir string `env:"MODELS_DIR" envDefault:"./models"`
}
