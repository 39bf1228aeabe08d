package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantsignal/forecast-api/config"
	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/data"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	domainscheduler "github.com/quantsignal/forecast-api/internal/domain/scheduler"
)

const (
	cacheKeyPrefix    = "cache:"
	cacheStampSuffix  = ":timestamp"
	modelVersionStamp = "20060102T150405Z"

	artifactCleanupTimeout = 10 * time.Second
)

// KeySweeper deactivates expired API keys.
type KeySweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// JobHandlersOptions groups the collaborators used by the scheduled jobs.
type JobHandlersOptions struct {
	Predictions   core.PredictionRepository   // Required
	MarketData    core.MarketDataRepository   // Required
	ModelVersions core.ModelVersionRepository // Required
	Keys          KeySweeper                  // Required
	Predictor     core.Predictor              // Required
	Artifacts     core.ModelArtifactStore     // Required
	Source        core.MarketDataSource       // Required
	Store         core.CounterStore           // Required
	Config        config.JobsConfig
	Clock         data.TimeProvider // Optional: system clock
	Logger        *slog.Logger      // Optional
}

// JobHandlers holds the bodies of model_retraining, market_data_update and cache_cleanup.
type JobHandlers struct {
	predictions   core.PredictionRepository
	marketData    core.MarketDataRepository
	modelVersions core.ModelVersionRepository
	keys          KeySweeper
	predictor     core.Predictor
	artifacts     core.ModelArtifactStore
	source        core.MarketDataSource
	store         core.CounterStore
	cfg           config.JobsConfig
	clock         data.TimeProvider
	logger        *slog.Logger
}

// NewJobHandlers constructs JobHandlers.
func NewJobHandlers(opts JobHandlersOptions) (*JobHandlers, error) {
	switch {
	case opts.Predictions == nil:
		return nil, errors.New("PredictionRepository is required")
	case opts.MarketData == nil:
		return nil, errors.New("MarketDataRepository is required")
	case opts.ModelVersions == nil:
		return nil, errors.New("ModelVersionRepository is required")
	case opts.Keys == nil:
		return nil, errors.New("KeySweeper is required")
	case opts.Predictor == nil:
		return nil, errors.New("Predictor is required")
	case opts.Artifacts == nil:
		return nil, errors.New("ModelArtifactStore is required")
	case opts.Source == nil:
		return nil, errors.New("MarketDataSource is required")
	case opts.Store == nil:
		return nil, errors.New("CounterStore is required")
	}
	opts.Config.Sanitize()

	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobHandlers{
		predictions:   opts.Predictions,
		marketData:    opts.MarketData,
		modelVersions: opts.ModelVersions,
		keys:          opts.Keys,
		predictor:     opts.Predictor,
		artifacts:     opts.Artifacts,
		source:        opts.Source,
		store:         opts.Store,
		cfg:           opts.Config,
		clock:         clock,
		logger:        logger.With("component", "jobs"),
	}, nil
}

// Registrations returns the three scheduled jobs with triggers built from config.
// A job disabled in config is registered paused.
func (h *JobHandlers) Registrations() []JobRegistration {
	loc := h.cfg.Location()
	return []JobRegistration{
		{
			ID: model.JobModelRetraining,
			Trigger: domainscheduler.Trigger{
				Hours:    domainscheduler.AtHour(h.cfg.RetrainingHour),
				Minute:   h.cfg.RetrainingMinute,
				Location: loc,
			},
			Handler: h.RetrainModels,
			Paused:  !h.cfg.EnableModelRetraining,
		},
		{
			ID: model.JobMarketDataUpdate,
			Trigger: domainscheduler.Trigger{
				Hours: domainscheduler.EveryHours(
					h.cfg.MarketHoursStart,
					h.cfg.MarketHoursEnd,
					h.cfg.MarketUpdateIntervalHours,
				),
				Minute:   h.cfg.MarketUpdateMinute,
				Location: loc,
			},
			Handler: h.UpdateMarketData,
			Paused:  !h.cfg.EnableMarketDataUpdate,
		},
		{
			ID: model.JobCacheCleanup,
			Trigger: domainscheduler.Trigger{
				Hours:    domainscheduler.AtHour(h.cfg.CacheCleanupHour),
				Minute:   h.cfg.CacheCleanupMinute,
				Location: loc,
			},
			Handler: h.CleanupCache,
			Paused:  !h.cfg.EnableCacheCleanup,
		},
	}
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// RetrainModels retrains the most requested tickers. Each ticker is trained,
// saved and recorded independently.
func (h *JobHandlers) RetrainModels(ctx context.Context) error {
	now := h.clock.Now().UTC()
	tickers, err := h.predictions.PopularTickers(ctx, now.Add(-days(h.cfg.PopularLookbackDays)), h.cfg.PopularTickersLimit)
	if err != nil {
		return fmt.Errorf("select popular tickers: %w", err)
	}
	if len(tickers) == 0 {
		h.logger.InfoContext(ctx, "no tickers to retrain")
		return nil
	}

	var errs []error
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		h.logger.InfoContext(ctx, "retraining model", "ticker", ticker)
		if err := h.retrainTicker(ctx, ticker, now); err != nil {
			h.logger.ErrorContext(ctx, "model retraining failed", "ticker", ticker, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ticker, err))
			continue
		}
		h.logger.InfoContext(ctx, "model retrained", "ticker", ticker)
	}
	if len(errs) > 0 {
		return fmt.Errorf("model retraining: %d of %d tickers failed: %w", len(errs), len(tickers), errors.Join(errs...))
	}
	return nil
}

func (h *JobHandlers) retrainTicker(ctx context.Context, ticker string, now time.Time) error {
	result, err := h.predictor.Train(ctx, core.TrainRequest{
		Ticker: ticker,
		Start:  now.Add(-days(h.cfg.TrainingHistoryDays)),
		End:    now,
	})
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if result == nil || len(result.Artifact) == 0 {
		return errors.New("train: empty artifact")
	}

	metrics, err := json.Marshal(trainingMetrics(result.History))
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	version := ticker + "-" + now.Format(modelVersionStamp)
	path, err := h.artifacts.Save(ctx, version, result.Artifact)
	if err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}

	if _, err := h.modelVersions.Create(ctx, model.ModelVersion{
		Version:      version,
		Ticker:       ticker,
		CreatedAt:    now,
		Parameters:   result.Parameters,
		Metrics:      metrics,
		ArtifactPath: path,
	}); err != nil {
		err = fmt.Errorf("record model version: %w", err)
		// An artifact without its row would still be listed as a model.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactCleanupTimeout)
		defer cancel()
		if derr := h.artifacts.Delete(cleanupCtx, version); derr != nil {
			err = errors.Join(err, fmt.Errorf("remove orphaned artifact %s: %w", version, derr))
		}
		return err
	}
	return nil
}

// trainingMetrics keeps the final losses under their stored names.
func trainingMetrics(history map[string]float64) map[string]float64 {
	out := make(map[string]float64, 2)
	if v, ok := history["loss"]; ok {
		out["training_loss"] = v
	}
	if v, ok := history["val_loss"]; ok {
		out["val_loss"] = v
	}
	return out
}

// UpdateMarketData refreshes recent bars for the watchlist plus every
// recently predicted ticker, with bounded concurrency.
func (h *JobHandlers) UpdateMarketData(ctx context.Context) error {
	now := h.clock.Now().UTC()
	recent, err := h.predictions.RecentTickers(ctx, now.Add(-days(h.cfg.UpdateHistoryDays)))
	if err != nil {
		// The watchlist can still be refreshed.
		h.logger.WarnContext(ctx, "failed to load recent tickers", "error", err)
	}
	tickers := unionTickers(h.cfg.Tickers, recent)
	if len(tickers) == 0 {
		h.logger.InfoContext(ctx, "no tickers to update")
		return err
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	if err != nil {
		errs = append(errs, fmt.Errorf("recent tickers: %w", err))
	}
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	start := now.Add(-days(h.cfg.UpdateHistoryDays))
	g := new(errgroup.Group)
	g.SetLimit(h.cfg.MaxConcurrentUpdates)
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(fmt.Errorf("%s: %w", ticker, err))
				return nil
			}
			n, err := h.updateTicker(ctx, ticker, start, now)
			if err != nil {
				h.logger.ErrorContext(ctx, "market data update failed", "ticker", ticker, "error", err)
				record(fmt.Errorf("%s: %w", ticker, err))
				return nil
			}
			h.logger.InfoContext(ctx, "market data updated", "ticker", ticker, "rows", n)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	if len(errs) > 0 {
		return fmt.Errorf("market data update: %w", errors.Join(errs...))
	}
	return nil
}

func (h *JobHandlers) updateTicker(ctx context.Context, ticker string, start, end time.Time) (int, error) {
	bars, err := h.source.FetchBars(ctx, ticker, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetch bars: %w", err)
	}
	if len(bars) == 0 {
		return 0, nil
	}
	n, err := h.marketData.UpsertBars(ctx, ticker, bars)
	if err != nil {
		return 0, fmt.Errorf("upsert bars: %w", err)
	}
	return n, nil
}

func unionTickers(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, t := range list {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// CleanupCache removes old predictions, deactivates expired keys and evicts
// stale cache entries from the counter store. Each step runs even when an
// earlier one fails.
func (h *JobHandlers) CleanupCache(ctx context.Context) error {
	now := h.clock.Now().UTC()
	var errs []error

	deleted, err := h.predictions.DeleteOlderThan(ctx, now.Add(-days(h.cfg.PredictionRetentionDays)))
	if err != nil {
		errs = append(errs, fmt.Errorf("delete old predictions: %w", err))
	} else {
		h.logger.InfoContext(ctx, "old predictions deleted", "count", deleted)
	}

	swept, err := h.keys.SweepExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("deactivate expired keys: %w", err))
	} else {
		h.logger.InfoContext(ctx, "expired api keys deactivated", "count", swept)
	}

	evicted, err := h.evictStaleCache(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("evict cache: %w", err))
	}
	h.logger.InfoContext(ctx, "cache entries evicted", "count", evicted)

	return errors.Join(errs...)
}

// evictStaleCache deletes cache:* entries whose :timestamp sibling is
// missing, unparsable or older than CacheTTL, together with the sibling.
func (h *JobHandlers) evictStaleCache(ctx context.Context, now time.Time) (int, error) {
	keys, err := h.store.Scan(ctx, cacheKeyPrefix)
	if err != nil {
		return 0, err
	}
	cutoff := now.Add(-h.cfg.CacheTTL)

	var (
		evicted int
		errs    []error
	)
	for _, key := range keys {
		if strings.HasSuffix(key, cacheStampSuffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		stampKey := key + cacheStampSuffix
		raw, found, err := h.store.Get(ctx, stampKey)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to read cache timestamp", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		if found && !stampBefore(raw, cutoff) {
			continue
		}
		if _, err := h.store.Delete(ctx, key, stampKey); err != nil {
			h.logger.ErrorContext(ctx, "failed to evict cache entry", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		evicted++
	}
	return evicted, errors.Join(errs...)
}

// stampBefore reports whether raw, a Unix timestamp in seconds, is before
// cutoff. Unparsable stamps count as stale.
func stampBefore(raw string, cutoff time.Time) bool {
	secs, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return true
	}
	stamp := time.Unix(0, int64(secs*float64(time.Second)))
	return stamp.Before(cutoff)
}
