package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/quantsignal/forecast-api/internal/core"
	"github.com/quantsignal/forecast-api/internal/data"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/observability/metrics"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
)

// ErrJobAlreadyRunning is returned by RunNow when the job's previous firing is still in flight.
var ErrJobAlreadyRunning = errors.New("job already running")

// JobHandler is the body of a scheduled job. Handlers isolate their own
// units of work and return an aggregate error (errors.Join) for the ones
// that failed.
type JobHandler func(ctx context.Context) error

// JobFailureNotifier receives failed firings. *failurenotifier.Service satisfies it.
type JobFailureNotifier interface {
	NotifyJobFailure(ctx context.Context, rec model.TaskExecutionRecord, err error)
}

// ScheduleView exposes the scheduler's job snapshot to metrics aggregation.
type ScheduleView interface {
	Jobs() []model.JobInfo
}

// TaskExecutorOptions groups dependencies for TaskExecutor.
type TaskExecutorOptions struct {
	Store        core.CounterStore  // Required: status and error keys
	Timeout      time.Duration      // Default per-job budget; 0 disables
	HistoryLimit int                // Records kept per job (default 100)
	Clock        data.TimeProvider  // Optional: system clock
	Logger       *slog.Logger       // Optional
	Metrics      statsd.Sink        // Optional
	Notifier     JobFailureNotifier // Optional: failed firings are forwarded asynchronously
}

// jobLedger is the executor's per-job state.
type jobLedger struct {
	running sync.Mutex

	// Guarded by TaskExecutor.mu.
	history   []model.TaskExecutionRecord
	total     int
	successes int
}

// TaskExecutor wraps each firing of a job with a single-flight guard, a
// timeout, panic recovery, status bookkeeping and execution history.
type TaskExecutor struct {
	store        core.CounterStore
	timeout      time.Duration
	historyLimit int
	clock        data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
	notifier     JobFailureNotifier

	mu      sync.Mutex
	ledgers map[model.JobID]*jobLedger
	notify  sync.WaitGroup
}

// NewTaskExecutor constructs a TaskExecutor.
func NewTaskExecutor(opts TaskExecutorOptions) (*TaskExecutor, error) {
	if opts.Store == nil {
		return nil, errors.New("CounterStore is required")
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = 100
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskExecutor{
		store:        opts.Store,
		timeout:      opts.Timeout,
		historyLimit: limit,
		clock:        clock,
		logger:       logger.With("component", "task_executor"),
		metrics:      opts.Metrics,
		notifier:     opts.Notifier,
		ledgers:      make(map[model.JobID]*jobLedger),
	}, nil
}

func (e *TaskExecutor) ledger(id model.JobID) *jobLedger {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.ledgers[id]
	if !ok {
		l = &jobLedger{}
		e.ledgers[id] = l
	}
	return l
}

// Execute runs one firing of job id. When the previous firing of the same
// id is still running the call returns immediately with ran=false.
// timeout overrides the executor default when positive.
func (e *TaskExecutor) Execute(
	ctx context.Context,
	id model.JobID,
	handler JobHandler,
	timeout time.Duration,
) (rec model.TaskExecutionRecord, ran bool) {
	l := e.ledger(id)
	if !l.running.TryLock() {
		e.logger.InfoContext(ctx, "skipping job firing",
			"job_id", string(id),
			"reason", "already_running",
		)
		metrics.EmitJobLifecycle(e.metrics, metrics.JobMetric{JobID: string(id), Result: metrics.ResultSkipped})
		return model.TaskExecutionRecord{}, false
	}
	defer l.running.Unlock()

	if timeout <= 0 {
		timeout = e.timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := e.clock.Now()
	e.logger.InfoContext(ctx, "job started", "job_id", string(id))

	err := e.invoke(runCtx, id, handler)
	if err == nil && runCtx.Err() != nil {
		// The handler returned cleanly after its budget ran out.
		err = fmt.Errorf("job %s: %w", id, runCtx.Err())
	}

	rec = model.TaskExecutionRecord{
		JobID:     id,
		StartedAt: started,
		Duration:  e.clock.Now().Sub(started),
		Outcome:   model.TaskOutcomeSuccess,
	}
	if err != nil {
		rec.Outcome = model.TaskOutcomeError
		rec.Error = err.Error()
	}

	e.record(l, rec)
	e.writeStatus(ctx, rec)
	e.report(ctx, rec, err)
	return rec, true
}

// invoke runs the handler, converting a panic into an error.
func (e *TaskExecutor) invoke(ctx context.Context, id model.JobID, handler JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "job panicked",
				"job_id", string(id),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("job %s panicked: %v", id, r)
		}
	}()
	if handler == nil {
		return fmt.Errorf("job %s has no handler", id)
	}
	return handler(ctx)
}

func (e *TaskExecutor) record(l *jobLedger, rec model.TaskExecutionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l.total++
	if rec.Outcome == model.TaskOutcomeSuccess {
		l.successes++
	}
	l.history = append(l.history, rec)
	if over := len(l.history) - e.historyLimit; over > 0 {
		l.history = append(l.history[:0:0], l.history[over:]...)
	}
}

// writeStatus stores task:<job>:status, task:<job>:error and the execution
// counter. The store is best effort; failures are logged.
func (e *TaskExecutor) writeStatus(ctx context.Context, rec model.TaskExecutionRecord) {
	ctx = context.WithoutCancel(ctx)
	prefix := TaskKeyPrefix(rec.JobID)

	status := model.TaskStatusCompleted
	if rec.Outcome == model.TaskOutcomeError {
		status = model.TaskStatusError
	}

	var errs []error
	errs = append(errs, e.store.Set(ctx, prefix+"status", string(status), 0))
	errs = append(errs, e.store.Set(ctx, prefix+"last_run", rec.StartedAt.UTC().Format(time.RFC3339), 0))
	if status == model.TaskStatusError {
		errs = append(errs, e.store.Set(ctx, prefix+"error", rec.Error, 0))
	} else {
		_, err := e.store.Delete(ctx, prefix+"error")
		errs = append(errs, err)
	}
	_, err := e.store.Increment(ctx, prefix+"execution_count")
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		e.logger.WarnContext(ctx, "failed to write task status",
			"job_id", string(rec.JobID),
			"store", "counter",
			"error", err,
		)
	}
}

func (e *TaskExecutor) report(ctx context.Context, rec model.TaskExecutionRecord, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitJobLifecycle(e.metrics, metrics.JobMetric{
		JobID:    string(rec.JobID),
		Result:   result,
		Duration: rec.Duration,
		Err:      err,
	})

	if err == nil {
		e.logger.InfoContext(ctx, "job completed",
			"job_id", string(rec.JobID),
			"duration", rec.Duration,
		)
		return
	}

	e.logger.ErrorContext(ctx, "job failed",
		"job_id", string(rec.JobID),
		"duration", rec.Duration,
		"error", err,
	)
	if e.notifier == nil {
		return
	}
	e.notify.Add(1)
	go func() {
		defer e.notify.Done()
		e.notifier.NotifyJobFailure(context.WithoutCancel(ctx), rec, err)
	}()
}

// Wait blocks until pending failure notifications are delivered.
func (e *TaskExecutor) Wait() {
	e.notify.Wait()
}

// TaskKeyPrefix is the counter store namespace for a job's status keys.
func TaskKeyPrefix(id model.JobID) string {
	return "task:" + string(id) + ":"
}

// History returns a copy of the job's retained execution records, oldest first.
func (e *TaskExecutor) History(id model.JobID) []model.TaskExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.ledgers[id]
	if !ok {
		return nil
	}
	out := make([]model.TaskExecutionRecord, len(l.history))
	copy(out, l.history)
	return out
}

// LastRecord returns the most recent execution record for id.
func (e *TaskExecutor) LastRecord(id model.JobID) (model.TaskExecutionRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.ledgers[id]
	if !ok || len(l.history) == 0 {
		return model.TaskExecutionRecord{}, false
	}
	return l.history[len(l.history)-1], true
}

// GetTaskMetrics aggregates run counts and schedule status for every job in
// view. Any failure to read the schedule yields an unhealthy result with no
// partial job data.
func (e *TaskExecutor) GetTaskMetrics(view ScheduleView) (out model.TaskMetrics) {
	now := e.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task metrics failed", "panic", r)
			out = model.TaskMetrics{
				Status:      model.HealthUnhealthy,
				GeneratedAt: now,
				Error:       fmt.Sprint(r),
			}
		}
	}()

	if view == nil {
		return model.TaskMetrics{
			Status:      model.HealthUnhealthy,
			GeneratedAt: now,
			Error:       "scheduler not available",
		}
	}

	jobs := view.Jobs()
	out = model.TaskMetrics{
		Status:      model.HealthHealthy,
		GeneratedAt: now,
		Jobs:        make(map[model.JobID]model.JobMetrics, len(jobs)),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, job := range jobs {
		m := model.JobMetrics{
			Status:  model.SchedulePaused,
			NextRun: job.NextRun,
			LastRun: job.LastRun,
		}
		if job.NextRun != nil {
			m.Status = model.ScheduleActive
		}
		if l, ok := e.ledgers[job.ID]; ok {
			m.TotalRuns = l.total
			m.Successes = l.successes
			m.Failures = l.total - l.successes
			if l.total > 0 {
				rate := float64(l.successes) / float64(l.total) * 100
				m.SuccessRate = &rate
			}
		}
		out.Jobs[job.ID] = m
	}
	return out
}
