package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quantsignal/forecast-api/internal/data"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	domainscheduler "github.com/quantsignal/forecast-api/internal/domain/scheduler"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
)

var (
	// ErrDuplicateJob is returned when a job id is registered twice.
	ErrDuplicateJob = errors.New("job already registered")
	// ErrUnknownJob is returned for an id that was never registered.
	ErrUnknownJob = errors.New("unknown job")
	// ErrSchedulerStarted is returned by Register and Run once the loop has started.
	ErrSchedulerStarted = errors.New("scheduler already started")
	// ErrNoJobs is returned by Run when nothing was registered.
	ErrNoJobs = errors.New("no jobs registered")
)

// JobRegistration describes one recurring job.
type JobRegistration struct {
	ID      model.JobID
	Trigger domainscheduler.Trigger
	Handler JobHandler
	// Timeout overrides the executor's default budget when positive.
	Timeout time.Duration
	// Paused registers the job without scheduling it.
	Paused bool
}

// SchedulerServiceOptions groups dependencies for SchedulerService.
type SchedulerServiceOptions struct {
	Executor *TaskExecutor     // Required
	Clock    data.TimeProvider // Optional: system clock
	Logger   *slog.Logger      // Optional
	Metrics  statsd.Sink       // Optional

	// NewTimer arms a one-shot timer for d. Defaults to time.NewTimer.
	NewTimer func(d time.Duration) Timer
}

// Timer is the one-shot timer the run loop sleeps on.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type stdTimer struct{ t *time.Timer }

func (s stdTimer) C() <-chan time.Time { return s.t.C }
func (s stdTimer) Stop() bool          { return s.t.Stop() }

func newStdTimer(d time.Duration) Timer { return stdTimer{t: time.NewTimer(d)} }

type scheduledJob struct {
	reg      JobRegistration
	schedule *domainscheduler.Schedule

	paused  bool
	firing  int
	nextRun *time.Time
	lastRun *time.Time
	last    model.TaskExecutionRecord
}

type schedulerPhase int

const (
	phaseRegistering schedulerPhase = iota
	phaseRunning
	phaseStopped
)

// SchedulerService fires registered jobs at the times their compiled
// triggers produce. Firings are handed to the TaskExecutor on their own
// goroutines, so a slow job never delays another job's schedule.
type SchedulerService struct {
	executor *TaskExecutor
	clock    data.TimeProvider
	logger   *slog.Logger
	metrics  statsd.Sink
	newTimer func(time.Duration) Timer

	mu    sync.Mutex
	phase schedulerPhase
	jobs  map[model.JobID]*scheduledJob
	order []model.JobID

	wake     chan struct{}
	inflight sync.WaitGroup
}

// NewSchedulerService constructs a SchedulerService.
func NewSchedulerService(opts SchedulerServiceOptions) (*SchedulerService, error) {
	if opts.Executor == nil {
		return nil, errors.New("TaskExecutor is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newTimer := opts.NewTimer
	if newTimer == nil {
		newTimer = newStdTimer
	}
	return &SchedulerService{
		executor: opts.Executor,
		clock:    clock,
		logger:   logger.With("component", "scheduler"),
		metrics:  opts.Metrics,
		newTimer: newTimer,
		jobs:     make(map[model.JobID]*scheduledJob),
		wake:     make(chan struct{}, 1),
	}, nil
}

// Register compiles the job's trigger and adds it to the registry.
// Jobs can only be registered before Run.
func (s *SchedulerService) Register(reg JobRegistration) error {
	if reg.ID == "" {
		return errors.New("job id is required")
	}
	if reg.Handler == nil {
		return fmt.Errorf("job %s: handler is required", reg.ID)
	}
	schedule, err := reg.Trigger.Compile()
	if err != nil {
		return fmt.Errorf("job %s: %w", reg.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseRegistering {
		return ErrSchedulerStarted
	}
	if _, dup := s.jobs[reg.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, reg.ID)
	}
	s.jobs[reg.ID] = &scheduledJob{reg: reg, schedule: schedule, paused: reg.Paused}
	s.order = append(s.order, reg.ID)

	s.logger.Info("job registered",
		"job_id", string(reg.ID),
		"trigger", schedule.String(),
		"paused", reg.Paused,
	)
	return nil
}

// Run schedules every registered job and blocks until ctx is cancelled.
// In-flight firings are awaited before Run returns.
func (s *SchedulerService) Run(ctx context.Context) error {
	if err := s.start(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "scheduler started", "jobs", len(s.order))

	defer s.stop()

	for {
		var (
			timer Timer
			fire  <-chan time.Time
		)
		if wait, ok := s.untilNext(); ok {
			timer = s.newTimer(wait)
			fire = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.InfoContext(ctx, "scheduler stopping", "reason", ctx.Err())
			s.inflight.Wait()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-s.wake:
			// Pause or Resume moved the nearest deadline.
			if timer != nil {
				timer.Stop()
			}
		case <-fire:
			s.dispatchDue(ctx)
		}
	}
}

func (s *SchedulerService) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseRegistering {
		return ErrSchedulerStarted
	}
	if len(s.jobs) == 0 {
		return ErrNoJobs
	}
	now := s.clock.Now()
	for _, job := range s.jobs {
		if !job.paused {
			next := job.schedule.Next(now)
			job.nextRun = &next
		}
	}
	s.phase = phaseRunning
	return nil
}

func (s *SchedulerService) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phaseStopped
	for _, job := range s.jobs {
		job.nextRun = nil
	}
	s.logger.Info("scheduler stopped")
}

// untilNext returns the wait until the nearest fire time. ok is false when
// no job is scheduled.
func (s *SchedulerService) untilNext() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nearest *time.Time
	for _, id := range s.order {
		job := s.jobs[id]
		if job.paused || job.nextRun == nil {
			continue
		}
		if nearest == nil || job.nextRun.Before(*nearest) {
			nearest = job.nextRun
		}
	}
	if nearest == nil {
		return 0, false
	}
	wait := nearest.Sub(s.clock.Now())
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// dispatchDue starts every job whose fire time has passed and computes its
// next fire time from now.
func (s *SchedulerService) dispatchDue(ctx context.Context) {
	s.mu.Lock()
	now := s.clock.Now()
	var due []*scheduledJob
	for _, id := range s.order {
		job := s.jobs[id]
		if job.paused || job.nextRun == nil || job.nextRun.After(now) {
			continue
		}
		next := job.schedule.Next(now)
		job.nextRun = &next
		job.firing++
		due = append(due, job)
	}
	s.mu.Unlock()

	for _, job := range due {
		if s.metrics != nil {
			s.metrics.Count("scheduler.fire", 1, map[string]string{"job_id": string(job.reg.ID)})
		}
		s.inflight.Add(1)
		go func(job *scheduledJob) {
			defer s.inflight.Done()
			s.fire(ctx, job)
		}(job)
	}
}

// fire runs one firing through the executor. The caller has already
// incremented job.firing.
func (s *SchedulerService) fire(ctx context.Context, job *scheduledJob) (model.TaskExecutionRecord, bool) {
	rec, ran := s.executor.Execute(ctx, job.reg.ID, job.reg.Handler, job.reg.Timeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	job.firing--
	if ran {
		started := rec.StartedAt
		job.lastRun = &started
		job.last = rec
	}
	return rec, ran
}

// RunNow fires id immediately through the executor, outside its schedule.
// It returns ErrJobAlreadyRunning when the previous firing has not finished.
func (s *SchedulerService) RunNow(ctx context.Context, id model.JobID) (model.TaskExecutionRecord, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return model.TaskExecutionRecord{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	job.firing++
	s.mu.Unlock()

	rec, ran := s.fire(ctx, job)
	if !ran {
		return model.TaskExecutionRecord{}, fmt.Errorf("%w: %s", ErrJobAlreadyRunning, id)
	}
	return rec, nil
}

// Pause stops scheduling id. A firing already in progress is not interrupted.
func (s *SchedulerService) Pause(id model.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	job.paused = true
	job.nextRun = nil
	s.signal()
	s.logger.Info("job paused", "job_id", string(id))
	return nil
}

// Resume reschedules a paused job from the current time.
func (s *SchedulerService) Resume(id model.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	job.paused = false
	if s.phase == phaseRunning {
		next := job.schedule.Next(s.clock.Now())
		job.nextRun = &next
	}
	s.signal()
	s.logger.Info("job resumed", "job_id", string(id))
	return nil
}

// signal wakes the Run loop. Callers hold s.mu.
func (s *SchedulerService) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *SchedulerService) stateOf(job *scheduledJob) model.JobState {
	switch {
	case s.phase == phaseStopped:
		return model.JobStateStopped
	case job.paused:
		return model.JobStatePaused
	case job.firing > 0:
		return model.JobStateFiring
	case s.phase == phaseRegistering:
		return model.JobStateRegistered
	default:
		return model.JobStateScheduled
	}
}

// Jobs returns a snapshot of every registered job in registration order.
func (s *SchedulerService) Jobs() []model.JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.JobInfo, 0, len(s.order))
	for _, id := range s.order {
		job := s.jobs[id]
		out = append(out, model.JobInfo{
			ID:          id,
			Trigger:     job.schedule.String(),
			State:       s.stateOf(job),
			NextRun:     copyTime(job.nextRun),
			LastRun:     copyTime(job.lastRun),
			LastOutcome: job.last.Outcome,
			LastError:   job.last.Error,
		})
	}
	return out
}

// Job returns the snapshot for one job.
func (s *SchedulerService) Job(id model.JobID) (model.JobInfo, error) {
	for _, info := range s.Jobs() {
		if info.ID == id {
			return info, nil
		}
	}
	return model.JobInfo{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
}

// TaskMetrics aggregates executor history over every registered job.
func (s *SchedulerService) TaskMetrics() model.TaskMetrics {
	return s.executor.GetTaskMetrics(s)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
