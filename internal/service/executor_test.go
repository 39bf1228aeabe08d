package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/testutil"
)

type recordingNotifier struct {
	mu      sync.Mutex
	records []model.TaskExecutionRecord
}

func (n *recordingNotifier) NotifyJobFailure(_ context.Context, rec model.TaskExecutionRecord, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.records)
}

type staticSchedule []model.JobInfo

func (s staticSchedule) Jobs() []model.JobInfo { return s }

type executorFixture struct {
	exec     *TaskExecutor
	store    *testutil.FakeCounterStore
	clock    *testutil.FakeClock
	notifier *recordingNotifier
}

func newExecutorFixture(t *testing.T, opts TaskExecutorOptions) executorFixture {
	t.Helper()
	clock := testutil.NewFakeClock(testutil.TestTime())
	store := testutil.NewFakeCounterStore(clock)
	notifier := &recordingNotifier{}
	logger, _ := newTestLogger()

	opts.Store = store
	opts.Clock = clock
	opts.Logger = logger
	opts.Notifier = notifier
	exec, err := NewTaskExecutor(opts)
	require.NoError(t, err)
	return executorFixture{exec: exec, store: store, clock: clock, notifier: notifier}
}

func TestNewTaskExecutorRequiresStore(t *testing.T) {
	_, err := NewTaskExecutor(TaskExecutorOptions{})
	require.Error(t, err)
}

func TestTaskExecutorSuccessWritesStatus(t *testing.T) {
	f := newExecutorFixture(t, TaskExecutorOptions{})

	rec, ran := f.exec.Execute(context.Background(), model.JobCacheCleanup, func(context.Context) error {
		f.clock.Advance(2 * time.Second)
		return nil
	}, 0)

	require.True(t, ran)
	assert.Equal(t, model.TaskOutcomeSuccess, rec.Outcome)
	assert.Equal(t, 2*time.Second, rec.Duration)

	status, ok := f.store.Value("task:cache_cleanup:status")
	require.True(t, ok)
	assert.Equal(t, "completed", status)
	_, ok = f.store.Value("task:cache_cleanup:error")
	assert.False(t, ok)
	count, _ := f.store.Value("task:cache_cleanup:execution_count")
	assert.Equal(t, "1", count)

	f.exec.Wait()
	assert.Zero(t, f.notifier.count())
}

func TestTaskExecutorErrorWritesErrorKey(t *testing.T) {
	f := newExecutorFixture(t, TaskExecutorOptions{})

	rec, ran := f.exec.Execute(context.Background(), model.JobMarketDataUpdate, func(context.Context) error {
		return errors.New("AAPL: upstream 502")
	}, 0)

	require.True(t, ran)
	assert.Equal(t, model.TaskOutcomeError, rec.Outcome)
	assert.Equal(t, "AAPL: upstream 502", rec.Error)

	status, _ := f.store.Value("task:market_data_update:status")
	assert.Equal(t, "error", status)
	detail, _ := f.store.Value("task:market_data_update:error")
	assert.Equal(t, "AAPL: upstream 502", detail)

	f.exec.Wait()
	assert.Equal(t, 1, f.notifier.count())

	// A later success clears the error detail.
	_, ran = f.exec.Execute(context.Background(), model.JobMarketDataUpdate, func(context.Context) error { return nil }, 0)
	require.True(t, ran)
	_, ok := f.store.Value("task:market_data_update:error")
	assert.False(t, ok)
}

func TestTaskExecutorRecoversPanic(t *testing.T) {
	f := newExecutorFixture(t, TaskExecutorOptions{})

	rec, ran := f.exec.Execute(context.Background(), model.JobModelRetraining, func(context.Context) error {
		panic("boom")
	}, 0)

	require.True(t, ran)
	assert.Equal(t, model.TaskOutcomeError, rec.Outcome)
	assert.Contains(t, rec.Error, "panicked: boom")

	// The lock was released.
	_, ran = f.exec.Execute(context.Background(), model.JobModelRetraining, func(context.Context) error { return nil }, 0)
	assert.True(t, ran)
}

func TestTaskExecutorTimeoutIsFailure(t *testing.T) {
	f := newExecutorFixture(t, TaskExecutorOptions{Timeout: time.Hour})

	rec, ran := f.exec.Execute(context.Background(), model.JobModelRetraining, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	require.True(t, ran)
	assert.Equal(t, model.TaskOutcomeError, rec.Outcome)
	assert.Contains(t, rec.Error, context.DeadlineExceeded.Error())
}

func TestTaskExecutorSingleFlight(t *testing.T) {
	f := newExecutorFixture(t, TaskExecutorOptions{})

	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		runs    atomic.Int32
	)
	handler := func(context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		runs.Add(1)
		for {
			cur := maxSeen.Load()
			if n <= cur || maxSeen.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return nil
	}

	const attempts = 50
	var (
		wg      sync.WaitGroup
		skipped atomic.Int32
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ran := f.exec.Execute(context.Background(), model.JobModelRetraining, handler, 0); !ran {
				skipped.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxSeen.Load())
	assert.EqualValues(t, attempts, runs.Load()+skipped.Load())
	assert.Len(t, f.exec.History(model.JobModelRetraining), int(runs.Load()))
}

func TestTaskExecutorOverlapIsSkippedNotQueued(t *testing.T) {
	f := newExecutorFixture(t, TaskExecutorOptions{})

	release := make(chan struct{})
	entered := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.exec.Execute(context.Background(), model.JobModelRetraining, func(context.Context) error {
			close(entered)
			<-release
			return nil
		}, 0)
	}()
	<-entered

	for range 5 {
		_, ran := f.exec.Execute(context.Background(), model.JobModelRetraining, func(context.Context) error {
			t.Error("overlapping firing must not run")
			return nil
		}, 0)
		assert.False(t, ran)
	}

	close(release)
	<-done
	assert.Len(t, f.exec.History(model.JobModelRetraining), 1)
}

func TestTaskExecutorSkipLogsInfo(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.TestTime())
	logger, buf := newTestLogger()
	exec, err := NewTaskExecutor(TaskExecutorOptions{
		Store:  testutil.NewFakeCounterStore(clock),
		Clock:  clock,
		Logger: logger,
	})
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		exec.Execute(context.Background(), model.JobCacheCleanup, func(context.Context) error {
			close(started)
			<-release
			return nil
		}, 0)
	}()
	<-started

	_, ran := exec.Execute(context.Background(), model.JobCacheCleanup, func(context.Context) error { return nil }, 0)
	assert.False(t, ran)

	close(release)
	<-done

	assert.Contains(t, buf.String(), `"reason":"already_running"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Len(t, exec.History(model.JobCacheCleanup), 1)
}

func TestTaskExecutorHistoryIsBounded(t *testing.T) {
	f := newExecutorFixture(t, TaskExecutorOptions{HistoryLimit: 3})

	for i := range 5 {
		fail := i%2 == 1
		f.exec.Execute(context.Background(), model.JobCacheCleanup, func(context.Context) error {
			if fail {
				return errors.New("failed")
			}
			return nil
		}, 0)
		f.clock.Advance(time.Minute)
	}
	f.exec.Wait()

	history := f.exec.History(model.JobCacheCleanup)
	require.Len(t, history, 3)
	assert.Equal(t, testutil.TestTime().Add(2*time.Minute), history[0].StartedAt)

	last, ok := f.exec.LastRecord(model.JobCacheCleanup)
	require.True(t, ok)
	assert.Equal(t, model.TaskOutcomeSuccess, last.Outcome)
}

func TestGetTaskMetricsCoversEveryJob(t *testing.T) {
	f := newExecutorFixture(t, TaskExecutorOptions{})
	ctx := context.Background()

	f.exec.Execute(ctx, model.JobModelRetraining, func(context.Context) error { return nil }, 0)
	f.exec.Execute(ctx, model.JobModelRetraining, func(context.Context) error { return errors.New("x") }, 0)
	f.exec.Execute(ctx, model.JobMarketDataUpdate, func(context.Context) error { return nil }, 0)
	f.exec.Wait()

	next := testutil.TestTime().Add(time.Hour)
	view := staticSchedule{
		{ID: model.JobModelRetraining, NextRun: &next},
		{ID: model.JobMarketDataUpdate, NextRun: &next},
		{ID: model.JobCacheCleanup},
	}

	m := f.exec.GetTaskMetrics(view)
	assert.Equal(t, model.HealthHealthy, m.Status)
	require.Len(t, m.Jobs, 3)

	retrain := m.Jobs[model.JobModelRetraining]
	assert.Equal(t, 2, retrain.TotalRuns)
	assert.Equal(t, 1, retrain.Failures)
	require.NotNil(t, retrain.SuccessRate)
	assert.InDelta(t, 50.0, *retrain.SuccessRate, 0.001)
	assert.Equal(t, model.ScheduleActive, retrain.Status)

	update := m.Jobs[model.JobMarketDataUpdate]
	require.NotNil(t, update.SuccessRate)
	assert.InDelta(t, 100.0, *update.SuccessRate, 0.001)

	cleanup := m.Jobs[model.JobCacheCleanup]
	assert.Zero(t, cleanup.TotalRuns)
	assert.Nil(t, cleanup.SuccessRate)
	assert.Equal(t, model.SchedulePaused, cleanup.Status)
}

type panickingSchedule struct{}

func (panickingSchedule) Jobs() []model.JobInfo { panic("scheduler gone") }

func TestGetTaskMetricsFailureIsUnhealthy(t *testing.T) {
	f := newExecutorFixture(t, TaskExecutorOptions{})

	m := f.exec.GetTaskMetrics(nil)
	assert.Equal(t, model.HealthUnhealthy, m.Status)
	assert.Empty(t, m.Jobs)

	m = f.exec.GetTaskMetrics(panickingSchedule{})
	assert.Equal(t, model.HealthUnhealthy, m.Status)
	assert.Empty(t, m.Jobs)
	assert.Equal(t, "scheduler gone", m.Error)
}

func TestTaskExecutorStoreFailureDoesNotFailJob(t *testing.T) {
	f := newExecutorFixture(t, TaskExecutorOptions{})
	f.store.SetUnavailable(true)

	rec, ran := f.exec.Execute(context.Background(), model.JobCacheCleanup, func(context.Context) error { return nil }, 0)
	require.True(t, ran)
	assert.Equal(t, model.TaskOutcomeSuccess, rec.Outcome)
}
