package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/mocks"
	"github.com/quantsignal/forecast-api/internal/testutil"
)

type healthFixture struct {
	svc       *HealthService
	db        *mocks.MockDatabaseProbe
	artifacts *mocks.MockModelArtifactStore
	store     *testutil.FakeCounterStore
}

func scheduledJobs() staticSchedule {
	next := testutil.TestTime().Add(time.Hour)
	return staticSchedule{
		{ID: model.JobModelRetraining, NextRun: &next, State: model.JobStateScheduled},
		{ID: model.JobMarketDataUpdate, NextRun: &next, State: model.JobStateScheduled},
		{ID: model.JobCacheCleanup, NextRun: &next, State: model.JobStateScheduled},
	}
}

func newHealthFixture(t *testing.T, sched ScheduleView) healthFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	clock := testutil.NewFakeClock(testutil.TestTime())
	f := healthFixture{
		db:        mocks.NewMockDatabaseProbe(ctrl),
		artifacts: mocks.NewMockModelArtifactStore(ctrl),
		store:     testutil.NewFakeCounterStore(clock),
	}
	logger, _ := newTestLogger()
	svc, err := NewHealthService(HealthServiceOptions{
		DB:        f.db,
		Store:     f.store,
		Artifacts: f.artifacts,
		Scheduler: sched,
		Clock:     clock,
		Logger:    logger,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestHealthAllHealthy(t *testing.T) {
	f := newHealthFixture(t, scheduledJobs())
	f.db.EXPECT().Probe(gomock.Any()).Return(nil)
	f.artifacts.EXPECT().List(gomock.Any()).Return([]string{"AAPL-20240101T010000Z"}, nil)

	report := f.svc.Check(context.Background())

	assert.Equal(t, model.HealthHealthy, report.Status)
	assert.Equal(t, testutil.TestTime(), report.Timestamp)
	assert.Equal(t, model.ComponentHealthy, report.Components.CounterStore.Status)
	assert.Len(t, report.Components.BackgroundTasks.Jobs, 3)
	assert.Equal(t, []string{"AAPL-20240101T010000Z"}, report.Components.Models.AvailableModels)
}

func TestHealthDatabaseFailureIsUnhealthy(t *testing.T) {
	f := newHealthFixture(t, scheduledJobs())
	f.db.EXPECT().Probe(gomock.Any()).Return(errors.New("connection refused"))
	f.artifacts.EXPECT().List(gomock.Any()).Return([]string{"v1"}, nil)

	report := f.svc.Check(context.Background())

	assert.Equal(t, model.HealthUnhealthy, report.Status)
	assert.Equal(t, model.ComponentError, report.Components.Database.Status)
	assert.Contains(t, report.Components.Database.Message, "connection refused")
}

func TestHealthCounterStoreFailureIsUnhealthy(t *testing.T) {
	f := newHealthFixture(t, scheduledJobs())
	f.store.SetUnavailable(true)
	f.db.EXPECT().Probe(gomock.Any()).Return(nil)
	f.artifacts.EXPECT().List(gomock.Any()).Return([]string{"v1"}, nil)

	report := f.svc.Check(context.Background())

	assert.Equal(t, model.HealthUnhealthy, report.Status)
	assert.Equal(t, model.ComponentError, report.Components.CounterStore.Status)
}

func TestHealthSchedulerOnlyFailureIsDegraded(t *testing.T) {
	jobs := scheduledJobs()
	jobs[1].NextRun = nil
	jobs[1].State = model.JobStatePaused

	f := newHealthFixture(t, jobs)
	f.db.EXPECT().Probe(gomock.Any()).Return(nil)
	f.artifacts.EXPECT().List(gomock.Any()).Return([]string{"v1"}, nil)

	report := f.svc.Check(context.Background())

	assert.Equal(t, model.HealthDegraded, report.Status)
	assert.Equal(t, model.ComponentWarning, report.Components.BackgroundTasks.Status)
	assert.Equal(t, "paused", report.Components.BackgroundTasks.Jobs[model.JobMarketDataUpdate].Status)
}

func TestHealthWithoutSchedulerIsDegraded(t *testing.T) {
	f := newHealthFixture(t, nil)
	f.db.EXPECT().Probe(gomock.Any()).Return(nil)
	f.artifacts.EXPECT().List(gomock.Any()).Return([]string{"v1"}, nil)

	report := f.svc.Check(context.Background())

	assert.Equal(t, model.HealthDegraded, report.Status)
	assert.Equal(t, model.ComponentError, report.Components.BackgroundTasks.Status)
}

func TestHealthNoModelsIsDegraded(t *testing.T) {
	f := newHealthFixture(t, scheduledJobs())
	f.db.EXPECT().Probe(gomock.Any()).Return(nil)
	f.artifacts.EXPECT().List(gomock.Any()).Return(nil, nil)

	report := f.svc.Check(context.Background())

	assert.Equal(t, model.HealthDegraded, report.Status)
	assert.Equal(t, model.ComponentWarning, report.Components.Models.Status)
	assert.Equal(t, "no trained models found", report.Components.Models.Message)
}

func TestHealthProbeKeyIsShortLived(t *testing.T) {
	f := newHealthFixture(t, scheduledJobs())
	f.db.EXPECT().Probe(gomock.Any()).Return(nil)
	f.artifacts.EXPECT().List(gomock.Any()).Return([]string{"v1"}, nil)

	f.svc.Check(context.Background())

	keys, err := f.store.Scan(context.Background(), healthProbePrefix)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	ttl, err := f.store.TTL(context.Background(), keys[0])
	require.NoError(t, err)
	assert.Equal(t, healthProbeTTL, ttl)
}

func TestOverallPrecedence(t *testing.T) {
	healthy := model.HealthComponents{
		Database:        model.ComponentHealth{Status: model.ComponentHealthy},
		CounterStore:    model.ComponentHealth{Status: model.ComponentHealthy},
		BackgroundTasks: model.BackgroundTasksHealth{Status: model.ComponentHealthy},
		Models:          model.ModelsHealth{Status: model.ComponentHealthy},
	}
	assert.Equal(t, model.HealthHealthy, Overall(healthy))

	c := healthy
	c.Models.Status = model.ComponentError
	c.BackgroundTasks.Status = model.ComponentError
	assert.Equal(t, model.HealthDegraded, Overall(c))

	c.CounterStore.Status = model.ComponentError
	assert.Equal(t, model.HealthUnhealthy, Overall(c))
}

type scriptedChecker struct {
	statuses []model.HealthStatus
	i        int
}

func (s *scriptedChecker) Check(context.Context) model.HealthReport {
	st := s.statuses[s.i]
	s.i++
	return model.HealthReport{Status: st}
}

type recordingHealthNotifier struct {
	transitions [][2]model.HealthStatus
}

func (r *recordingHealthNotifier) NotifyHealthChange(_ context.Context, prev model.HealthStatus, report model.HealthReport) {
	r.transitions = append(r.transitions, [2]model.HealthStatus{prev, report.Status})
}

func TestHealthWatcherNotifiesOnTransitions(t *testing.T) {
	checker := &scriptedChecker{statuses: []model.HealthStatus{
		model.HealthHealthy,
		model.HealthDegraded,
		model.HealthDegraded,
		model.HealthUnhealthy,
		model.HealthHealthy,
		model.HealthHealthy,
	}}
	notifier := &recordingHealthNotifier{}
	logger, _ := newTestLogger()
	w, err := NewHealthWatcher(HealthWatcherOptions{
		Checker:          checker,
		Notifier:         notifier,
		NotifyOnRecovery: true,
		Logger:           logger,
	})
	require.NoError(t, err)

	for range checker.statuses {
		w.Tick(context.Background())
	}

	assert.Equal(t, [][2]model.HealthStatus{
		{model.HealthHealthy, model.HealthDegraded},
		{model.HealthDegraded, model.HealthUnhealthy},
		{model.HealthUnhealthy, model.HealthHealthy},
	}, notifier.transitions)
	assert.Equal(t, model.HealthHealthy, w.Last())
}

func TestHealthWatcherRecoveryCanBeSilenced(t *testing.T) {
	checker := &scriptedChecker{statuses: []model.HealthStatus{model.HealthUnhealthy, model.HealthHealthy}}
	notifier := &recordingHealthNotifier{}
	w, err := NewHealthWatcher(HealthWatcherOptions{Checker: checker, Notifier: notifier})
	require.NoError(t, err)

	w.Tick(context.Background())
	_, changed := w.Tick(context.Background())

	assert.True(t, changed)
	assert.Len(t, notifier.transitions, 1)
}

func TestHealthWatcherRunTicksUntilCancelled(t *testing.T) {
	checker := &countingChecker{status: model.HealthDegraded}
	notifier := &recordingHealthNotifier{}
	w, err := NewHealthWatcher(HealthWatcherOptions{
		Checker:  checker,
		Notifier: notifier,
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return checker.calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// Degraded is reported once however many ticks observe it.
	assert.Len(t, notifier.transitions, 1)
}

func TestHealthWatcherRunRequiresInterval(t *testing.T) {
	w, err := NewHealthWatcher(HealthWatcherOptions{Checker: &countingChecker{}})
	require.NoError(t, err)
	require.Error(t, w.Run(context.Background()))
}

type countingChecker struct {
	status model.HealthStatus
	calls  atomic.Int32
}

func (c *countingChecker) Check(context.Context) model.HealthReport {
	c.calls.Add(1)
	return model.HealthReport{Status: c.status}
}
