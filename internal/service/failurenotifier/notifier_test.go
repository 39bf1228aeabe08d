package failurenotifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/observability/notify"
)

type capture struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *capture) sink() notify.Sink {
	return notify.SinkFunc(func(_ context.Context, e notify.Event) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, e)
		return nil
	})
}

func TestNotifyJobFailure(t *testing.T) {
	c := &capture{}
	svc := NewService(Options{Sinks: []SinkRegistration{{Name: "capture", Sink: c.sink()}}})

	svc.NotifyJobFailure(context.Background(), model.TaskExecutionRecord{
		JobID:     model.JobMarketDataUpdate,
		StartedAt: time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Outcome:   model.TaskOutcomeError,
		Error:     "AAPL: upstream 502",
	}, context.DeadlineExceeded)

	require.Len(t, c.events, 1)
	e := c.events[0]
	assert.Equal(t, notify.KindJobFailure, e.Kind)
	assert.Equal(t, "market_data_update", e.Subject)
	assert.Equal(t, notify.SeverityCritical, e.Severity)
	assert.Equal(t, "timeout", e.ErrorClass)
	assert.Equal(t, "1.5s", e.Metadata["duration"])
}

func TestNotifyHealthChange(t *testing.T) {
	c := &capture{}
	svc := NewService(Options{Sinks: []SinkRegistration{{Sink: c.sink()}}})

	svc.NotifyHealthChange(context.Background(), model.HealthHealthy, model.HealthReport{Status: model.HealthUnhealthy})
	svc.NotifyHealthChange(context.Background(), model.HealthUnhealthy, model.HealthReport{Status: model.HealthHealthy})

	require.Len(t, c.events, 2)
	assert.Equal(t, notify.KindHealthDegraded, c.events[0].Kind)
	assert.Equal(t, notify.SeverityCritical, c.events[0].Severity)
	assert.Equal(t, "forecast-api", c.events[0].Subject)
	assert.Equal(t, notify.KindHealthRecovered, c.events[1].Kind)
	assert.Equal(t, "health status unhealthy -> healthy", c.events[1].Summary)
}

func TestNotifyContinuesAfterSinkError(t *testing.T) {
	c := &capture{}
	failing := notify.SinkFunc(func(context.Context, notify.Event) error { return errors.New("boom") })
	svc := NewService(Options{Sinks: []SinkRegistration{
		{Name: "failing", Sink: failing},
		{Name: "capture", Sink: c.sink()},
		{Name: "nil"},
	}})

	svc.Notify(context.Background(), notify.Event{Subject: "x"})

	require.Len(t, c.events, 1)
	assert.Equal(t, notify.SeverityCritical, c.events[0].Severity)
}

func TestEnabled(t *testing.T) {
	assert.False(t, NewService(Options{}).Enabled())
	var nilSvc *Service
	assert.False(t, nilSvc.Enabled())
}
