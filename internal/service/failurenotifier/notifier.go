// Package failurenotifier fans job failures and health transitions out to alerting sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quantsignal/forecast-api/internal/domain/model"
	obserrors "github.com/quantsignal/forecast-api/internal/observability/errors"
	"github.com/quantsignal/forecast-api/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// ServiceName is the subject of health events.
	ServiceName string
}

// Service dispatches events to all registered sinks.
type Service struct {
	logger      *slog.Logger
	sinks       []SinkRegistration
	serviceName string
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{Name: name, Sink: entry.Sink})
	}

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "forecast-api"
	}

	return &Service{
		logger:      logger.With("component", "failure_notifier"),
		sinks:       sinks,
		serviceName: serviceName,
	}
}

// NotifyJobFailure reports a failed job firing.
func (s *Service) NotifyJobFailure(ctx context.Context, rec model.TaskExecutionRecord, err error) {
	s.Notify(ctx, notify.Event{
		Kind:       notify.KindJobFailure,
		Subject:    string(rec.JobID),
		Error:      rec.Error,
		ErrorClass: obserrors.Classify(err),
		Severity:   notify.SeverityCritical,
		OccurredAt: rec.StartedAt,
		Metadata:   map[string]string{"duration": rec.Duration.Round(time.Millisecond).String()},
	})
}

// NotifyHealthChange reports a transition of the overall health status.
func (s *Service) NotifyHealthChange(ctx context.Context, prev model.HealthStatus, report model.HealthReport) {
	event := notify.Event{
		Kind:       notify.KindHealthDegraded,
		Subject:    s.serviceName,
		Summary:    "health status " + string(prev) + " -> " + string(report.Status),
		Severity:   notify.SeverityWarning,
		OccurredAt: report.Timestamp,
		Metadata:   componentSummary(report),
	}
	switch report.Status {
	case model.HealthHealthy:
		event.Kind = notify.KindHealthRecovered
		event.Severity = notify.SeverityInfo
	case model.HealthUnhealthy:
		event.Severity = notify.SeverityCritical
	}
	s.Notify(ctx, event)
}

func componentSummary(report model.HealthReport) map[string]string {
	c := report.Components
	return map[string]string{
		"database":         string(c.Database.Status),
		"counter_store":    string(c.CounterStore.Status),
		"background_tasks": string(c.BackgroundTasks.Status),
		"models":           string(c.Models.Status),
	}
}

// Notify fans the event out to all sinks and waits for every delivery.
func (s *Service) Notify(ctx context.Context, event notify.Event) {
	if len(s.sinks) == 0 {
		return
	}
	if event.Severity == "" {
		event.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.Send(ctx, event); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"kind", event.Kind,
					"subject", event.Subject,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
