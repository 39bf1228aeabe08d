package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Kind distinguishes the events a sink may receive.
type Kind string

const (
	KindJobFailure      Kind = "job_failure"
	KindHealthDegraded  Kind = "health_degraded"
	KindHealthRecovered Kind = "health_recovered"
)

// Event is the canonical payload for failure and health notifications.
type Event struct {
	Kind       Kind
	Subject    string // job id, or the service name for health events
	Summary    string
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Resolves reports whether the event closes a previously triggered incident.
func (e Event) Resolves() bool { return e.Kind == KindHealthRecovered }

// DedupKey groups trigger and resolve events for the same incident.
func (e Event) DedupKey() string {
	switch e.Kind {
	case KindHealthDegraded, KindHealthRecovered:
		return "health:" + e.Subject
	default:
		return string(e.Kind) + ":" + e.Subject
	}
}

// Sink describes a destination capable of consuming notifications.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, event Event) error

// Send implements the Sink interface.
func (f SinkFunc) Send(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}
