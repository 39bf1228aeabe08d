// Package metrics emits the named metrics shared by the statsd and Prometheus sinks.
package metrics

import (
	"time"

	obserrors "github.com/quantsignal/forecast-api/internal/observability/errors"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// JobMetric captures details about one job firing for metric emission.
type JobMetric struct {
	JobID    string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_id":      in.JobID,
		"result":      in.Result,
		"error_class": "",
	}

	if in.Err != nil && in.Result == ResultError {
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	sink.Count("job.runs", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(map[string]string{
			"job_id": in.JobID,
			"result": in.Result,
		}))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
