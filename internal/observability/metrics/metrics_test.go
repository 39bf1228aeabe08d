package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type captured struct {
	name  string
	value float64
	tags  map[string]string
}

type captureSink struct {
	counts  []captured
	gauges  []captured
	timings []captured
}

func (c *captureSink) Count(name string, value int64, tags map[string]string) {
	c.counts = append(c.counts, captured{name, float64(value), tags})
}

func (c *captureSink) Gauge(name string, value float64, tags map[string]string) {
	c.gauges = append(c.gauges, captured{name, value, tags})
}

func (c *captureSink) Timing(name string, value time.Duration, tags map[string]string) {
	c.timings = append(c.timings, captured{name, value.Seconds(), tags})
}

func TestEmitJobLifecycle(t *testing.T) {
	sink := &captureSink{}
	EmitJobLifecycle(sink, JobMetric{
		JobID:    "market_data_update",
		Result:   ResultError,
		Duration: 2 * time.Second,
		Err:      fmt.Errorf("fetch: %w", context.DeadlineExceeded),
	})

	if assert.Len(t, sink.counts, 1) {
		assert.Equal(t, "job.runs", sink.counts[0].name)
		assert.Equal(t, "timeout", sink.counts[0].tags["error_class"])
	}
	if assert.Len(t, sink.timings, 1) {
		assert.InDelta(t, 2.0, sink.timings[0].value, 0.001)
		assert.NotContains(t, sink.timings[0].tags, "error_class")
	}
}

func TestEmitJobLifecycleSkippedHasNoTiming(t *testing.T) {
	sink := &captureSink{}
	EmitJobLifecycle(sink, JobMetric{JobID: "cache_cleanup", Result: ResultSkipped})

	assert.Len(t, sink.counts, 1)
	assert.Empty(t, sink.timings)
	assert.Equal(t, "", sink.counts[0].tags["error_class"])
}

func TestEmitHealthStatus(t *testing.T) {
	sink := &captureSink{}
	EmitHealthStatus(sink, "degraded")
	EmitHealthStatus(sink, "bogus")

	assert.Equal(t, 1.0, sink.gauges[0].value)
	assert.Equal(t, 2.0, sink.gauges[1].value)
}

func TestNilSinkIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitFailOpen(nil, "rate_limit")
		EmitRateLimited(nil)
		EmitAuthFailure(nil, "invalid_key")
		EmitSuspicious(nil)
		EmitJobLifecycle(nil, JobMetric{})
	})
}
