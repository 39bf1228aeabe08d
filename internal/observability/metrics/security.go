package metrics

import "github.com/quantsignal/forecast-api/internal/observability/statsd"

// EmitFailOpen counts a gate that allowed a request because its store was unavailable.
func EmitFailOpen(sink statsd.Sink, gate string) {
	if sink == nil {
		return
	}
	sink.Count("failopen.decisions", 1, map[string]string{"gate": gate})
}

// EmitRateLimited counts a request rejected by the rate limiter.
func EmitRateLimited(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count("ratelimit.rejected", 1, map[string]string{"policy": "fixed_window"})
}

// EmitAuthFailure counts a rejected credential by reason.
func EmitAuthFailure(sink statsd.Sink, reason string) {
	if sink == nil {
		return
	}
	sink.Count("auth.failed", 1, map[string]string{"reason": reason})
}

// EmitSuspicious counts identifiers that crossed the failed-attempt threshold.
func EmitSuspicious(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count("security.suspicious", 1, nil)
}

// healthLevels orders overall statuses for the gauge.
var healthLevels = map[string]float64{"healthy": 0, "degraded": 1, "unhealthy": 2}

// EmitHealthStatus records the overall health verdict as 0 (healthy), 1 (degraded) or 2 (unhealthy).
func EmitHealthStatus(sink statsd.Sink, status string) {
	if sink == nil {
		return
	}
	level, ok := healthLevels[status]
	if !ok {
		level = 2
	}
	sink.Gauge("health.status", level, nil)
}
