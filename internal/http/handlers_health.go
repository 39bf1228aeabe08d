package httpx

import (
	"io"
	"net/http"

	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/service"
)

const livenessResponse = `{"status":"ok"}`

// livenessHandler answers without probing dependencies.
func livenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, livenessResponse); err != nil {
		return
	}
}

// TaskMetricsSource aggregates job execution history. *service.SchedulerService satisfies it.
type TaskMetricsSource interface {
	TaskMetrics() model.TaskMetrics
}

// HealthHandlers serves the aggregated health report and task metrics.
type HealthHandlers struct {
	Checker service.HealthChecker
	// Tasks is nil in processes that do not run the scheduler.
	Tasks TaskMetricsSource
}

// Check returns the health report: 200 when healthy, 207 otherwise.
// GET /health and GET /health/check.
func (h *HealthHandlers) Check(w http.ResponseWriter, r *http.Request) {
	report := h.Checker.Check(r.Context())
	code := http.StatusOK
	if report.Status != model.HealthHealthy {
		code = http.StatusMultiStatus
	}
	WriteJSON(w, code, report)
}

// TaskMetrics returns per-job run counts and schedule status.
// GET /api/v1/tasks/metrics.
func (h *HealthHandlers) TaskMetrics(w http.ResponseWriter, _ *http.Request) {
	if h.Tasks == nil {
		WriteJSON(w, http.StatusServiceUnavailable, model.TaskMetrics{
			Status: model.HealthUnhealthy,
			Error:  "scheduler not running in this process",
		})
		return
	}
	m := h.Tasks.TaskMetrics()
	code := http.StatusOK
	if m.Status == model.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, m)
}
