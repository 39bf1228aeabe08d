package model

import "time"

// JobID names a registered job.
type JobID string

const (
	JobModelRetraining  JobID = "model_retraining"
	JobMarketDataUpdate JobID = "market_data_update"
	JobCacheCleanup     JobID = "cache_cleanup"
)

// TaskOutcome is the result of one job firing.
type TaskOutcome string

const (
	TaskOutcomeSuccess TaskOutcome = "success"
	TaskOutcomeError   TaskOutcome = "error"
)

// TaskStatus is the status value written to the counter store after a run.
type TaskStatus string

const (
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusError     TaskStatus = "error"
)

// JobState is a job's position in the scheduler lifecycle.
type JobState string

const (
	JobStateRegistered JobState = "registered"
	JobStateScheduled  JobState = "scheduled"
	JobStateFiring     JobState = "firing"
	JobStatePaused     JobState = "paused"
	JobStateStopped    JobState = "stopped"
)

// TaskExecutionRecord is one entry in a job's append-only history.
type TaskExecutionRecord struct {
	JobID     JobID         `json:"job_id"`
	StartedAt time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Outcome   TaskOutcome   `json:"outcome"`
	Error     string        `json:"error,omitempty"`
}

// JobInfo is a point-in-time snapshot of a registered job.
type JobInfo struct {
	ID          JobID       `json:"id"`
	Trigger     string      `json:"trigger"`
	State       JobState    `json:"state"`
	NextRun     *time.Time  `json:"next_run"`
	LastRun     *time.Time  `json:"last_run"`
	LastOutcome TaskOutcome `json:"last_outcome,omitempty"`
	LastError   string      `json:"last_error,omitempty"`
}

// ScheduleStatus is "active" when a next fire time exists, else "paused".
type ScheduleStatus string

const (
	ScheduleActive ScheduleStatus = "active"
	SchedulePaused ScheduleStatus = "paused"
)

// JobMetrics aggregates a job's execution history.
type JobMetrics struct {
	TotalRuns   int            `json:"total_runs"`
	Successes   int            `json:"successes"`
	Failures    int            `json:"failures"`
	SuccessRate *float64       `json:"success_rate"`
	Status      ScheduleStatus `json:"status"`
	NextRun     *time.Time     `json:"next_run"`
	LastRun     *time.Time     `json:"last_run"`
}

// TaskMetrics covers every registered job.
type TaskMetrics struct {
	Status      HealthStatus         `json:"status"`
	GeneratedAt time.Time            `json:"generated_at"`
	Jobs        map[JobID]JobMetrics `json:"jobs"`
	Error       string               `json:"error,omitempty"`
}
