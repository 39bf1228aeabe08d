package model

import "time"

// ComponentStatus is the per-component health verdict.
type ComponentStatus string

const (
	ComponentHealthy ComponentStatus = "healthy"
	ComponentWarning ComponentStatus = "warning"
	ComponentError   ComponentStatus = "error"
)

// HealthStatus is the overall verdict.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth is the result of one probe.
type ComponentHealth struct {
	Status  ComponentStatus `json:"status"`
	Message string          `json:"message,omitempty"`
}

// JobHealth is the scheduler view of one job.
type JobHealth struct {
	NextRun *time.Time `json:"next_run"`
	LastRun *time.Time `json:"last_run"`
	Status  string     `json:"status"`
}

// BackgroundTasksHealth reports scheduler state per job.
type BackgroundTasksHealth struct {
	Status  ComponentStatus     `json:"status"`
	Message string              `json:"message,omitempty"`
	Jobs    map[JobID]JobHealth `json:"jobs"`
}

// ModelsHealth reports model artifact availability.
type ModelsHealth struct {
	Status          ComponentStatus `json:"status"`
	AvailableModels []string        `json:"available_models,omitempty"`
	Message         string          `json:"message,omitempty"`
}

// HealthComponents groups the probed components.
type HealthComponents struct {
	Database        ComponentHealth       `json:"database"`
	CounterStore    ComponentHealth       `json:"counter_store"`
	BackgroundTasks BackgroundTasksHealth `json:"background_tasks"`
	Models          ModelsHealth          `json:"models"`
}

// HealthReport is computed fresh on every query and never persisted.
type HealthReport struct {
	Status     HealthStatus     `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
	Components HealthComponents `json:"components"`
}
