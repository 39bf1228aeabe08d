package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/migrate"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd(&cli{})

	for _, path := range [][]string{
		{"migrate"},
		{"keys", "sweep"},
		{"keys", "list"},
		{"jobs", "list"},
		{"jobs", "run"},
		{"health"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	run, _, err := root.Find([]string{"jobs", "run"})
	require.NoError(t, err)
	assert.Error(t, run.Args(run, nil))
	assert.NoError(t, run.Args(run, []string{"model_retraining"}))

	list, _, err := root.Find([]string{"keys", "list"})
	require.NoError(t, err)
	assert.NotNil(t, list.Flags().Lookup("owner"))
}

func TestRenderJobs(t *testing.T) {
	next := time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	renderJobs(&buf, []model.JobInfo{
		{ID: "model_retraining", Trigger: "cron[0 1 * * *]", State: model.JobStateScheduled, NextRun: &next},
		{ID: "cache_cleanup", Trigger: "cron[0 2 * * *]", State: model.JobStatePaused, LastOutcome: model.TaskOutcomeError, LastError: "boom"},
	})

	out := buf.String()
	assert.Contains(t, out, "model_retraining")
	assert.Contains(t, out, "2024-01-02T01:00:00Z")
	assert.Contains(t, out, "error: boom")
}

func TestRenderHealth(t *testing.T) {
	var buf bytes.Buffer
	renderHealth(&buf, model.HealthReport{
		Status:    model.HealthDegraded,
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Components: model.HealthComponents{
			Database:     model.ComponentHealth{Status: model.ComponentHealthy},
			CounterStore: model.ComponentHealth{Status: model.ComponentError, Message: "redis down"},
			Models:       model.ModelsHealth{Status: model.ComponentHealthy, AvailableModels: []string{"AAPL_v1", "MSFT_v1"}},
			BackgroundTasks: model.BackgroundTasksHealth{
				Status: model.ComponentHealthy,
				Jobs:   map[model.JobID]model.JobHealth{"cache_cleanup": {Status: "active"}},
			},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "overall: degraded")
	assert.Contains(t, out, "redis down")
	assert.Contains(t, out, "2 artifact(s)")
	assert.Contains(t, out, "cache_cleanup")
}

func TestRenderKeysAndMigrations(t *testing.T) {
	var buf bytes.Buffer
	renderKeys(&buf, &model.Principal{Subject: "alice", Email: "alice@example.com"}, []*model.APIKey{
		{ID: "k1", Name: "ci", KeySuffix: "abcd1234", IsActive: true},
	})
	assert.Contains(t, buf.String(), "alice (alice@example.com)")
	assert.Contains(t, buf.String(), "...abcd1234")

	buf.Reset()
	renderMigrations(&buf, []migrate.Status{{Version: "0001_init", Applied: true}})
	assert.Contains(t, buf.String(), "0001_init")
	assert.Contains(t, buf.String(), "true")
}
