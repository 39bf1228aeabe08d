package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/migrate"
)

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func renderMigrations(w io.Writer, statuses []migrate.Status) {
	t := newTable(w, table.Row{"Version", "Applied"})
	for _, s := range statuses {
		t.AppendRow(table.Row{s.Version, s.Applied})
	}
	t.Render()
}

func renderKeys(w io.Writer, owner *model.Principal, keys []*model.APIKey) {
	t := newTable(w, table.Row{"ID", "Name", "Suffix", "Active", "Created", "Expires", "Last used"})
	t.SetTitle("%s (%s)", owner.Subject, owner.Email)
	for _, k := range keys {
		created, expires := k.CreatedAt, k.ExpiresAt
		t.AppendRow(table.Row{
			k.ID, k.Name, "..." + k.KeySuffix, k.IsActive,
			formatTime(&created), formatTime(&expires), formatTime(k.LastUsed),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(keys)})
	t.Render()
}

func renderJobs(w io.Writer, jobs []model.JobInfo) {
	t := newTable(w, table.Row{"Job", "Trigger", "State", "Next run", "Last run", "Last outcome"})
	for _, j := range jobs {
		outcome := string(j.LastOutcome)
		if j.LastError != "" {
			outcome += ": " + j.LastError
		}
		t.AppendRow(table.Row{j.ID, j.Trigger, j.State, formatTime(j.NextRun), formatTime(j.LastRun), outcome})
	}
	t.Render()
}

func renderExecution(w io.Writer, rec model.TaskExecutionRecord) {
	t := newTable(w, table.Row{"Job", "Started", "Duration", "Outcome", "Error"})
	started := rec.StartedAt
	t.AppendRow(table.Row{rec.JobID, formatTime(&started), rec.Duration.Round(time.Millisecond), rec.Outcome, rec.Error})
	t.Render()
}

func renderHealth(w io.Writer, report model.HealthReport) {
	t := newTable(w, table.Row{"Component", "Status", "Detail"})
	t.SetTitle("overall: %s at %s", report.Status, report.Timestamp.UTC().Format(time.RFC3339))
	c := report.Components
	t.AppendRow(table.Row{"database", c.Database.Status, c.Database.Message})
	t.AppendRow(table.Row{"counter_store", c.CounterStore.Status, c.CounterStore.Message})

	modelsDetail := c.Models.Message
	if n := len(c.Models.AvailableModels); n > 0 {
		modelsDetail = fmt.Sprintf("%d artifact(s)", n)
	}
	t.AppendRow(table.Row{"models", c.Models.Status, modelsDetail})
	t.AppendRow(table.Row{"background_tasks", c.BackgroundTasks.Status, c.BackgroundTasks.Message})

	ids := make([]string, 0, len(c.BackgroundTasks.Jobs))
	for id := range c.BackgroundTasks.Jobs {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		job := c.BackgroundTasks.Jobs[model.JobID(id)]
		t.AppendRow(table.Row{"  " + id, job.Status, "next " + formatTime(job.NextRun)})
	}
	t.Render()
}
