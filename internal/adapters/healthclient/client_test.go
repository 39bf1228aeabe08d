package healthclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/testutil"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckParsesMultiStatus(t *testing.T) {
	srv := serve(t, http.StatusMultiStatus, `{"status":"degraded","timestamp":"2024-01-01T12:00:00Z",
		"components":{"models":{"status":"warning","message":"no trained models found"}}}`)
	c, err := New(Config{URL: srv.URL})
	require.NoError(t, err)

	report := c.Check(context.Background())
	assert.Equal(t, model.HealthDegraded, report.Status)
	assert.Equal(t, model.ComponentWarning, report.Components.Models.Status)
}

func TestCheckUnexpectedStatusIsUnhealthy(t *testing.T) {
	srv := serve(t, http.StatusBadGateway, `bad gateway`)
	clock := testutil.NewFakeClock(testutil.TestTime())
	c, err := New(Config{URL: srv.URL, Clock: clock})
	require.NoError(t, err)

	report := c.Check(context.Background())
	assert.Equal(t, model.HealthUnhealthy, report.Status)
	assert.Equal(t, testutil.TestTime(), report.Timestamp)
	assert.Contains(t, report.Components.Database.Message, "502")
}

func TestCheckUnreachable(t *testing.T) {
	srv := serve(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	c, err := New(Config{URL: url})
	require.NoError(t, err)
	assert.Equal(t, model.HealthUnhealthy, c.Check(context.Background()).Status)
}

func TestCheckEmptyBodyIsUnhealthy(t *testing.T) {
	srv := serve(t, http.StatusOK, `{}`)
	c, err := New(Config{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, model.HealthUnhealthy, c.Check(context.Background()).Status)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{URL: " "})
	require.Error(t, err)
}
