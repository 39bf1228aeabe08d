package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/forecast-api/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key", Timeout: time.Second})
	require.NoError(t, err)

	event := client.buildEvent(notify.Event{
		Kind:       notify.KindJobFailure,
		Subject:    "model_retraining",
		Error:      "boom",
		ErrorClass: "err_class",
	})

	assert.Equal(t, "trigger", event["event_action"])
	assert.Equal(t, "job_failure:model_retraining", event["dedup_key"])

	payload, ok := event["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, notify.SeverityCritical, payload["severity"])
	assert.Equal(t, "forecast", payload["source"])
	assert.Equal(t, "forecast", payload["component"])
	assert.Equal(t, "Job model_retraining failed", payload["summary"])

	custom, ok := payload["custom_details"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"kind", "subject", "error", "error_class"} {
		assert.Contains(t, custom, key)
	}
}

func TestBuildEventResolve(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	require.NoError(t, err)

	event := client.buildEvent(notify.Event{Kind: notify.KindHealthRecovered, Subject: "forecast-api"})
	assert.Equal(t, "resolve", event["event_action"])
	assert.Equal(t, "health:forecast-api", event["dedup_key"])
	assert.NotContains(t, event, "payload")
}

func TestSendPostsToEndpoint(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "rk", Endpoint: srv.URL})
	require.NoError(t, err)

	require.NoError(t, client.Send(context.Background(), notify.Event{
		Kind:     notify.KindHealthDegraded,
		Subject:  "forecast-api",
		Summary:  "overall status unhealthy",
		Severity: notify.SeverityWarning,
	}))
	assert.Equal(t, "rk", got["routing_key"])
	assert.Equal(t, "health:forecast-api", got["dedup_key"])
}
