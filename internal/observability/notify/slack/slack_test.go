package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
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

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#alerts",
		Username:   "bot",
		Timeout:    time.Second,
	})
	require.NoError(t, err)

	msg := client.formatMessage(notify.Event{
		Kind:       notify.KindJobFailure,
		Subject:    "market_data_update",
		Error:      "boom",
		ErrorClass: "test_error",
		Metadata:   map[string]string{"duration": "2s"},
	})

	assert.Equal(t, "bot", msg["username"])
	assert.Equal(t, "#alerts", msg["channel"])

	text, ok := msg["text"].(string)
	require.True(t, ok)
	for _, want := range []string{"Job failure alert", "market_data_update", "boom", "test_error", "duration: 2s"} {
		assert.Contains(t, text, want)
	}
}

func TestFormatMessageHealthLink(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		HealthURL:  "https://api.example.com/health",
	})
	require.NoError(t, err)

	text := client.formatMessage(notify.Event{
		Kind:    notify.KindHealthDegraded,
		Subject: "forecast-api",
		Summary: "status degraded",
	})["text"].(string)

	assert.Contains(t, text, "*Health alert*")
	assert.Contains(t, text, "<https://api.example.com/health|health report>")

	text = client.formatMessage(notify.Event{Kind: notify.KindJobFailure, Subject: "cache_cleanup"})["text"].(string)
	assert.NotContains(t, text, "health report")
}

func TestFormatMessageEscapesText(t *testing.T) {
	client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/services/test"})
	require.NoError(t, err)

	text := client.formatMessage(notify.Event{Error: "a & <b>"})["text"].(string)
	assert.Contains(t, text, "a &amp; &lt;b&gt;")
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !strings.Contains(body["text"].(string), "cache_cleanup") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, RetryLimit: 1})
	require.NoError(t, err)

	err = client.Send(context.Background(), notify.Event{Kind: notify.KindJobFailure, Subject: "cache_cleanup"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSendReportsClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, RetryLimit: 2})
	require.NoError(t, err)

	err = client.Send(context.Background(), notify.Event{Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_token")
}
