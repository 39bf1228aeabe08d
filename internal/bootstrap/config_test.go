package bootstrap

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/forecast-api/config"
)

func TestSetLogLevel(t *testing.T) {
	t.Cleanup(func() { logLevel.Set(slog.LevelInfo) })

	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, slog.LevelDebug, logLevel.Level())

	require.NoError(t, SetLogLevel(" WARN "))
	assert.Equal(t, slog.LevelWarn, logLevel.Level())

	assert.Error(t, SetLogLevel("verbose"))
	assert.Equal(t, slog.LevelWarn, logLevel.Level())
}

func TestValidateServiceConfig(t *testing.T) {
	tests := []struct {
		name     string
		services string
		watchURL string
		wantErr  bool
	}{
		{name: "http and scheduler", services: "http,scheduler"},
		{name: "unknown mode", services: "http,reaper", wantErr: true},
		{name: "empty", services: "", wantErr: true},
		{name: "watcher alongside scheduler", services: "scheduler,health-watch"},
		{name: "standalone watcher without url", services: "health-watch", wantErr: true},
		{name: "standalone watcher with url", services: "health-watch", watchURL: "http://api:8080/health/check"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.AppConfig{Services: tt.services}
			cfg.HealthWatch.URL = tt.watchURL
			err := ValidateServiceConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.Error(t, ValidateServiceConfig(nil))
}

func TestGetEnabledServicesSorted(t *testing.T) {
	cfg := &config.AppConfig{Services: "scheduler, http ,health-watch"}
	assert.Equal(t, []string{"health-watch", "http", "scheduler"}, GetEnabledServices(cfg))
	assert.Empty(t, GetEnabledServices(&config.AppConfig{Services: "bogus"}))
	assert.Empty(t, GetEnabledServices(nil))
}
