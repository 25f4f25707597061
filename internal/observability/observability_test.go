package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	obs, err := Init(context.Background(), Config{Environment: "test", LogLevel: "debug", Output: &buf})
	require.NoError(t, err)

	require.NotNil(t, obs.Provider.Logger)
	require.NotNil(t, obs.Registry.Tracer)
	require.NotNil(t, obs.Registry.RankingMetrics)

	obs.Provider.Logger.Debug("hello")
	assert.Contains(t, buf.String(), `"service":"courtrank"`)
	assert.Contains(t, buf.String(), `"environment":"test"`)

	assert.NoError(t, obs.Shutdown(context.Background()))
}
