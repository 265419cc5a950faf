package telemetry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"trace", zerolog.TraceLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, telemetry.ParseLevel(tt.in))
		})
	}
}

func TestNewLogger_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hyperdoc.log")
	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	component := telemetry.Component(logger, "router")
	component.Info().Msg("dropped")
	component.Warn().Msg("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"router"`)
	assert.Contains(t, string(data), `"message":"kept"`)
	assert.NotContains(t, string(data), "dropped")
}

func TestNewLogger_BadPath(t *testing.T) {
	_, err := telemetry.NewLogger(telemetry.LoggingConfig{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
