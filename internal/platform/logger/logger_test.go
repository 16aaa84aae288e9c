package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyboard-api/internal/config"
)

// TestSetupReturnsLogger verifies that Setup returns a usable logger for
// each valid log level.
func TestSetupReturnsLogger(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error", "DEBUG", "Info"}

	for _, level := range levels {
		t.Run(level, func(t *testing.T) {
			logger, err := Setup(config.ServerConfig{Port: 8080, LogLevel: level})

			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

// TestSetupInvalidLevelFallsBack verifies that an unknown level falls back
// to info rather than failing.
func TestSetupInvalidLevelFallsBack(t *testing.T) {
	logger, err := Setup(config.ServerConfig{Port: 8080, LogLevel: "chatty"})

	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo), "fallback logger should log at info")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug), "fallback logger should not log at debug")
}

// TestSetupSetsDefault verifies that Setup installs the logger as the
// process default.
func TestSetupSetsDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	logger, err := Setup(config.ServerConfig{Port: 8080, LogLevel: "warn"})

	require.NoError(t, err)
	assert.Same(t, logger, slog.Default())
}

// TestLogBufferCapture verifies the test helper buffer parses JSON records.
func TestLogBufferCapture(t *testing.T) {
	buf, logger, cleanup := SetupTestLogger(t, nil)
	defer cleanup()

	logger.Info("storyboard job accepted", slog.String("job_id", "abc"))
	logger.Warn("batch retried", slog.Int("attempt", 2))

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "storyboard job accepted", entries[0]["msg"])
	assert.Equal(t, "abc", entries[0]["job_id"])
	assert.Equal(t, "batch retried", entries[1]["msg"])
}
