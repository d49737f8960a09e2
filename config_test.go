package apimetrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikiz24/apimetrics"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := apimetrics.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, apimetrics.DefaultConfig(), cfg)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("APIMETRICS_CONSOLE_LOGGING", "true")
	t.Setenv("APIMETRICS_LOG_LEVEL", "warn")
	t.Setenv("APIMETRICS_MAX_STORED_METRICS", "250")

	cfg, err := apimetrics.LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.EnableConsoleLogging)
	assert.Equal(t, apimetrics.LogLevelWarning, cfg.LogLevel)
	assert.Equal(t, 250, cfg.MaxStoredMetrics)
}

func TestLoadConfig_InvalidLevel(t *testing.T) {
	t.Setenv("APIMETRICS_LOG_LEVEL", "verbose")

	_, err := apimetrics.LoadConfig()
	assert.ErrorContains(t, err, "verbose")
}

func TestLoadConfig_InvalidCapacity(t *testing.T) {
	t.Setenv("APIMETRICS_MAX_STORED_METRICS", "0")

	_, err := apimetrics.LoadConfig()
	assert.ErrorIs(t, err, apimetrics.ErrInvalidCapacity)
}

func TestLogLevel_Text(t *testing.T) {
	for _, tc := range []struct {
		text string
		want apimetrics.LogLevel
	}{
		{"debug", apimetrics.LogLevelDebug},
		{"INFO", apimetrics.LogLevelInfo},
		{"", apimetrics.LogLevelInfo},
		{"warning", apimetrics.LogLevelWarning},
		{" Warn ", apimetrics.LogLevelWarning},
		{"error", apimetrics.LogLevelError},
	} {
		var l apimetrics.LogLevel
		require.NoError(t, l.UnmarshalText([]byte(tc.text)), tc.text)
		assert.Equal(t, tc.want, l, tc.text)
	}

	out, err := apimetrics.LogLevelWarning.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "warning", string(out))
	assert.Equal(t, "LogLevel(9)", apimetrics.LogLevel(9).String())
}
