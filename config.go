package apimetrics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultMaxStoredMetrics is the store capacity used when none is configured.
const DefaultMaxStoredMetrics = 10000

// ErrInvalidCapacity is returned when a store capacity below 1 is requested.
var ErrInvalidCapacity = errors.New("apimetrics: max stored metrics must be at least 1")

// LogLevel gates console output of the collector.
type LogLevel int8

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
)

// String implements fmt.Stringer
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarning:
		return "warning"
	case LogLevelError:
		return "error"
	default:
		return fmt.Sprintf("LogLevel(%d)", int8(l))
	}
}

// UnmarshalText parses a level name. It lets env and flag parsers fill a LogLevel.
func (l *LogLevel) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "debug":
		*l = LogLevelDebug
	case "info", "":
		*l = LogLevelInfo
	case "warning", "warn":
		*l = LogLevelWarning
	case "error":
		*l = LogLevelError
	default:
		return fmt.Errorf("apimetrics: unknown log level %q", text)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (l LogLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarning:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config defines the configuration of a Collector
type Config struct {
	// Console logging of every notification, off by default
	EnableConsoleLogging bool
	LogLevel             LogLevel

	// Store capacity; the oldest records are evicted beyond it
	MaxStoredMetrics int

	// Optional logger. When nil a buffered console logger writing to Output is built.
	Logger *zap.Logger
	// Optional sink for the built console logger, stderr when nil
	Output zapcore.WriteSyncer

	// Optional time source, time.Now when nil
	Clock func() time.Time
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		EnableConsoleLogging: false,
		LogLevel:             LogLevelInfo,
		MaxStoredMetrics:     DefaultMaxStoredMetrics,
	}
}

// envConfig is the subset of Config that can be set from the environment.
type envConfig struct {
	EnableConsoleLogging bool     `env:"APIMETRICS_CONSOLE_LOGGING" envDefault:"false"`
	LogLevel             LogLevel `env:"APIMETRICS_LOG_LEVEL" envDefault:"info"`
	MaxStoredMetrics     int      `env:"APIMETRICS_MAX_STORED_METRICS" envDefault:"10000"`
}

// LoadConfig returns DefaultConfig overridden by APIMETRICS_* environment variables.
func LoadConfig() (Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if ec.MaxStoredMetrics < 1 {
		return Config{}, fmt.Errorf("APIMETRICS_MAX_STORED_METRICS=%d: %w", ec.MaxStoredMetrics, ErrInvalidCapacity)
	}

	cfg := DefaultConfig()
	cfg.EnableConsoleLogging = ec.EnableConsoleLogging
	cfg.LogLevel = ec.LogLevel
	cfg.MaxStoredMetrics = ec.MaxStoredMetrics
	return cfg, nil
}
