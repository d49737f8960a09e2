package apimetrics

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const consoleFlushInterval = time.Second

// consoleLogger owns the logger used for console output and, when it built
// the sink itself, the buffered syncer that must be stopped on Close.
type consoleLogger struct {
	logger   *zap.Logger
	buffered *zapcore.BufferedWriteSyncer
}

// newConsoleLogger returns cfg.Logger when set. Otherwise it builds a
// human-readable logger on a buffered sink flushed every consoleFlushInterval.
func newConsoleLogger(cfg Config) consoleLogger {
	if cfg.Logger != nil {
		return consoleLogger{logger: cfg.Logger.Named("apimetrics")}
	}

	out := cfg.Output
	if out == nil {
		out = zapcore.Lock(os.Stderr)
	}
	buffered := &zapcore.BufferedWriteSyncer{
		WS:            out,
		FlushInterval: consoleFlushInterval,
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	// Gating happens in the collector, the core accepts every level.
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), buffered, zapcore.DebugLevel)

	return consoleLogger{
		logger:   zap.New(core).Named("apimetrics"),
		buffered: buffered,
	}
}

func (l consoleLogger) close() error {
	_ = l.logger.Sync()
	if l.buffered != nil {
		return l.buffered.Stop()
	}
	return nil
}

func recordFields(r Record) []zap.Field {
	fields := []zap.Field{
		zap.String("service", r.Service),
		zap.String("operation", r.Operation),
		zap.Int("status", r.StatusCode),
		zap.Duration("duration", r.Duration),
		zap.Int("retries", r.RetryCount),
	}
	if !r.Success {
		fields = append(fields, zap.String("error", r.ErrorMessage))
	}
	return fields
}
