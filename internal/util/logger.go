package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// InitLogger builds the process-wide logger and installs it globally, so
// both GetLogger and zap.L() resolve to the same instance. Production gets
// JSON at info level; anything else gets colored console output for local
// runs.
func InitLogger(env string) error {
	built, err := buildLogger(env)
	if err != nil {
		return err
	}
	logger = built
	zap.ReplaceGlobals(logger)
	return nil
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProductionConfig().Build()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// GetLogger returns the process logger. Before InitLogger has run (tests,
// early init paths) it falls back to a development logger so callers never
// receive nil.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// SyncLogger flushes buffered entries; called on shutdown.
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
