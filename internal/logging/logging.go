// Package logging provides structured logging for AccessManager, adapted
// from kubevirt-shepherd's internal/pkg/logger: zap with an AtomicLevel
// for hot-reload, JSON encoding in production and a colorized console
// encoder in development.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global      *zap.Logger
	atomicLevel zap.AtomicLevel
	once        sync.Once
)

// Init builds the global logger. level is one of debug/info/warn/error;
// format is "json" or "console".
func Init(level, format string) error {
	var initErr error
	once.Do(func() {
		atomicLevel = zap.NewAtomicLevel()
		if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
			initErr = fmt.Errorf("logging: parse level %q: %w", level, err)
			return
		}

		var cfg zap.Config
		switch format {
		case "console":
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		default:
			cfg = zap.NewProductionConfig()
		}
		cfg.Level = atomicLevel

		logger, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			initErr = fmt.Errorf("logging: build logger: %w", err)
			return
		}
		global = logger
	})
	return initErr
}

// SetLevel changes the log level at runtime.
func SetLevel(level string) error {
	return atomicLevel.UnmarshalText([]byte(level))
}

// L returns the global logger. It falls back to a no-op logger if Init
// hasn't run yet, so tests and tools that skip explicit initialization
// still work.
func L() *zap.Logger {
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// With returns a child logger carrying the given fields, e.g. the node
// ID or shard description for every log line a component emits.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
