// Package logging builds the process logger: zap JSON output exposed as a *slog.Logger
// so components depend only on the standard logging interface.
package logging

import (
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Config selects the output of NewLogger.
type Config struct {
	Service string
	Env     string
	Level   string
}

// NewZap creates a production zap logger that emits JSON to stdout with the service
// and environment on every entry.
func NewZap(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stdout"}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.MessageKey = "msg"
	zc.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	zc.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	zc.InitialFields = map[string]any{
		"service": cfg.Service,
		"env":     cfg.Env,
	}
	return zc.Build()
}

// NewLogger returns a *slog.Logger backed by zap and the underlying zap logger, which
// the caller must Sync on shutdown.
func NewLogger(cfg Config) (*slog.Logger, *zap.Logger, error) {
	z, err := NewZap(cfg)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(zapslog.NewHandler(z.Core())), z, nil
}

// Alert logs an operator-visible failure such as corrupted ledger state.
func Alert(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, append([]any{"alert", true}, args...)...)
}

func parseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}
