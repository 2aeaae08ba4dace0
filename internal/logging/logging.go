// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/homedisk/internal/config"
)

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New initializes a *zap.Logger from cfg. The returned cleanup flushes the
// logger and closes a rotated log file if one was opened.
func New(cfg config.LoggingConfig) (*zap.Logger, func(), error) {
	sink, closeSink, err := openSink(cfg)
	if err != nil {
		return nil, nil, err
	}

	var enc zapcore.Encoder
	if cfg.Format == "console" {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if cfg.Output != "stdout" && cfg.Output != "stderr" {
			ec.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(ec)
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	}

	core := zapcore.NewCore(enc, sink, levelFromString(cfg.Level))
	log := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	cleanup := func() {
		_ = log.Sync()
		closeSink()
	}
	return log, cleanup, nil
}

func openSink(cfg config.LoggingConfig) (zapcore.WriteSyncer, func(), error) {
	switch cfg.Output {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), func() {}, nil
	case "stderr":
		return zapcore.Lock(os.Stderr), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o750); err != nil {
		return nil, nil, fmt.Errorf("log dir: %w", err)
	}
	opts := []rotatelogs.Option{
		rotatelogs.WithLinkName(cfg.Output),
		rotatelogs.WithRotationTime(24 * time.Hour),
	}
	if cfg.MaxAge > 0 {
		opts = append(opts, rotatelogs.WithMaxAge(cfg.MaxAge))
	}
	rl, err := rotatelogs.New(cfg.Output+".%Y%m%d", opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("rotate logs: %w", err)
	}
	return zapcore.AddSync(rl), func() { _ = rl.Close() }, nil
}
