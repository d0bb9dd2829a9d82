// Package logging builds the zap loggers used by the CLI: a console logger on
// stderr and an optional rotating JSON log file. Every sink sits behind a
// core that redacts credentials from messages and string fields.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level and sinks.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string
	// Verbose forces debug output regardless of Level.
	Verbose bool
	// File, when set, receives JSON entries rotated by size.
	File      string
	MaxSizeMB int
	// JSON switches the console sink to the JSON encoder.
	JSON bool
}

type levelEnabler struct {
	verbose bool
	min     zapcore.Level
}

func (l *levelEnabler) Enabled(level zapcore.Level) bool {
	return l.verbose || level >= l.min
}

// ParseLevel accepts debug, info, warn and error. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func NewConsoleLogger(output io.Writer, verbose bool, level zapcore.Level) *zap.Logger {
	cfg := encoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(output), &levelEnabler{verbose: verbose, min: level})
	return zap.New(NewRedactingCore(core), zap.AddStacktrace(zap.ErrorLevel))
}

func NewJSONLogger(output io.Writer, verbose bool, level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(output), &levelEnabler{verbose: verbose, min: level})
	return zap.New(NewRedactingCore(core), zap.AddStacktrace(zap.ErrorLevel))
}

func NewMultiLogger(loggers ...*zap.Logger) *zap.Logger {
	cores := []zapcore.Core{}
	for _, logger := range loggers {
		cores = append(cores, logger.Core())
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
}

// New builds the CLI logger. The returned close function flushes and
// releases the log file.
func New(cfg Config, console io.Writer) (*zap.Logger, func(), error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if console == nil {
		console = os.Stderr
	}
	var logger *zap.Logger
	if cfg.JSON {
		logger = NewJSONLogger(console, cfg.Verbose, level)
	} else {
		logger = NewConsoleLogger(console, cfg.Verbose, level)
	}
	if cfg.File == "" {
		return logger, func() { _ = logger.Sync() }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: 3,
		MaxAge:     28,
	}
	fileLogger := NewJSONLogger(rotator, cfg.Verbose, level)
	multi := NewMultiLogger(logger, fileLogger)
	return multi, func() {
		_ = multi.Sync()
		_ = rotator.Close()
	}, nil
}
