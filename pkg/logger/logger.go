package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a printf-style logger tagged with a component name
type Logger struct {
	sugar     *zap.SugaredLogger
	component string
}

// Options controls how the base zap logger is built
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

var base = mustBuild(Options{Level: "info", Format: "console"})

func mustBuild(opts Options) *zap.Logger {
	l, err := Build(opts)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Build creates a zap logger from options
func Build(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	if opts.Format == "json" {
		cfg.Encoding = "json"
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.DisableStacktrace = true

	return cfg.Build()
}

// Configure replaces the base logger used by New and resets Global
func Configure(opts Options) error {
	l, err := Build(opts)
	if err != nil {
		return err
	}
	base = l
	Global = New("")
	return nil
}

// New creates a new logger for the given component
func New(component string) *Logger {
	return FromZap(base, component)
}

// FromZap wraps an existing zap logger
func FromZap(z *zap.Logger, component string) *Logger {
	if component != "" {
		z = z.With(zap.String("component", component))
	}
	return &Logger{sugar: z.Sugar(), component: component}
}

// Named returns a child logger for a sub-component
func (l *Logger) Named(component string) *Logger {
	name := component
	if l.component != "" {
		name = l.component + "." + component
	}
	return &Logger{sugar: l.sugar.With(zap.String("sub", component)), component: name}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// Global logger instance for application-wide logging
var Global = New("")

// SetGlobal sets the global logger
func SetGlobal(logger *Logger) {
	Global = logger
}
