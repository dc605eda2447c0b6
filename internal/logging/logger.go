// Package logging provides the printf-style leveled logger used across the
// Core. It wraps log/slog rather than inventing a formatting scheme.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
)

// Logger is implemented by every component logger in this module.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// slogLogger adapts *slog.Logger to the printf-style Logger interface.
type slogLogger struct {
	base *slog.Logger
}

// New builds a Logger. In production (SURF_ENV=production) it emits JSON to
// stdout; otherwise a human-readable text handler.
func New() Logger {
	level := slog.LevelInfo
	if v := os.Getenv("SURF_LOG_LEVEL"); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			level = l
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if os.Getenv("SURF_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return &slogLogger{base: slog.New(handler)}
}

// NewComponentLogger returns a Logger tagged with a "component" attribute.
func NewComponentLogger(component string) Logger {
	l := New().(*slogLogger)
	return &slogLogger{base: l.base.With("component", component)}
}

func (l *slogLogger) Debug(format string, args ...any) { l.base.Debug(fmt.Sprintf(format, args...)) }
func (l *slogLogger) Info(format string, args ...any)  { l.base.Info(fmt.Sprintf(format, args...)) }
func (l *slogLogger) Warn(format string, args ...any)  { l.base.Warn(fmt.Sprintf(format, args...)) }
func (l *slogLogger) Error(format string, args ...any) { l.base.Error(fmt.Sprintf(format, args...)) }

// nopLogger discards everything. Used by OrNop when given a nil logger.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// IsNil reports whether logger is a nil interface or a typed nil pointer
// hiding behind the interface (the classic Go gotcha).
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	v := reflect.ValueOf(logger)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// OrNop returns logger if usable, otherwise a safe no-op Logger. Components
// call this once at construction so call sites never guard against nil.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return nopLogger{}
	}
	return logger
}
