// Package observability carries the ambient concerns shared by the service
// layer and the change recorder: leveled logging, operation metrics and a
// swappable clock.
package observability

import (
	"log/slog"
	"time"
)

// Logger is the minimal leveled logging surface used across the module.
// Arguments follow slog's alternating key/value convention.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything; it is the default when no logger is wired.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	L *slog.Logger
}

func (l SlogLogger) Debug(msg string, args ...any) { l.L.Debug(msg, args...) }
func (l SlogLogger) Info(msg string, args ...any)  { l.L.Info(msg, args...) }
func (l SlogLogger) Warn(msg string, args ...any)  { l.L.Warn(msg, args...) }
func (l SlogLogger) Error(msg string, args ...any) { l.L.Error(msg, args...) }

// Metrics records service operation outcomes.
type Metrics interface {
	Observe(operation string, success bool, duration time.Duration)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) Observe(string, bool, time.Duration) {}

// Clock supplies the current time; tests substitute a fixed one.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now() })
}
