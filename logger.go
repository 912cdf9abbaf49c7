package uxios

import (
	"log/slog"
	"os"
)

// Logger is the structured logging sink used by the client. keysAndValues
// alternate between keys and values, as in log/slog.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type slogLogger struct {
	l *slog.Logger
}

// NewSimpleLogger logs text lines at debug level and above to stderr.
func NewSimpleLogger() Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(handler).With("component", "uxios"))
}

// NewSlogLogger adapts l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, keysAndValues ...any) { s.l.Debug(msg, keysAndValues...) }

func (s *slogLogger) Info(msg string, keysAndValues ...any) { s.l.Info(msg, keysAndValues...) }

func (s *slogLogger) Warn(msg string, keysAndValues ...any) { s.l.Warn(msg, keysAndValues...) }

func (s *slogLogger) Error(msg string, keysAndValues ...any) { s.l.Error(msg, keysAndValues...) }
