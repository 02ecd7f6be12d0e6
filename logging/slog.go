// Package logging provides adapters from common Go logging backends to the
// Logger interface the cluster accepts through WithLogger. Applications
// that already run slog or zap can reuse their configured logger instead
// of writing an adapter by hand.
package logging

import (
	"log/slog"
	"os"

	"github.com/overtone/peerage/types"
)

// SlogLogger adapts a *slog.Logger to types.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

var _ types.Logger = (*SlogLogger)(nil)

// NewSlog wraps an existing slog.Logger.
//
// Example:
//
//	c, err := peerage.NewCluster(&cfg, conn, gw, engine,
//	    peerage.WithLogger(logging.NewSlog(slog.Default())))
func NewSlog(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

// NewSlogDefault wraps slog.Default().
func NewSlogDefault() *SlogLogger {
	return &SlogLogger{logger: slog.Default()}
}

// NewSlogText builds a text-handler logger writing to stderr at the given
// level. Convenient for examples and small deployments that have no
// logging setup of their own.
func NewSlogText(level slog.Level) *SlogLogger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	return &SlogLogger{logger: slog.New(handler)}
}

// Debug logs at debug level with optional key-value pairs.
func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

// Info logs at info level with optional key-value pairs.
func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

// Warn logs at warn level with optional key-value pairs.
func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

// Error logs at error level with optional key-value pairs.
func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

// Fatal logs at error level (slog has no fatal level) and exits the
// program.
func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
	os.Exit(1)
}
