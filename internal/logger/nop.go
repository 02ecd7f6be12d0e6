// Package logger holds the library-internal Logger implementations: the
// no-op default the cluster falls back to and a testing.T-backed logger
// for tests. Application-facing adapters (slog, zap) live in the public
// logging package.
package logger

import "github.com/overtone/peerage/types"

// NopLogger discards every message. It is the cluster default when no
// WithLogger option is given.
type NopLogger struct{}

var _ types.Logger = (*NopLogger)(nil)

// NewNop returns a logger that performs no operations.
func NewNop() *NopLogger {
	return &NopLogger{}
}

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Fatal discards the message and does not exit. Callers relying on
// termination must install a real logger.
func (*NopLogger) Fatal(string, ...any) {}
