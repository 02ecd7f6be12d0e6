package logging

import (
	"go.uber.org/zap"

	"github.com/overtone/peerage/types"
)

// ZapLogger adapts a *zap.Logger to types.Logger through its sugared API.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ types.Logger = (*ZapLogger)(nil)

// NewZap wraps an existing zap.Logger.
//
// Example:
//
//	zl, _ := zap.NewProduction()
//	c, err := peerage.NewCluster(&cfg, conn, gw, engine,
//	    peerage.WithLogger(logging.NewZap(zl)))
func NewZap(logger *zap.Logger) *ZapLogger {
	// Skip a frame so caller info points at the call site, not this adapter.
	return &ZapLogger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Debug logs at debug level with optional key-value pairs.
func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs at info level with optional key-value pairs.
func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs at warn level with optional key-value pairs.
func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs at error level with optional key-value pairs.
func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Fatal logs at fatal level and terminates the program.
func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) {
	l.sugar.Fatalw(msg, keysAndValues...)
}
