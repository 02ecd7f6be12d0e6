package logger

import (
	"fmt"
	"strings"
	"testing"

	"github.com/overtone/peerage/types"
)

// TestLogger routes messages through testing.T so they interleave with
// test output and only surface on failure or -v.
type TestLogger struct {
	t *testing.T
}

var _ types.Logger = (*TestLogger)(nil)

// NewTest returns a logger writing through t.Logf.
func NewTest(t *testing.T) *TestLogger {
	return &TestLogger{t: t}
}

func (l *TestLogger) Debug(msg string, keysAndValues ...any) {
	l.t.Logf("DEBUG: %s%s", msg, formatPairs(keysAndValues))
}

func (l *TestLogger) Info(msg string, keysAndValues ...any) {
	l.t.Logf("INFO: %s%s", msg, formatPairs(keysAndValues))
}

func (l *TestLogger) Warn(msg string, keysAndValues ...any) {
	l.t.Logf("WARN: %s%s", msg, formatPairs(keysAndValues))
}

func (l *TestLogger) Error(msg string, keysAndValues ...any) {
	l.t.Logf("ERROR: %s%s", msg, formatPairs(keysAndValues))
}

// Fatal fails the test immediately.
func (l *TestLogger) Fatal(msg string, keysAndValues ...any) {
	l.t.Fatalf("FATAL: %s%s", msg, formatPairs(keysAndValues))
}

// formatPairs renders key-value pairs as " k=v k=v". A trailing key with
// no value is rendered with a <missing> marker rather than dropped.
func formatPairs(pairs []any) string {
	if len(pairs) == 0 {
		return ""
	}

	var b strings.Builder

	for i := 0; i < len(pairs); i += 2 {
		if i+1 < len(pairs) {
			fmt.Fprintf(&b, " %v=%v", pairs[i], pairs[i+1])
		} else {
			fmt.Fprintf(&b, " %v=<missing>", pairs[i])
		}
	}

	return b.String()
}
