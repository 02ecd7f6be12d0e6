package testing

import (
	"testing"

	"github.com/overtone/peerage/internal/logger"
	"github.com/overtone/peerage/types"
)

// NewTestLogger creates a logger that writes through testing.T, so log
// output appears interleaved with test output and only for failing tests
// (or with -v).
func NewTestLogger(t *testing.T) types.Logger {
	return logger.NewTest(t)
}
