// Package natsutil provides NATS-specific error classification helpers.
package natsutil

import (
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/overtone/peerage/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// Routing treats connectivity failures on the assignment store as advisory:
// an unreadable row is handled as if absent rather than failing the command.
// This helper distinguishes those failures from application errors.
//
// Kept in internal/natsutil to avoid importing NATS dependencies in the
// types package.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if the error indicates a connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrConnectivity) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}
