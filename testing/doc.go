// Package testing provides test utilities for the peerage library.
//
// This package offers helpers for setting up test environments: an embedded
// NATS server for integration testing plus in-memory fakes for the external
// collaborator interfaces (Gateway, SessionEngine). It follows Go's
// convention of providing testing utilities in a dedicated package (similar
// to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewFakeGateway / NewFakeEngine: Controllable collaborator fakes
//   - NewTestLogger: Logger writing to testing.T
//
// Example usage:
//
//	import (
//	    "testing"
//	    peertest "github.com/overtone/peerage/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := peertest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
