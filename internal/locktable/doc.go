// Package locktable provides the expiring per-guild mutual-exclusion tables
// used to arbitrate routing races.
//
// Two implementations exist behind types.LockTable:
//   - Memory: sharded in-process table for co-located peers (default)
//   - KV: NATS JetStream KV-backed table for peers split across processes
//
// Both honor the same contract: non-blocking acquire-or-fail, lazy expiry,
// owner-checked release.
package locktable
