// Package selector provides peer selection strategies for new guild
// assignments.
//
// Two built-in strategies exist:
//   - Priority: primary first, then ascending load, capacity-aware
//   - LeastLoaded: ascending load only
//
// Both degrade to the least-loaded peer when every candidate is saturated;
// availability wins over strict capacity enforcement. Custom strategies
// implement types.SelectionStrategy.
package selector
