// Package types contains the core types and interfaces shared across the
// peerage library.
//
// Internal packages depend on types without depending on the root peerage
// package, which avoids import cycles. The root package re-exports the
// commonly used definitions as type aliases for convenience.
package types
