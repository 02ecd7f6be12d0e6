package peerage

import "github.com/overtone/peerage/types"

// Re-export types from the internal types package.
//
// This file provides a stable, backward-compatible public API for the library's
// core types and interfaces. It uses type aliases to re-export definitions
// from the `types` subpackage, which contains the actual implementations.
//
// This pattern solves the "import cycle" problem by allowing internal packages
// to depend on `types` without depending on the root `peerage` package, while
// still providing a convenient `peerage.Peer`, `peerage.Logger`, etc. for users.
type (
	PeerStatus = types.PeerStatus
	PeerInfo   = types.Peer
	Assignment = types.Assignment
	Reason     = types.Reason
	Command    = types.Command
	Decision   = types.Decision
)

// Re-export interfaces from the internal types package for convenience.
type (
	LockTable         = types.LockTable
	SelectionStrategy = types.SelectionStrategy
	Gateway           = types.Gateway
	SessionEngine     = types.SessionEngine
	Session           = types.Session
	MetricsCollector  = types.MetricsCollector
	Logger            = types.Logger
	Hooks             = types.Hooks
)

// Re-export PeerStatus constants from the internal types package.
const (
	StatusStarting  = types.StatusStarting
	StatusAvailable = types.StatusAvailable
	StatusInUse     = types.StatusInUse
	StatusOffline   = types.StatusOffline
	StatusError     = types.StatusError
)

// Re-export assignment reasons from the internal types package.
const (
	ReasonAuto     = types.ReasonAuto
	ReasonManual   = types.ReasonManual
	ReasonFailover = types.ReasonFailover
	ReasonPriority = types.ReasonPriority
)
