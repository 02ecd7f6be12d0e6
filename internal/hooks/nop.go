package hooks

import (
	"context"

	"github.com/overtone/peerage/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}

	return types.Hooks{
		OnFailover:          h.OnFailover,
		OnPeerStatusChanged: h.OnPeerStatusChanged,
		OnCommandDropped:    h.OnCommandDropped,
	}
}

// OnFailover is a no-op implementation.
func (h *NopHooks) OnFailover(_ context.Context, _, _, _ string, _ types.Reason) error {
	return nil
}

// OnPeerStatusChanged is a no-op implementation.
func (h *NopHooks) OnPeerStatusChanged(_ context.Context, _ string, _, _ types.PeerStatus) error {
	return nil
}

// OnCommandDropped is a no-op implementation.
func (h *NopHooks) OnCommandDropped(_ context.Context, _ string) error {
	return nil
}
