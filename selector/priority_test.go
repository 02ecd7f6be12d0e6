package selector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/overtone/peerage/types"
)

func TestPriority_Select(t *testing.T) {
	strategy := NewPriority()

	t.Run("no candidates", func(t *testing.T) {
		_, ok := strategy.Select(nil, 100)
		require.False(t, ok)
	})

	t.Run("primary wins despite higher load", func(t *testing.T) {
		peer, ok := strategy.Select([]types.Peer{
			{ID: "peer-2", Load: 0},
			{ID: "peer-1", Primary: true, Load: 5},
			{ID: "peer-3", Load: 1},
		}, 100)
		require.True(t, ok)
		require.Equal(t, "peer-1", peer.ID)
	})

	t.Run("saturated primary yields to least-loaded secondary", func(t *testing.T) {
		peer, ok := strategy.Select([]types.Peer{
			{ID: "peer-1", Primary: true, Load: 100},
			{ID: "peer-2", Load: 7},
			{ID: "peer-3", Load: 2},
		}, 100)
		require.True(t, ok)
		require.Equal(t, "peer-3", peer.ID)
	})

	t.Run("all saturated degrades to least-loaded", func(t *testing.T) {
		peer, ok := strategy.Select([]types.Peer{
			{ID: "peer-1", Primary: true, Load: 150},
			{ID: "peer-2", Load: 120},
			{ID: "peer-3", Load: 130},
		}, 100)
		require.True(t, ok)
		require.Equal(t, "peer-2", peer.ID)
	})

	t.Run("load ties break by ascending ID", func(t *testing.T) {
		peer, ok := strategy.Select([]types.Peer{
			{ID: "peer-3", Load: 1},
			{ID: "peer-2", Load: 1},
		}, 100)
		require.True(t, ok)
		require.Equal(t, "peer-2", peer.ID)
	})
}

func TestPriority_Name(t *testing.T) {
	require.Equal(t, "priority", NewPriority().Name())
}
