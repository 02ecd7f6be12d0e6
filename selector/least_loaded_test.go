package selector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/overtone/peerage/types"
)

func TestLeastLoaded_Select(t *testing.T) {
	strategy := NewLeastLoaded()

	t.Run("no candidates", func(t *testing.T) {
		_, ok := strategy.Select(nil, 100)
		require.False(t, ok)
	})

	t.Run("least-loaded wins, primary flag ignored", func(t *testing.T) {
		peer, ok := strategy.Select([]types.Peer{
			{ID: "peer-1", Primary: true, Load: 5},
			{ID: "peer-2", Load: 2},
			{ID: "peer-3", Load: 9},
		}, 100)
		require.True(t, ok)
		require.Equal(t, "peer-2", peer.ID)
	})

	t.Run("capacity is not enforced", func(t *testing.T) {
		peer, ok := strategy.Select([]types.Peer{
			{ID: "peer-1", Load: 500},
			{ID: "peer-2", Load: 600},
		}, 100)
		require.True(t, ok)
		require.Equal(t, "peer-1", peer.ID)
	})

	t.Run("load ties break by ascending ID", func(t *testing.T) {
		peer, ok := strategy.Select([]types.Peer{
			{ID: "peer-9", Load: 3},
			{ID: "peer-2", Load: 3},
		}, 100)
		require.True(t, ok)
		require.Equal(t, "peer-2", peer.ID)
	})
}

func TestLeastLoaded_Name(t *testing.T) {
	require.Equal(t, "round-robin", NewLeastLoaded().Name())
}
