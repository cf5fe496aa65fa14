// Package storetest holds the behaviour every ports.StateStore must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Stores are not shared between subtests.
type Factory func(t *testing.T) ports.StateStore

var committedAt = time.Date(2026, 10, 14, 21, 0, 0, 0, time.UTC)

func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("read unknown session", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Read(context.Background(), "nowhere#1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		_, err = store.Commit(context.Background(), "nowhere#1", 0, domain.Delta{})
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("init is idempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first, err := store.Init(ctx, "cave#1", startingState("cave#1"))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), first.Version)

		_, err = store.Commit(ctx, "cave#1", 0, domain.Delta{Player: "alice", Inventory: map[string]int{"rock": 1}, At: committedAt})
		require.NoError(t, err)

		again, err := store.Init(ctx, "cave#1", domain.NewGameState("cave#1", []string{"something else"}, nil))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), again.Version)
		assert.Equal(t, []string{"a rock lies on the ground"}, again.World)
	})

	t.Run("commit then read round trip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		base, err := store.Init(ctx, "cave#1", startingState("cave#1"))
		require.NoError(t, err)

		delta := domain.Delta{
			Player:    "alice",
			World:     map[string]bool{"a rock lies on the ground": false, "the ground is bare": true},
			Inventory: map[string]int{"rock": 1},
			Bid:       "bid-1",
			At:        committedAt,
		}
		version, err := store.Commit(ctx, "cave#1", base.Version, delta)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), version)

		got, err := store.Read(ctx, "cave#1")
		require.NoError(t, err)
		want := base.Apply(delta)
		assert.Equal(t, want.Version, got.Version)
		assert.Equal(t, want.World, got.World)
		assert.Equal(t, want.Inventories, got.Inventories)
		assert.Equal(t, want.TriggerBid, got.TriggerBid)
		assert.Equal(t, want.TriggerPlayer, got.TriggerPlayer)
		assert.True(t, want.CommittedAt.Equal(got.CommittedAt))
	})

	t.Run("stale version conflicts without mutation", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Init(ctx, "cave#1", startingState("cave#1"))
		require.NoError(t, err)
		_, err = store.Commit(ctx, "cave#1", 0, domain.Delta{World: map[string]bool{"thunder": true}, At: committedAt})
		require.NoError(t, err)

		_, err = store.Commit(ctx, "cave#1", 0, domain.Delta{World: map[string]bool{"rain": true}, At: committedAt})
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		got, err := store.Read(ctx, "cave#1")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.Version)
		assert.NotContains(t, got.World, "rain")
	})

	t.Run("history is ascending and append only", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Init(ctx, "cave#1", startingState("cave#1"))
		require.NoError(t, err)
		for v := uint64(0); v < 3; v++ {
			_, err := store.Commit(ctx, "cave#1", v, domain.Delta{Player: "bob", Inventory: map[string]int{"pebble": 1}, At: committedAt})
			require.NoError(t, err)
		}

		history, err := store.History(ctx, "cave#1")
		require.NoError(t, err)
		require.Len(t, history, 4)
		for i, state := range history {
			assert.Equal(t, uint64(i), state.Version)
			assert.Equal(t, i, state.InventoryOf("bob")["pebble"])
		}
	})

	t.Run("history keeps the played turn for replay", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Init(ctx, "cave#1", startingState("cave#1"))
		require.NoError(t, err)
		_, err = store.Commit(ctx, "cave#1", 0, domain.Delta{
			Player:   "alice",
			Bid:      "bid-1",
			Action:   "I light a torch",
			Response: "Shadows scatter across the cave.",
			World:    map[string]bool{"a torch burns": true},
			At:       committedAt,
		})
		require.NoError(t, err)
		_, err = store.Commit(ctx, "cave#1", 1, domain.Delta{World: map[string]bool{"water drips": true}, At: committedAt})
		require.NoError(t, err)

		history, err := store.History(ctx, "cave#1")
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "I light a torch", history[1].Action)
		assert.Equal(t, "Shadows scatter across the cave.", history[1].Response)
		assert.False(t, history[1].OperatorEdit())
		assert.True(t, history[2].OperatorEdit())
		assert.Empty(t, history[2].Action)

		turns := domain.RecentTurns(history, 5)
		require.Len(t, turns, 1)
		assert.Equal(t, domain.PlayerID("alice"), turns[0].Player)
	})

	t.Run("concurrent commits on one version admit a single winner", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Init(ctx, "cave#1", startingState("cave#1"))
		require.NoError(t, err)

		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Commit(ctx, "cave#1", 0, domain.Delta{World: map[string]bool{"echo": true}, At: committedAt})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, domain.ErrVersionConflict):
					conflicts++
				default:
					t.Errorf("unexpected commit error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, writers-1, conflicts)

		got, err := store.Read(ctx, "cave#1")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.Version)
	})

	t.Run("sessions are independent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Init(ctx, "cave#1", startingState("cave#1"))
		require.NoError(t, err)
		_, err = store.Init(ctx, "forest#1", domain.NewGameState("forest#1", []string{"trees sway"}, nil))
		require.NoError(t, err)

		_, err = store.Commit(ctx, "cave#1", 0, domain.Delta{World: map[string]bool{"drip": true}, At: committedAt})
		require.NoError(t, err)

		forest, err := store.Read(ctx, "forest#1")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), forest.Version)
		assert.Equal(t, []string{"trees sway"}, forest.World)
	})

	t.Run("canceled context", func(t *testing.T) {
		store := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.Read(ctx, "cave#1")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func startingState(session domain.SessionID) domain.GameState {
	return domain.NewGameState(session, []string{"a rock lies on the ground"}, nil)
}
