package world

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plain() Tile {
	return Tile{Terrain: "plain", MoveCost: 1, Passable: true, Spawnable: true}
}

func newTestStore(w, h int) *Store {
	return NewStore(NewGrid(w, h, plain()), 1)
}

func TestAddPlayerRejectsDuplicateID(t *testing.T) {
	s := newTestStore(5, 5)
	now := time.Now()
	err := s.Update(func(w *World) error {
		require.NoError(t, w.AddPlayer(NewPlayer("alice", "", ClassKnight, Pos{1, 1}, now)))
		return w.AddPlayer(NewPlayer("alice", "", ClassKnight, Pos{2, 2}, now))
	})
	assert.ErrorIs(t, err, ErrDuplicateJoin)
}

func TestAddPlayerRejectsOccupiedCell(t *testing.T) {
	s := newTestStore(5, 5)
	now := time.Now()
	err := s.Update(func(w *World) error {
		require.NoError(t, w.AddPlayer(NewPlayer("a", "", ClassKnight, Pos{1, 1}, now)))
		return w.AddPlayer(NewPlayer("b", "", ClassKnight, Pos{1, 1}, now))
	})
	assert.ErrorIs(t, err, ErrPositionOccupied)
}

func TestRemovePlayerFreesCell(t *testing.T) {
	s := newTestStore(5, 5)
	s.View(func(w *World) {
		require.NoError(t, w.AddPlayer(NewPlayer("a", "", ClassMage, Pos{3, 3}, time.Now())))
		assert.True(t, w.Blocked(Pos{3, 3}))
		assert.NotNil(t, w.RemovePlayer("a"))
		assert.False(t, w.Blocked(Pos{3, 3}))
		assert.Nil(t, w.RemovePlayer("a"))
	})
}

func TestTryReserveIsTestAndSet(t *testing.T) {
	s := newTestStore(3, 3)
	s.View(func(w *World) {
		assert.True(t, w.TryReserve(Pos{0, 0}, false))
		assert.False(t, w.TryReserve(Pos{0, 0}, false))
		assert.False(t, w.TryReserve(Pos{5, 5}, false))
		assert.True(t, w.Release(Pos{0, 0}))
		assert.False(t, w.Release(Pos{0, 0}))
	})
}

func TestTryReserveRespectsTerrain(t *testing.T) {
	s := newTestStore(3, 3)
	s.View(func(w *World) {
		w.Grid().Set(Pos{1, 1}, Tile{Terrain: "swamp", MoveCost: 2, Passable: true})
		w.Grid().Set(Pos{2, 2}, Tile{Terrain: "mountain", MoveCost: 3})
		assert.False(t, w.TryReserve(Pos{1, 1}, false))
		assert.True(t, w.TryReserve(Pos{1, 1}, true))
		assert.False(t, w.TryReserve(Pos{2, 2}, true))
	})
}

func TestKillAndRevivePlayer(t *testing.T) {
	s := newTestStore(4, 4)
	s.View(func(w *World) {
		p := NewPlayer("a", "", ClassRogue, Pos{1, 1}, time.Now())
		require.NoError(t, w.AddPlayer(p))
		w.KillPlayer(p)
		assert.False(t, w.Blocked(Pos{1, 1}))
		assert.Equal(t, 0, p.Stats.HP)
		w.RevivePlayer(p, Pos{2, 2})
		assert.True(t, p.Alive)
		assert.Equal(t, p.Stats.MaxHP, p.Stats.HP)
		assert.True(t, w.Blocked(Pos{2, 2}))
		assert.NoError(t, w.CheckInvariants())
	})
}

func TestCheckInvariantsDetectsSharedCell(t *testing.T) {
	s := newTestStore(4, 4)
	s.View(func(w *World) {
		a := NewPlayer("a", "", ClassKnight, Pos{0, 0}, time.Now())
		b := NewPlayer("b", "", ClassKnight, Pos{1, 0}, time.Now())
		require.NoError(t, w.AddPlayer(a))
		require.NoError(t, w.AddPlayer(b))
		require.NoError(t, w.CheckInvariants())

		// Bypass MovePlayer to corrupt the state.
		b.Pos = Pos{0, 0}
		err := w.CheckInvariants()
		assert.True(t, errors.Is(err, ErrInvariant))
	})
}

func TestCheckInvariantsDetectsReservedOccupiedCell(t *testing.T) {
	s := newTestStore(4, 4)
	s.View(func(w *World) {
		require.NoError(t, w.AddPlayer(NewPlayer("a", "", ClassKnight, Pos{0, 0}, time.Now())))
		w.Occupancy().reserved[Pos{0, 0}] = struct{}{}
		assert.ErrorIs(t, w.CheckInvariants(), ErrInvariant)
	})
}

func TestItemsAtSortedAndNonBlocking(t *testing.T) {
	s := newTestStore(4, 4)
	s.View(func(w *World) {
		p := Pos{2, 2}
		w.AddItem(&Item{ID: "item_2", Pos: &p})
		w.AddItem(&Item{ID: "item_1", Pos: &p})
		got := w.ItemsAt(p)
		require.Len(t, got, 2)
		assert.Equal(t, "item_1", got[0].ID)
		assert.False(t, w.Blocked(p))
	})
}

func TestIDsArePerWorld(t *testing.T) {
	a := newTestStore(2, 2)
	b := newTestStore(2, 2)
	var ida, idb string
	a.View(func(w *World) { ida = w.NextNPCID() })
	b.View(func(w *World) { idb = w.NextNPCID() })
	assert.Equal(t, "npc_1", ida)
	assert.Equal(t, ida, idb)
}

func TestPlayerViewSameIgnoresVolatileFields(t *testing.T) {
	p := NewPlayer("a", "", ClassKnight, Pos{1, 1}, time.Now())
	before := p.View()
	p.Touch(time.Now().Add(time.Minute))
	p.MarkMoved(7)
	assert.True(t, before.Same(p.View()))

	p.Stats.HP--
	assert.False(t, before.Same(p.View()))
}

func TestItemReveal(t *testing.T) {
	it := &Item{ID: "item_1", Hidden: true}
	it.StartReveal(10)
	assert.False(t, it.AdvanceReveal(12, 4))
	assert.InDelta(t, 0.5, it.RevealProgress, 1e-9)
	assert.True(t, it.AdvanceReveal(14, 4))
	assert.True(t, it.Lootable)
	assert.True(t, it.Revealed())
	assert.False(t, it.AdvanceReveal(15, 4))
}
