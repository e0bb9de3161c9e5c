package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventsArriveNextTick(t *testing.T) {
	b := NewBus()
	var got []LevelUp
	Subscribe(b, func(e LevelUp) { got = append(got, e) })

	Emit(b, LevelUp{PlayerID: "alice", Level: 2})
	Emit(b, LevelUp{PlayerID: "bob", Level: 3})
	assert.Equal(t, 2, b.Pending())

	b.DispatchAll()
	assert.Empty(t, got, "nothing is readable before the swap")

	b.SwapBuffers()
	assert.Zero(t, b.Pending())
	b.DispatchAll()
	assert.Equal(t, []LevelUp{{"alice", 2}, {"bob", 3}}, got)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Len(t, got, 2, "a swapped-out batch is not delivered twice")
}

func TestHandlersMayEmit(t *testing.T) {
	b := NewBus()
	Subscribe(b, func(e Defeated) {
		Emit(b, LevelUp{PlayerID: e.AttackerID, Level: 2})
	})
	var ups int
	Subscribe(b, func(LevelUp) { ups++ })

	Emit(b, Defeated{AttackerID: "alice", TargetID: "npc-1"})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Zero(t, ups)
	assert.Equal(t, 1, b.Pending())

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, 1, ups)
}

func TestUnsubscribedTypesAreDropped(t *testing.T) {
	b := NewBus()
	Emit(b, ItemLooted{PlayerID: "alice", ItemID: "item-1"})
	b.SwapBuffers()
	assert.NotPanics(t, b.DispatchAll)
}
