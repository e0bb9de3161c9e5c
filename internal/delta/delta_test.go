package delta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrealm/server/internal/protocol"
	"github.com/gridrealm/server/internal/world"
)

func frame() (world.Frame, *world.Player, *world.NPC, *world.Item) {
	p := world.NewPlayer("alice", "", world.ClassKnight, world.Pos{X: 1, Y: 1}, time.Unix(100, 0))
	n := world.NewNPC("npc-1", "Goblin", world.Pos{X: 4, Y: 4}, world.Stats{HP: 10, MaxHP: 10}, 0)
	at := world.Pos{X: 2, Y: 2}
	it := &world.Item{ID: "item-1", Name: "Potion", Kind: world.ItemConsumable, Rarity: world.RarityCommon, Pos: &at, Hidden: true}
	return world.Frame{
		Players: []world.PlayerView{p.View()},
		NPCs:    []world.NPCView{n.View()},
		Items:   []world.ItemView{it.View()},
	}, p, n, it
}

func TestDiffUnchangedIsEmpty(t *testing.T) {
	f, _, _, _ := frame()
	assert.Nil(t, Diff(Capture(f), Capture(f)))
}

func TestDiffIgnoresVolatileFields(t *testing.T) {
	f, p, n, _ := frame()
	prev := Capture(f)

	p.Touch(time.Unix(999, 0))
	p.MarkMoved(42)
	n.LastMoveTick = 42
	f.Players = []world.PlayerView{p.View()}
	f.NPCs = []world.NPCView{n.View()}

	assert.Nil(t, Diff(prev, Capture(f)))
}

func TestDiffEmitsOnlyChangedCollection(t *testing.T) {
	f, p, _, _ := frame()
	prev := Capture(f)

	p.Pos = world.Pos{X: 2, Y: 1}
	f.Players = []world.PlayerView{p.View()}

	got := Diff(prev, Capture(f))
	require.Len(t, got, 1)
	assert.Equal(t, protocol.CollectionPlayers, got[0].Type)
	data := got[0].Data.([]world.PlayerView)
	require.Len(t, data, 1)
	assert.Equal(t, world.Pos{X: 2, Y: 1}, data[0].Position)
	assert.Empty(t, got[0].Removed)
}

func TestDiffNewAndRemovedEntities(t *testing.T) {
	f, _, _, _ := frame()
	prev := Capture(f)

	goblin := world.NewNPC("npc-2", "Orc", world.Pos{X: 5, Y: 5}, world.Stats{HP: 20, MaxHP: 20}, 0)
	f.NPCs = []world.NPCView{goblin.View()}
	f.Items = nil

	got := Diff(prev, Capture(f))
	require.Len(t, got, 2)

	assert.Equal(t, protocol.CollectionNPCs, got[0].Type)
	npcs := got[0].Data.([]world.NPCView)
	require.Len(t, npcs, 1)
	assert.Equal(t, "npc-2", npcs[0].ID)
	assert.Equal(t, []string{"npc-1"}, got[0].Removed)

	assert.Equal(t, protocol.CollectionItems, got[1].Type)
	assert.Empty(t, got[1].Data)
	assert.Equal(t, []string{"item-1"}, got[1].Removed)
}

func TestDiffItemRevealProgress(t *testing.T) {
	f, _, _, it := frame()
	prev := Capture(f)

	it.StartReveal(3)
	f.Items = []world.ItemView{it.View()}

	got := Diff(prev, Capture(f))
	require.Len(t, got, 1)
	assert.Equal(t, protocol.CollectionItems, got[0].Type)
}

type fakeClient struct {
	base    *Snapshot
	got     []protocol.Message
	dropped bool
}

func (c *fakeClient) Baseline() (Snapshot, bool) {
	if c.base == nil {
		return Snapshot{}, false
	}
	return *c.base, true
}

func (c *fakeClient) ClearBaseline() { c.base = nil }

func (c *fakeClient) Send(msg protocol.Message) bool {
	if c.dropped {
		return false
	}
	c.got = append(c.got, msg)
	return true
}

func TestBroadcastSkipsQuietTicks(t *testing.T) {
	f, _, _, _ := frame()
	b := NewBroadcaster()
	c := &fakeClient{}

	assert.Equal(t, 1, b.Broadcast(Capture(f), []Client{c}))
	assert.Equal(t, 0, b.Broadcast(Capture(f), []Client{c}))
	assert.Len(t, c.got, 1)
	assert.Equal(t, protocol.TypeGameStateDelta, c.got[0].Type)
	assert.EqualValues(t, 1, b.Sent())
}

func TestBroadcastUsesJoinBaseline(t *testing.T) {
	f, p, _, _ := frame()
	b := NewBroadcaster()
	veteran := &fakeClient{}
	b.Broadcast(Capture(f), []Client{veteran})
	veteran.got = nil

	// bob joins between ticks; his game_joined already contains him.
	bob := world.NewPlayer("bob", "", world.ClassMage, world.Pos{X: 7, Y: 7}, time.Unix(100, 0))
	f.Players = append(f.Players, bob.View())
	joined := Capture(f)
	newcomer := &fakeClient{base: &joined}

	p.Pos = world.Pos{X: 1, Y: 2}
	f.Players = []world.PlayerView{p.View(), bob.View()}
	b.Broadcast(Capture(f), []Client{veteran, newcomer})

	require.Len(t, veteran.got, 1)
	vd := veteran.got[0].Payload.([]protocol.CollectionDelta)
	require.Len(t, vd, 1)
	assert.Len(t, vd[0].Data.([]world.PlayerView), 2, "veteran learns about bob and alice's move")

	require.Len(t, newcomer.got, 1)
	nd := newcomer.got[0].Payload.([]protocol.CollectionDelta)
	require.Len(t, nd, 1)
	players := nd[0].Data.([]world.PlayerView)
	require.Len(t, players, 1, "newcomer already has bob")
	assert.Equal(t, "alice", players[0].ID)

	// Baseline is consumed; the next quiet tick sends nothing to anyone.
	b.Broadcast(Capture(f), []Client{veteran, newcomer})
	assert.Len(t, veteran.got, 1)
	assert.Len(t, newcomer.got, 1)
}

func TestBroadcastHoldsBaselineNewerThanFrame(t *testing.T) {
	f, _, _, _ := frame()
	f.Rev = 7
	b := NewBroadcaster()
	b.Broadcast(Capture(f), nil)
	before := Capture(f)

	// bob's join commits after the frame below was read.
	bob := world.NewPlayer("bob", "", world.ClassMage, world.Pos{X: 7, Y: 7}, time.Unix(100, 0))
	joined := f
	joined.Rev = 9
	joined.Players = append(append([]world.PlayerView(nil), f.Players...), bob.View())
	base := Capture(joined)
	newcomer := &fakeClient{base: &base}

	b.Broadcast(before, []Client{newcomer})
	assert.Empty(t, newcomer.got, "a frame older than the join must not reach the newcomer")
	require.NotNil(t, newcomer.base)

	next := joined
	next.Rev = 10
	b.Broadcast(Capture(next), []Client{newcomer})
	assert.Empty(t, newcomer.got, "nothing changed since the join")
	assert.Nil(t, newcomer.base)
}

func TestBroadcastCountsOnlyDelivered(t *testing.T) {
	f, _, _, _ := frame()
	b := NewBroadcaster()
	ok := &fakeClient{}
	gone := &fakeClient{dropped: true}
	assert.Equal(t, 1, b.Broadcast(Capture(f), []Client{ok, gone}))
}
