// Package delta computes the per-collection change sets sent to clients after
// every tick. Entities are compared field by field through their Same
// methods, which skip volatile timestamps; nothing is serialized to diff.
package delta

import (
	"sort"

	"github.com/gridrealm/server/internal/protocol"
	"github.com/gridrealm/server/internal/world"
)

// Snapshot is the comparable state of every tracked collection, keyed by
// entity id. Rev is the store revision the state was read at.
type Snapshot struct {
	Rev     uint64
	Players map[string]world.PlayerView
	NPCs    map[string]world.NPCView
	Items   map[string]world.ItemView
}

// Capture indexes a frame by id.
func Capture(f world.Frame) Snapshot {
	s := Snapshot{
		Rev:     f.Rev,
		Players: make(map[string]world.PlayerView, len(f.Players)),
		NPCs:    make(map[string]world.NPCView, len(f.NPCs)),
		Items:   make(map[string]world.ItemView, len(f.Items)),
	}
	for _, v := range f.Players {
		s.Players[v.ID] = v
	}
	for _, v := range f.NPCs {
		s.NPCs[v.ID] = v
	}
	for _, v := range f.Items {
		s.Items[v.ID] = v
	}
	return s
}

// CaptureJoin indexes the entities of a join snapshot, the baseline a new
// client holds after game_joined.
func CaptureJoin(s world.Snapshot) Snapshot {
	return Capture(world.Frame{Rev: s.Rev, Players: s.Players, NPCs: s.NPCs, Items: s.Items})
}

// Diff returns the collections that changed from prev to cur. A collection
// appears only when it has new or changed entities or removed ids; when
// nothing changed the result is nil.
func Diff(prev, cur Snapshot) []protocol.CollectionDelta {
	var out []protocol.CollectionDelta
	if d, ok := diff(protocol.CollectionPlayers, prev.Players, cur.Players, world.PlayerView.Same); ok {
		out = append(out, d)
	}
	if d, ok := diff(protocol.CollectionNPCs, prev.NPCs, cur.NPCs, world.NPCView.Same); ok {
		out = append(out, d)
	}
	if d, ok := diff(protocol.CollectionItems, prev.Items, cur.Items, world.ItemView.Same); ok {
		out = append(out, d)
	}
	return out
}

func diff[V any](name string, prev, cur map[string]V, same func(V, V) bool) (protocol.CollectionDelta, bool) {
	changed := make([]V, 0)
	for _, id := range sortedKeys(cur) {
		v := cur[id]
		if old, ok := prev[id]; ok && same(old, v) {
			continue
		}
		changed = append(changed, v)
	}
	var removed []string
	for _, id := range sortedKeys(prev) {
		if _, ok := cur[id]; !ok {
			removed = append(removed, id)
		}
	}
	if len(changed) == 0 && len(removed) == 0 {
		return protocol.CollectionDelta{}, false
	}
	return protocol.CollectionDelta{Type: name, Data: changed, Removed: removed}, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
