package world

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

// Store owns the World behind a single mutex. Every read or write of world
// state goes through Update or View, so a mutation is never observed half
// applied. Callers must not retain pointers handed out inside the callback.
type Store struct {
	mu sync.Mutex
	w  *World
}

// NewStore wraps a fresh world over grid. seed fixes the world's RNG so a
// test can replay NPC wander and cataclysm regeneration.
func NewStore(grid *Grid, seed int64) *Store {
	return &Store{w: newWorld(grid, seed)}
}

// Update runs fn with exclusive access to the world.
func (s *Store) Update(fn func(w *World) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.rev++
	return fn(s.w)
}

// View runs fn with exclusive access for reading. The store has only one
// lock; the split exists so call sites document intent.
func (s *Store) View(fn func(w *World)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.w)
}

// World is the authoritative game state. Methods assume the Store lock is held.
type World struct {
	grid *Grid
	occ  *OccupancyIndex

	players map[string]*Player
	npcs    map[string]*NPC
	items   map[string]*Item

	cataclysm Cataclysm
	tick      uint64
	rev       uint64 // bumped by every Store.Update

	nextNPC  uint64
	nextItem uint64
	rng      *rand.Rand
}

func newWorld(grid *Grid, seed int64) *World {
	return &World{
		grid:      grid,
		occ:       NewOccupancyIndex(),
		players:   make(map[string]*Player),
		npcs:      make(map[string]*NPC),
		items:     make(map[string]*Item),
		cataclysm: NewCataclysm(grid),
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (w *World) Grid() *Grid                { return w.grid }
func (w *World) Occupancy() *OccupancyIndex { return w.occ }
func (w *World) Rand() *rand.Rand           { return w.rng }
func (w *World) Cataclysm() *Cataclysm      { return &w.cataclysm }

// Tick is the logical game clock. It only advances in the game loop.
func (w *World) Tick() uint64 { return w.tick }

// AdvanceTick bumps the logical clock and returns the new value.
func (w *World) AdvanceTick() uint64 {
	w.tick++
	return w.tick
}

// NextNPCID allocates an NPC id unique within this world.
func (w *World) NextNPCID() string {
	w.nextNPC++
	return fmt.Sprintf("npc_%d", w.nextNPC)
}

// NextItemID allocates an item id unique within this world.
func (w *World) NextItemID() string {
	w.nextItem++
	return fmt.Sprintf("item_%d", w.nextItem)
}

// --- terrain queries, shaped for the path planner ---

func (w *World) InBounds(p Pos) bool { return w.grid.InBounds(p) }

func (w *World) Passable(p Pos) bool { return w.grid.At(p).Passable }

func (w *World) MoveCost(p Pos) float64 {
	c := w.grid.At(p).MoveCost
	if c <= 0 {
		return 1
	}
	return c
}

// Blocked reports whether p is occupied by any live entity or reserved.
func (w *World) Blocked(p Pos) bool { return w.occ.Blocked(p) }

// DisallowedFraction is the share of cells where spawning is forbidden.
func (w *World) DisallowedFraction() float64 { return w.grid.DisallowedFraction() }

// --- spawn reservations ---

// TryReserve claims p for a pending spawn. It checks bounds, terrain and
// occupancy and claims in one step; allowDisallowed skips the spawnable
// terrain check but never the passability check.
func (w *World) TryReserve(p Pos, allowDisallowed bool) bool {
	if !w.grid.InBounds(p) {
		return false
	}
	t := w.grid.At(p)
	if !t.Passable {
		return false
	}
	if !t.Spawnable && !allowDisallowed {
		return false
	}
	return w.occ.Reserve(p)
}

// Release drops a reservation. Returns false if p was not reserved.
func (w *World) Release(p Pos) bool { return w.occ.Unreserve(p) }

// --- players ---

func (w *World) Player(id string) *Player { return w.players[id] }

// Players returns every player sorted by id.
func (w *World) Players() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PlayerCount returns the number of players in-world, connected or not.
func (w *World) PlayerCount() int { return len(w.players) }

// ConnectedCount returns the number of players with a live connection.
func (w *World) ConnectedCount() int {
	n := 0
	for _, p := range w.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// AddPlayer registers a player on its cell. The cell must be free or held by
// a reservation the caller already released.
func (w *World) AddPlayer(p *Player) error {
	if _, ok := w.players[p.ID]; ok {
		return ErrDuplicateJoin
	}
	if w.occ.Blocked(p.Pos) {
		return fmt.Errorf("add player %s at %s: %w", p.ID, p.Pos, ErrPositionOccupied)
	}
	w.players[p.ID] = p
	if p.Alive {
		w.occ.Occupy(p.Pos, p.ID)
	}
	return nil
}

// RemovePlayer drops a player and frees its cell. Items it carried vanish
// with it.
func (w *World) RemovePlayer(id string) *Player {
	p, ok := w.players[id]
	if !ok {
		return nil
	}
	w.occ.Vacate(p.Pos, p.ID)
	delete(w.players, id)
	return p
}

// MovePlayer relocates a live player. The caller validates the step.
func (w *World) MovePlayer(p *Player, to Pos) {
	w.occ.Move(p.Pos, to, p.ID)
	p.Pos = to
}

// KillPlayer marks a player dead and frees its cell.
func (w *World) KillPlayer(p *Player) {
	if !p.Alive {
		return
	}
	p.Alive = false
	p.Stats.HP = 0
	p.ClearPath()
	w.occ.Vacate(p.Pos, p.ID)
}

// RevivePlayer brings a dead player back at pos with full HP. pos must be
// free; callers usually obtain it from a spawn reservation.
func (w *World) RevivePlayer(p *Player, pos Pos) {
	if p.Alive {
		return
	}
	p.Alive = true
	p.Stats.HP = p.Stats.MaxHP
	p.Pos = pos
	w.occ.Occupy(pos, p.ID)
}

// PlayerAt returns the live player on p, or nil.
func (w *World) PlayerAt(p Pos) *Player {
	for _, pl := range w.players {
		if pl.Alive && pl.Pos == p {
			return pl
		}
	}
	return nil
}

// --- NPCs ---

func (w *World) NPC(id string) *NPC { return w.npcs[id] }

// NPCs returns every NPC sorted by id.
func (w *World) NPCs() []*NPC {
	out := make([]*NPC, 0, len(w.npcs))
	for _, n := range w.npcs {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddNPC registers an NPC. It fails if the NPC's cell is taken.
func (w *World) AddNPC(n *NPC) error {
	if w.occ.Blocked(n.Pos) {
		return fmt.Errorf("add npc %s at %s: %w", n.ID, n.Pos, ErrPositionOccupied)
	}
	w.npcs[n.ID] = n
	if n.Alive {
		w.occ.Occupy(n.Pos, n.ID)
	}
	return nil
}

// RemoveNPC drops an NPC and frees its cell.
func (w *World) RemoveNPC(id string) *NPC {
	n, ok := w.npcs[id]
	if !ok {
		return nil
	}
	if n.Alive {
		w.occ.Vacate(n.Pos, n.ID)
	}
	delete(w.npcs, id)
	return n
}

func (w *World) MoveNPC(n *NPC, to Pos) {
	w.occ.Move(n.Pos, to, n.ID)
	n.Pos = to
}

// KillNPC marks an NPC dead and frees its cell. The corpse stays visible.
func (w *World) KillNPC(n *NPC) {
	if !n.Alive {
		return
	}
	n.Alive = false
	n.Stats.HP = 0
	w.occ.Vacate(n.Pos, n.ID)
}

// NPCAt returns the live NPC on p, or nil.
func (w *World) NPCAt(p Pos) *NPC {
	for _, n := range w.npcs {
		if n.Alive && n.Pos == p {
			return n
		}
	}
	return nil
}

// --- items ---

func (w *World) Item(id string) *Item { return w.items[id] }

// Items returns every ground item sorted by id.
func (w *World) Items() []*Item {
	out := make([]*Item, 0, len(w.items))
	for _, it := range w.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddItem drops an item on the ground. Items never block movement.
func (w *World) AddItem(it *Item) {
	w.items[it.ID] = it
}

func (w *World) RemoveItem(id string) *Item {
	it, ok := w.items[id]
	if !ok {
		return nil
	}
	delete(w.items, id)
	return it
}

// ItemsAt returns the ground items on p sorted by id.
func (w *World) ItemsAt(p Pos) []*Item {
	var out []*Item
	for _, it := range w.items {
		if at, ok := it.At(); ok && at == p {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- invariants ---

// CheckInvariants verifies that every live entity owns exactly one cell,
// no two live entities share a cell and no reservation sits on an occupied
// cell. It returns an error wrapping ErrInvariant on the first violation.
func (w *World) CheckInvariants() error {
	owner := make(map[Pos]string)
	claim := func(id string, p Pos) error {
		if !w.grid.InBounds(p) {
			return fmt.Errorf("%w: %s out of bounds at %s", ErrInvariant, id, p)
		}
		if other, ok := owner[p]; ok {
			return fmt.Errorf("%w: %s and %s share %s", ErrInvariant, other, id, p)
		}
		owner[p] = id
		if !w.occ.IsOccupied(p, "") {
			return fmt.Errorf("%w: %s at %s missing from occupancy", ErrInvariant, id, p)
		}
		if w.occ.IsReserved(p) {
			return fmt.Errorf("%w: %s at %s is also reserved", ErrInvariant, id, p)
		}
		return nil
	}
	for _, p := range w.players {
		if !p.Alive {
			continue
		}
		if err := claim(p.ID, p.Pos); err != nil {
			return err
		}
	}
	for _, n := range w.npcs {
		if !n.Alive {
			continue
		}
		if err := claim(n.ID, n.Pos); err != nil {
			return err
		}
	}
	var stray error
	w.occ.each(func(p Pos, id string) {
		if stray == nil && owner[p] != id {
			stray = fmt.Errorf("%w: stale occupant %s at %s", ErrInvariant, id, p)
		}
	})
	return stray
}
