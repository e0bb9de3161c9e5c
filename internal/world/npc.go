package world

// NPC is a server-controlled creature. NPCs wander on their own and can be
// attacked; a defeated NPC stays in the world (Alive=false) until the next
// regeneration so clients can render the corpse.
type NPC struct {
	ID       string
	Name     string
	Kind     string
	Pos      Pos
	Stats    Stats
	Level    int
	Alive    bool
	Behavior string

	LastMoveTick uint64
}

// NewNPC creates a wandering monster at pos.
func NewNPC(id, name string, pos Pos, stats Stats, tick uint64) *NPC {
	return &NPC{
		ID:           id,
		Name:         name,
		Kind:         "monster",
		Pos:          pos,
		Stats:        stats,
		Level:        1,
		Alive:        true,
		Behavior:     "wandering",
		LastMoveTick: tick,
	}
}
