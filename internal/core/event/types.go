package event

import "github.com/gridrealm/server/internal/world"

// PlayerJoined fires after a join commits.
type PlayerJoined struct {
	PlayerID string
	ConnID   string
	Rejoin   bool
}

// PlayerLeft fires when a player is removed from the world, by leave or by
// the stale sweeper.
type PlayerLeft struct {
	PlayerID string
	Reason   string
}

type PlayerDisconnected struct {
	PlayerID string
	ConnID   string
}

// Defeated fires when an attack brings a target to zero HP.
type Defeated struct {
	AttackerID string
	TargetID   string
	PvP        bool
	Experience int
	Drops      []string
}

type LevelUp struct {
	PlayerID string
	Level    int
}

// ItemLooted fires when an item moves from the ground into an inventory.
type ItemLooted struct {
	PlayerID string
	ItemID   string
}

// CataclysmChanged fires on every cataclysm transition: start, shrink and
// phase changes.
type CataclysmChanged struct {
	Kind   string
	Phase  world.Phase
	Radius int
	Killed []string
	Tick   uint64
}
