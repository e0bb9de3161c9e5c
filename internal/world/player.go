package world

import (
	"strings"
	"time"
)

// Class selects a player's base stat line.
type Class string

const (
	ClassKnight Class = "knight"
	ClassRogue  Class = "rogue"
	ClassMage   Class = "mage"
)

// ParseClass maps a client-supplied class name; unknown names fall back to knight.
func ParseClass(s string) Class {
	switch Class(strings.ToLower(strings.TrimSpace(s))) {
	case ClassRogue:
		return ClassRogue
	case ClassMage:
		return ClassMage
	default:
		return ClassKnight
	}
}

// Stats are the vital and combat numbers shared by players and NPCs.
type Stats struct {
	HP      int `json:"hp"`
	MaxHP   int `json:"maxHp"`
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
	Speed   int `json:"speed"`
}

// BaseStats returns the level-1 stats for a class.
func BaseStats(c Class) Stats {
	switch c {
	case ClassRogue:
		return Stats{HP: 90, MaxHP: 90, Attack: 25, Defense: 10, Speed: 15}
	case ClassMage:
		return Stats{HP: 80, MaxHP: 80, Attack: 30, Defense: 5, Speed: 10}
	default:
		return Stats{HP: 120, MaxHP: 120, Attack: 15, Defense: 20, Speed: 8}
	}
}

// Player is a joined player. It outlives its connection: a disconnect only
// clears Connected, and the stale sweeper removes it after the grace period.
type Player struct {
	ID         string
	Name       string
	Class      Class
	Pos        Pos
	Stats      Stats
	Level      int
	Experience int
	Inventory  []*Item
	Alive      bool
	Connected  bool

	// Wall clock, idle detection only.
	LastActive     time.Time
	DisconnectedAt time.Time

	// Logical clock, gameplay only.
	LastMoveTick uint64
	HasMoved     bool

	// Path holds the remaining move_to steps, consumed one per tick.
	Path []Pos
}

// NewPlayer builds a level-1 player of the given class at pos.
func NewPlayer(id, name string, class Class, pos Pos, now time.Time) *Player {
	if name == "" {
		name = id
	}
	return &Player{
		ID:         id,
		Name:       name,
		Class:      class,
		Pos:        pos,
		Stats:      BaseStats(class),
		Level:      1,
		Alive:      true,
		Connected:  true,
		LastActive: now,
	}
}

// CanMove reports whether the move cooldown has elapsed at tick.
func (p *Player) CanMove(tick, cooldown uint64) bool {
	return !p.HasMoved || tick-p.LastMoveTick >= cooldown
}

// MarkMoved records a successful move at tick.
func (p *Player) MarkMoved(tick uint64) {
	p.LastMoveTick = tick
	p.HasMoved = true
}

// Touch refreshes the idle timer.
func (p *Player) Touch(now time.Time) {
	p.LastActive = now
}

// ClearPath drops any queued move_to steps.
func (p *Player) ClearPath() {
	p.Path = nil
}
