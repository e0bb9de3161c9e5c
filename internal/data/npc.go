package data

import (
	"fmt"
	"math/rand"

	"github.com/gridrealm/server/internal/world"
)

// StatRange is a half-open [min, max) roll range.
type StatRange [2]int

// Roll picks a value in the range.
func (r StatRange) Roll(rng *rand.Rand) int {
	if r[1] <= r[0] {
		return r[0]
	}
	return r[0] + rng.Intn(r[1]-r[0])
}

// NpcProfile holds the stat ranges for one spawn context.
type NpcProfile struct {
	HP      StatRange `yaml:"hp"`
	Attack  StatRange `yaml:"attack"`
	Defense StatRange `yaml:"defense"`
	Speed   StatRange `yaml:"speed"`
}

// Roll draws a stat line. HP and MaxHP are rolled once so a fresh NPC is at
// full health.
func (p *NpcProfile) Roll(rng *rand.Rand) world.Stats {
	hp := p.HP.Roll(rng)
	return world.Stats{
		HP:      hp,
		MaxHP:   hp,
		Attack:  p.Attack.Roll(rng),
		Defense: p.Defense.Roll(rng),
		Speed:   p.Speed.Roll(rng),
	}
}

// NpcTable holds NPC naming words and stat profiles.
type NpcTable struct {
	NamePrefixes []string              `yaml:"name_prefixes"`
	Creatures    []string              `yaml:"creatures"`
	Profiles     map[string]NpcProfile `yaml:"profiles"`
}

// LoadNpcTable loads NPC data. An empty path loads the built-in table.
func LoadNpcTable(path string) (*NpcTable, error) {
	var t NpcTable
	if err := decode(path, "npcs", &t); err != nil {
		return nil, err
	}
	if len(t.NamePrefixes) == 0 || len(t.Creatures) == 0 {
		return nil, fmt.Errorf("parse npcs: name lists are empty")
	}
	for _, name := range []string{"world", "cataclysm"} {
		if _, ok := t.Profiles[name]; !ok {
			return nil, fmt.Errorf("parse npcs: missing profile %q", name)
		}
	}
	return &t, nil
}

// Profile returns the named stat profile, falling back to "world".
func (t *NpcTable) Profile(name string) NpcProfile {
	if p, ok := t.Profiles[name]; ok {
		return p
	}
	return t.Profiles["world"]
}

// Name draws a random "<Prefix> <Creature>" name.
func (t *NpcTable) Name(rng *rand.Rand) string {
	return t.NamePrefixes[rng.Intn(len(t.NamePrefixes))] + " " + t.Creatures[rng.Intn(len(t.Creatures))]
}
