package data

import (
	"fmt"

	"github.com/gridrealm/server/internal/world"
)

// TerrainDef holds static data for one terrain type loaded from YAML.
type TerrainDef struct {
	Name          string   `yaml:"name"`
	MoveCost      float64  `yaml:"move_cost"`
	Defense       int      `yaml:"defense_bonus"`
	SpawnWeight   float64  `yaml:"spawn_weight"`
	Impassable    bool     `yaml:"impassable"`
	NoSpawn       bool     `yaml:"no_spawn"`
	LootBonus     float64  `yaml:"loot_bonus"`     // stat multiplier for loot found here; 0 = 1.0
	LootModifiers []string `yaml:"loot_modifiers"` // name words for loot found here
	LootContext   string   `yaml:"loot_context"`
}

// Tile converts the definition into a grid tile.
func (d *TerrainDef) Tile() world.Tile {
	cost := d.MoveCost
	if cost <= 0 {
		cost = 1
	}
	return world.Tile{
		Terrain:   d.Name,
		MoveCost:  cost,
		Passable:  !d.Impassable,
		Spawnable: !d.Impassable && !d.NoSpawn,
		Defense:   d.Defense,
	}
}

type terrainFile struct {
	Default   string              `yaml:"default"`
	Terrain   []TerrainDef        `yaml:"terrain"`
	Mutations map[string][]string `yaml:"mutations"`
}

// TerrainTable holds every terrain type indexed by name, in file order.
type TerrainTable struct {
	defs      map[string]*TerrainDef
	order     []*TerrainDef
	fallback  *TerrainDef
	mutations map[string][]string
}

// LoadTerrainTable loads terrain definitions. An empty path loads the
// built-in table.
func LoadTerrainTable(path string) (*TerrainTable, error) {
	var f terrainFile
	if err := decode(path, "terrain", &f); err != nil {
		return nil, err
	}
	if len(f.Terrain) == 0 {
		return nil, fmt.Errorf("parse terrain: no terrain types")
	}
	t := &TerrainTable{
		defs:      make(map[string]*TerrainDef, len(f.Terrain)),
		mutations: f.Mutations,
	}
	for i := range f.Terrain {
		d := &f.Terrain[i]
		if d.Name == "" {
			return nil, fmt.Errorf("parse terrain: entry %d has no name", i)
		}
		t.defs[d.Name] = d
		t.order = append(t.order, d)
	}
	t.fallback = t.defs[f.Default]
	if t.fallback == nil {
		t.fallback = t.order[0]
	}
	if t.fallback.Impassable {
		return nil, fmt.Errorf("parse terrain: default %q is impassable", t.fallback.Name)
	}
	for from, to := range t.mutations {
		for _, name := range to {
			if t.defs[name] == nil {
				return nil, fmt.Errorf("parse terrain: mutation %s -> unknown %q", from, name)
			}
		}
	}
	return t, nil
}

// Get returns a terrain by name, or nil if not found.
func (t *TerrainTable) Get(name string) *TerrainDef {
	return t.defs[name]
}

// Count returns the number of loaded terrain types.
func (t *TerrainTable) Count() int {
	return len(t.order)
}

// Default is the terrain used for test worlds and as a passable fallback.
func (t *TerrainTable) Default() *TerrainDef {
	return t.fallback
}

// All returns every terrain in file order.
func (t *TerrainTable) All() []*TerrainDef {
	return t.order
}

// Mutations returns the terrains a cell of the given terrain may turn into
// during ring regeneration.
func (t *TerrainTable) Mutations(name string) []*TerrainDef {
	var out []*TerrainDef
	for _, m := range t.mutations[name] {
		out = append(out, t.defs[m])
	}
	return out
}
