// Package loot generates hidden ground items from the loot table.
package loot

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/gridrealm/server/internal/data"
	"github.com/gridrealm/server/internal/world"
)

var kinds = []world.ItemKind{world.ItemWeapon, world.ItemArmor, world.ItemConsumable}

// Generator builds items. It holds no state of its own; ids and randomness
// come from the world it is called with.
type Generator struct {
	table   *data.LootTable
	terrain *data.TerrainTable
}

func NewGenerator(table *data.LootTable, terrain *data.TerrainTable) *Generator {
	return &Generator{table: table, terrain: terrain}
}

// Terrain creates a hidden item at p themed by the cell's terrain.
// Cataclysm loot uses the boosted rarity weights and stat bonus.
func (g *Generator) Terrain(w *world.World, p world.Pos, cataclysm bool) *world.Item {
	rng := w.Rand()
	set := "normal"
	if cataclysm {
		set = "cataclysm"
	}
	kind := kinds[rng.Intn(len(kinds))]
	rarity := g.rarity(rng, set)

	terrain := g.terrain.Get(w.Grid().At(p).Terrain)
	modifier := "Mysterious"
	context := "found in the wilderness"
	bonus := 1.0
	if terrain != nil {
		if len(terrain.LootModifiers) > 0 {
			modifier = terrain.LootModifiers[rng.Intn(len(terrain.LootModifiers))]
		}
		if terrain.LootContext != "" {
			context = terrain.LootContext
		}
		if terrain.LootBonus > 0 {
			bonus = terrain.LootBonus
		}
	}
	mult := g.table.Multiplier(rarity) * bonus
	if cataclysm {
		mult *= g.table.CataclysmBonus
	}

	pos := p
	return &world.Item{
		ID:          w.NextItemID(),
		Name:        fmt.Sprintf("%s %s %s", g.pick(rng, g.table.Prefixes[rarity], "Plain"), modifier, g.pick(rng, g.table.TypeNames[kind], "Item")),
		Kind:        kind,
		Rarity:      rarity,
		Description: fmt.Sprintf("A %s %s %s.", rarity, kind, context),
		Stats:       rollStats(rng, kind, mult),
		Pos:         &pos,
		Hidden:      true,
	}
}

// Drop rolls the drop chance for a defeated NPC and returns the dropped
// items, if any, on the NPC's cell.
func (g *Generator) Drop(w *world.World, npc *world.NPC) []*world.Item {
	rng := w.Rand()
	if rng.Float64() >= g.table.DropChance {
		return nil
	}
	kind := kinds[rng.Intn(len(kinds))]
	rarity := g.rarity(rng, "drop")
	pos := npc.Pos
	return []*world.Item{{
		ID:          w.NextItemID(),
		Name:        g.pick(rng, g.table.Prefixes[rarity], "Plain") + " " + g.pick(rng, g.table.TypeNames[kind], "Item"),
		Kind:        kind,
		Rarity:      rarity,
		Description: fmt.Sprintf("A %s %s dropped by %s", rarity, kind, npc.Name),
		Stats:       rollStats(rng, kind, g.table.Multiplier(rarity)),
		Pos:         &pos,
		Hidden:      true,
	}}
}

func (g *Generator) rarity(rng *rand.Rand, set string) world.Rarity {
	rs, ws := g.table.Weights(set)
	total := 0.0
	for _, w := range ws {
		total += w
	}
	roll := rng.Float64() * total
	for i, w := range ws {
		roll -= w
		if roll < 0 {
			return rs[i]
		}
	}
	return world.RarityCommon
}

func (g *Generator) pick(rng *rand.Rand, words []string, fallback string) string {
	if len(words) == 0 {
		return fallback
	}
	return words[rng.Intn(len(words))]
}

func rollStats(rng *rand.Rand, kind world.ItemKind, mult float64) world.ItemStats {
	switch kind {
	case world.ItemWeapon:
		return world.ItemStats{Attack: int(math.Floor(5*mult + rng.Float64()*3))}
	case world.ItemArmor:
		return world.ItemStats{Defense: int(math.Floor(3*mult + rng.Float64()*2))}
	default:
		return world.ItemStats{HP: int(math.Floor(20*mult + rng.Float64()*10))}
	}
}
