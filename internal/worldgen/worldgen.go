// Package worldgen builds and rewrites terrain. It is a pure collaborator:
// every call runs under the world lock and touches only the grid it is given.
package worldgen

import (
	"math/rand"

	"github.com/gridrealm/server/internal/data"
	"github.com/gridrealm/server/internal/world"
)

// MutationChance is the chance a regenerated ring cell turns into one of its
// terrain's mutations.
const MutationChance = 0.3

// Generator picks terrain from a weighted table.
type Generator struct {
	terrain *data.TerrainTable
	total   float64
}

func NewGenerator(terrain *data.TerrainTable) *Generator {
	g := &Generator{terrain: terrain}
	for _, d := range terrain.All() {
		if d.SpawnWeight > 0 {
			g.total += d.SpawnWeight
		}
	}
	return g
}

// Pick draws one terrain by spawn weight. A table with no weights always
// yields the default terrain.
func (g *Generator) Pick(rng *rand.Rand) *data.TerrainDef {
	if g.total <= 0 {
		return g.terrain.Default()
	}
	roll := rng.Float64() * g.total
	for _, d := range g.terrain.All() {
		if d.SpawnWeight <= 0 {
			continue
		}
		roll -= d.SpawnWeight
		if roll < 0 {
			return d
		}
	}
	return g.terrain.Default()
}

// InitializeGrid builds a width×height grid of weighted random terrain.
func (g *Generator) InitializeGrid(width, height int, rng *rand.Rand) *world.Grid {
	grid := world.NewGrid(width, height, g.terrain.Default().Tile())
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			grid.Set(world.Pos{X: x, Y: y}, g.Pick(rng).Tile())
		}
	}
	return grid
}

// Flat builds a grid of the default terrain only.
func (g *Generator) Flat(width, height int) *world.Grid {
	return world.NewGrid(width, height, g.terrain.Default().Tile())
}

// RegenerateRing rewrites every cell whose distance d from center satisfies
// inner < d <= outer. Cells for which keep returns true only receive passable
// terrain, so no live entity is ever left standing on an impassable tile.
// It returns the rewritten cells.
func (g *Generator) RegenerateRing(grid *world.Grid, center world.Pos, outer, inner int, rng *rand.Rand, keep func(world.Pos) bool) []world.Pos {
	var changed []world.Pos
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			p := world.Pos{X: x, Y: y}
			d := world.Euclidean(p, center)
			if d > float64(outer) || d <= float64(inner) {
				continue
			}
			def := g.Pick(rng)
			if muts := g.terrain.Mutations(def.Name); len(muts) > 0 && rng.Float64() < MutationChance {
				def = muts[rng.Intn(len(muts))]
			}
			if def.Impassable && keep != nil && keep(p) {
				def = g.terrain.Default()
			}
			grid.Set(p, def.Tile())
			changed = append(changed, p)
		}
	}
	return changed
}

// Regenerate rewrites the whole grid, honoring keep like RegenerateRing.
func (g *Generator) Regenerate(grid *world.Grid, rng *rand.Rand, keep func(world.Pos) bool) {
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			p := world.Pos{X: x, Y: y}
			def := g.Pick(rng)
			if def.Impassable && keep != nil && keep(p) {
				def = g.terrain.Default()
			}
			grid.Set(p, def.Tile())
		}
	}
}
