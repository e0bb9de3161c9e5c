package spawn

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/data"
	"github.com/gridrealm/server/internal/world"
)

// Populator places NPCs. Every placement goes through the arbiter, so an
// NPC never lands on a cell held by an in-flight join.
type Populator struct {
	arbiter *Arbiter
	npcs    *data.NpcTable
	log     *zap.Logger
}

func NewPopulator(a *Arbiter, npcs *data.NpcTable, log *zap.Logger) *Populator {
	return &Populator{arbiter: a, npcs: npcs, log: log}
}

// PopulateIn fills the whole grid to density NPCs per cell using the world
// stat profile. Returns the number placed.
func (p *Populator) PopulateIn(w *world.World, density float64) int {
	g := w.Grid()
	count := int(math.Floor(float64(g.Width()*g.Height()) * density))
	cells := make([]world.Pos, 0, g.Width()*g.Height())
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			cells = append(cells, world.Pos{X: x, Y: y})
		}
	}
	placed := p.PlaceIn(w, cells, count, "world")
	p.log.Info(fmt.Sprintf("NPC 生成完成  count=%d  wanted=%d", len(placed), count))
	return len(placed)
}

// PlaceIn spawns up to count NPCs on random cells drawn from candidates.
// Cells that are blocked or not spawnable are skipped.
func (p *Populator) PlaceIn(w *world.World, candidates []world.Pos, count int, profile string) []*world.NPC {
	if count <= 0 || len(candidates) == 0 {
		return nil
	}
	rng := w.Rand()
	order := append([]world.Pos(nil), candidates...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	prof := p.npcs.Profile(profile)
	var out []*world.NPC
	for _, pos := range order {
		if len(out) == count {
			break
		}
		res, ok := p.arbiter.ReserveAt(w, pos)
		if !ok {
			continue
		}
		res.ReleaseIn(w)
		npc := world.NewNPC(w.NextNPCID(), p.npcs.Name(rng), pos, prof.Roll(rng), w.Tick())
		if err := w.AddNPC(npc); err != nil {
			p.log.Warn(fmt.Sprintf("NPC 放置失敗  pos=%s  err=%v", pos, err))
			continue
		}
		out = append(out, npc)
	}
	return out
}
