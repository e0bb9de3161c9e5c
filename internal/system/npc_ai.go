package system

import (
	"time"

	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/path"
	"github.com/gridrealm/server/internal/world"
)

var wanderSteps = [4]world.Pos{{X: 0, Y: -1}, {X: 0, Y: 1}, {X: -1, Y: 0}, {X: 1, Y: 0}}

// WanderSystem moves idle NPCs. An NPC that has not moved for `every` ticks
// rolls `chance` to step one tile in a random orthogonal direction; a
// blocked step is simply skipped. Phase 2 (Update).
type WanderSystem struct {
	store   *world.Store
	planner *path.Planner
	every   uint64
	chance  float64
}

func NewWanderSystem(store *world.Store, planner *path.Planner, everyTicks uint64, chance float64) *WanderSystem {
	return &WanderSystem{store: store, planner: planner, every: everyTicks, chance: chance}
}

func (s *WanderSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *WanderSystem) Update(_ time.Duration) error {
	return s.store.Update(func(w *world.World) error {
		tick := w.Tick()
		rng := w.Rand()
		for _, n := range w.NPCs() {
			if !n.Alive || tick-n.LastMoveTick < s.every {
				continue
			}
			if rng.Float64() >= s.chance {
				continue
			}
			to := n.Pos.Add(wanderSteps[rng.Intn(len(wanderSteps))])
			if s.planner.ValidateStep(w, n.Pos, to, nil) != nil {
				continue
			}
			w.MoveNPC(n, to)
			n.LastMoveTick = tick
		}
		return nil
	})
}
