package system

import (
	"time"

	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/path"
	"github.com/gridrealm/server/internal/world"
)

// MovementSystem walks queued move_to routes one step per tick. A step that
// no longer validates drops the rest of the route. Phase 2 (Update).
type MovementSystem struct {
	store    *world.Store
	planner  *path.Planner
	cooldown uint64
}

func NewMovementSystem(store *world.Store, planner *path.Planner, cooldownTicks uint64) *MovementSystem {
	return &MovementSystem{store: store, planner: planner, cooldown: cooldownTicks}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MovementSystem) Update(_ time.Duration) error {
	return s.store.Update(func(w *world.World) error {
		tick := w.Tick()
		for _, p := range w.Players() {
			if !p.Alive || len(p.Path) == 0 || !p.CanMove(tick, s.cooldown) {
				continue
			}
			next := p.Path[0]
			if err := s.planner.ValidateStep(w, p.Pos, next, nil); err != nil {
				p.ClearPath()
				continue
			}
			w.MovePlayer(p, next)
			p.MarkMoved(tick)
			if len(p.Path) == 1 {
				p.ClearPath()
			} else {
				p.Path = p.Path[1:]
			}
		}
		return nil
	})
}
