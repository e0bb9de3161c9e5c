package handler

import (
	"fmt"

	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/world"
)

// handleMove steps one tile orthogonally. Any queued move_to route is
// dropped: a manual step always wins.
func (r *Router) handleMove(w *world.World, p *world.Player, c command.Move) command.Result {
	d, ok := c.Direction.Delta()
	if !ok {
		return command.Fail(fmt.Errorf("unknown direction %q: %w", c.Direction, world.ErrInvalidMove))
	}
	if !p.CanMove(w.Tick(), r.deps.Config.World.MoveCooldownTicks) {
		return command.Fail(errCooldown)
	}
	to := p.Pos.Add(d)
	if err := r.deps.Planner.ValidateStep(w, p.Pos, to, nil); err != nil {
		return command.Fail(err)
	}
	w.MovePlayer(p, to)
	p.MarkMoved(w.Tick())
	p.ClearPath()
	return command.OK(fmt.Sprintf("Moved %s", c.Direction))
}

// handleMoveTo plans a route and stores it on the player; the movement
// system walks it one step per tick.
func (r *Router) handleMoveTo(w *world.World, p *world.Player, c command.MoveTo) command.Result {
	steps, err := r.deps.Planner.RequestMoveTo(w, p.Pos, c.Target)
	if err != nil {
		return command.Fail(err)
	}
	p.Path = steps
	return command.OK(fmt.Sprintf("Moving to %s in %d steps", c.Target, len(steps)))
}
