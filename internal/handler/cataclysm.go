package handler

import (
	"errors"
	"fmt"

	"github.com/gridrealm/server/internal/cataclysm"
	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/core/event"
	"github.com/gridrealm/server/internal/world"
)

func (r *Router) handleStartCataclysm(w *world.World, p *world.Player) command.Result {
	tr, err := r.deps.Cataclysm.Start(w)
	switch {
	case errors.Is(err, cataclysm.ErrAlreadyActive):
		return command.Result{Message: "Cataclysm already active", Err: err}
	case err != nil:
		return command.Fail(err)
	}
	event.Emit(r.deps.Bus, event.CataclysmChanged{Kind: tr.Kind, Phase: tr.Phase, Radius: tr.Radius, Tick: w.Tick()})
	r.deps.Log.Info(fmt.Sprintf("天災由玩家觸發  player=%s", p.ID))
	return command.OK("The cataclysm has begun! The world will start changing soon.")
}
