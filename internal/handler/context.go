// Package handler applies player commands to the world. The Router is the
// only place commands mutate world state; the session layer decides who may
// call it.
package handler

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/cataclysm"
	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/core/event"
	"github.com/gridrealm/server/internal/loot"
	"github.com/gridrealm/server/internal/path"
	"github.com/gridrealm/server/internal/scripting"
	"github.com/gridrealm/server/internal/world"
)

// Deps holds shared dependencies injected into every command handler.
type Deps struct {
	Store     *world.Store
	Config    *config.Config
	Log       *zap.Logger
	Planner   *path.Planner
	Scripting *scripting.Engine
	Loot      *loot.Generator
	Cataclysm *cataclysm.Controller
	Bus       *event.Bus
	Now       func() time.Time // wall clock for idle tracking; nil = time.Now
}

var (
	errInternal       = errors.New("internal error")
	errDead           = errors.New("player not alive")
	errCooldown       = errors.New("movement on cooldown")
	errItemNotFound   = errors.New("item not found")
	errOutOfReach     = errors.New("item out of reach")
	errNotRevealed    = errors.New("item must be revealed first")
	errAlreadySeen    = errors.New("item already revealed")
	errInventoryFull  = errors.New("inventory full")
	errNotInInventory = errors.New("item not in inventory")
	errNotUsable      = errors.New("item cannot be used")
	errLootBlocked    = errors.New("item cannot be looted yet")
	errLootFailed     = errors.New("loot attempt failed")
)

// Router dispatches commands. It is safe for concurrent use; each dispatch
// holds the store lock for exactly one command.
type Router struct {
	deps *Deps
}

func NewRouter(deps *Deps) *Router {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Router{deps: deps}
}

// Dispatch applies cmd on behalf of playerID. A handler panic is logged and
// reported as a failure; the store lock is released either way.
func (r *Router) Dispatch(playerID string, cmd command.Command) (res command.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.deps.Log.Error(fmt.Sprintf("指令處理崩潰  player=%s  cmd=%s  panic=%v", playerID, cmd.Kind(), p),
				zap.Stack("stack"))
			res = command.Fail(errInternal)
		}
	}()

	var out command.Result
	err := r.deps.Store.Update(func(w *world.World) error {
		p := w.Player(playerID)
		if p == nil {
			return world.ErrNotAuthenticated
		}
		p.Touch(r.deps.Now())
		out = r.dispatch(w, p, cmd)
		return nil
	})
	if err != nil {
		return command.Fail(err)
	}
	if !out.Success {
		r.deps.Log.Debug(fmt.Sprintf("指令失敗  player=%s  cmd=%s  err=%s", playerID, cmd.Kind(), out.Message))
	}
	return out
}

// dispatch is the exhaustive switch over the command set.
func (r *Router) dispatch(w *world.World, p *world.Player, cmd command.Command) command.Result {
	if _, ok := cmd.(command.StartCataclysm); !ok && !p.Alive {
		return command.Fail(errDead)
	}
	switch c := cmd.(type) {
	case command.Move:
		return r.handleMove(w, p, c)
	case command.MoveTo:
		return r.handleMoveTo(w, p, c)
	case command.Attack:
		return r.handleAttack(w, p, c)
	case command.Pickup:
		return r.handlePickup(w, p, c.ItemID, false)
	case command.LootItem:
		return r.handlePickup(w, p, c.ItemID, true)
	case command.InspectItem:
		return r.handleInspect(w, p, c)
	case command.UseItem:
		return r.handleUseItem(w, p, c)
	case command.StartCataclysm:
		return r.handleStartCataclysm(w, p)
	}
	return command.Fail(fmt.Errorf("unknown command %T", cmd))
}
