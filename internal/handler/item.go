package handler

import (
	"fmt"

	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/core/event"
	"github.com/gridrealm/server/internal/world"
)

// groundItem looks up a ground item within reach of p.
func (r *Router) groundItem(w *world.World, p *world.Player, id string) (*world.Item, error) {
	it := w.Item(id)
	if it == nil {
		return nil, errItemNotFound
	}
	at, ok := it.At()
	if !ok {
		return nil, errItemNotFound
	}
	if world.Manhattan(p.Pos, at) > r.deps.Config.Items.Reach {
		return nil, errOutOfReach
	}
	return it, nil
}

// handlePickup moves a revealed item into the inventory. loot_item adds a
// failure chance; a failed attempt blocks the item for a few ticks.
func (r *Router) handlePickup(w *world.World, p *world.Player, id string, risky bool) command.Result {
	it, err := r.groundItem(w, p, id)
	if err != nil {
		return command.Fail(err)
	}
	if !it.Lootable {
		return command.Fail(errNotRevealed)
	}
	if p.InventoryFull() {
		return command.Fail(errInventoryFull)
	}
	if risky {
		tick := w.Tick()
		if tick < it.LootBlockedUntil {
			return command.Fail(errLootBlocked)
		}
		if w.Rand().Float64() < r.deps.Config.Items.LootFailChance {
			it.LootBlockedUntil = tick + r.deps.Config.Items.LootBlockTicks
			return command.Fail(errLootFailed)
		}
	}
	w.RemoveItem(it.ID)
	p.Give(it)
	event.Emit(r.deps.Bus, event.ItemLooted{PlayerID: p.ID, ItemID: it.ID})
	return command.OK(fmt.Sprintf("Picked up %s", it.Name))
}

// handleInspect starts the timed reveal of a hidden item.
func (r *Router) handleInspect(w *world.World, p *world.Player, c command.InspectItem) command.Result {
	it, err := r.groundItem(w, p, c.ItemID)
	if err != nil {
		return command.Fail(err)
	}
	if !it.Hidden {
		return command.Fail(errAlreadySeen)
	}
	it.StartReveal(w.Tick())
	return command.OK(fmt.Sprintf("Inspecting %s", it.Name))
}

// handleUseItem consumes a consumable and heals by its hp stat.
func (r *Router) handleUseItem(w *world.World, p *world.Player, c command.UseItem) command.Result {
	it := p.FindItem(c.ItemID)
	if it == nil {
		return command.Fail(errNotInInventory)
	}
	if it.Kind != world.ItemConsumable {
		return command.Fail(errNotUsable)
	}
	p.TakeItem(it.ID)
	healed := it.Stats.HP
	if p.Stats.HP+healed > p.Stats.MaxHP {
		healed = p.Stats.MaxHP - p.Stats.HP
	}
	p.Stats.HP += healed
	return command.OK(fmt.Sprintf("Used %s, healed %d", it.Name, healed))
}
