package handler

import (
	"fmt"

	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/core/event"
	"github.com/gridrealm/server/internal/scripting"
	"github.com/gridrealm/server/internal/world"
)

// Experience awarded for a kill.
const (
	ExpPvP = 50
	ExpPvE = 25
)

// handleAttack strikes the live player or NPC on an adjacent cell.
func (r *Router) handleAttack(w *world.World, p *world.Player, c command.Attack) command.Result {
	if world.Chebyshev(p.Pos, c.Target) != 1 {
		return command.Fail(fmt.Errorf("target %s is not adjacent: %w", c.Target, world.ErrInvalidMove))
	}
	if target := w.PlayerAt(c.Target); target != nil && target.ID != p.ID {
		return r.attackPlayer(w, p, target)
	}
	if npc := w.NPCAt(c.Target); npc != nil {
		return r.attackNPC(w, p, npc)
	}
	return command.Fail(fmt.Errorf("no target at %s: %w", c.Target, world.ErrInvalidMove))
}

func (r *Router) attackPlayer(w *world.World, p, target *world.Player) command.Result {
	dmg := r.strike(w, p, &target.Stats, target.Pos)
	if target.Stats.HP > 0 {
		return command.OK(fmt.Sprintf("Hit %s for %d damage", target.Name, dmg))
	}
	w.KillPlayer(target)
	leveled := r.gainExperience(p, ExpPvP)
	event.Emit(r.deps.Bus, event.Defeated{AttackerID: p.ID, TargetID: target.ID, PvP: true, Experience: ExpPvP})
	r.deps.Log.Info(fmt.Sprintf("玩家擊敗  attacker=%s  target=%s  damage=%d", p.ID, target.ID, dmg))
	return command.OK(defeatMessage(target.Name, dmg, ExpPvP, leveled, p.Level))
}

func (r *Router) attackNPC(w *world.World, p *world.Player, npc *world.NPC) command.Result {
	dmg := r.strike(w, p, &npc.Stats, npc.Pos)
	if npc.Stats.HP > 0 {
		return command.OK(fmt.Sprintf("Hit %s for %d damage", npc.Name, dmg))
	}
	w.KillNPC(npc)
	leveled := r.gainExperience(p, ExpPvE)
	var drops []string
	for _, it := range r.deps.Loot.Drop(w, npc) {
		w.AddItem(it)
		drops = append(drops, it.ID)
	}
	event.Emit(r.deps.Bus, event.Defeated{AttackerID: p.ID, TargetID: npc.ID, Experience: ExpPvE, Drops: drops})
	return command.OK(defeatMessage(npc.Name, dmg, ExpPvE, leveled, p.Level))
}

// strike rolls and applies one hit to def, never taking HP below zero.
// Returns the damage dealt.
func (r *Router) strike(w *world.World, att *world.Player, def *world.Stats, at world.Pos) int {
	rng := w.Rand()
	rolls := scripting.Rolls{
		Crit:   rng.Float64() < r.deps.Config.Items.CritChance,
		Spread: 0.9 + rng.Float64()*0.2,
	}
	dmg := r.deps.Scripting.CalcDamage(
		scripting.Combatant{Attack: att.Stats.Attack},
		scripting.Combatant{Defense: def.Defense, Terrain: w.Grid().At(at).Terrain},
		rolls,
	)
	if dmg > def.HP {
		dmg = def.HP
	}
	def.HP -= dmg
	return dmg
}

// gainExperience awards xp and applies at most one level-up. Returns true
// when the player leveled.
func (r *Router) gainExperience(p *world.Player, xp int) bool {
	p.Experience += xp
	need := r.deps.Scripting.ExpForLevel(p.Level)
	if p.Experience < need {
		return false
	}
	p.Level++
	p.Experience -= need
	inc := r.deps.Scripting.LevelUpStat(p.Level)
	p.Stats.Attack += inc
	p.Stats.Defense += inc
	p.Stats.MaxHP += inc * 5
	p.Stats.HP += inc * 5
	if p.Stats.HP > p.Stats.MaxHP {
		p.Stats.HP = p.Stats.MaxHP
	}
	p.Stats.Speed += inc / 2
	event.Emit(r.deps.Bus, event.LevelUp{PlayerID: p.ID, Level: p.Level})
	return true
}

func defeatMessage(name string, dmg, xp int, leveled bool, level int) string {
	msg := fmt.Sprintf("Defeated %s with %d damage, +%d exp", name, dmg, xp)
	if leveled {
		msg += fmt.Sprintf(", reached level %d", level)
	}
	return msg
}
