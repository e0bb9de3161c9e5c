// Package cataclysm drives the shrinking-circle world event: start, periodic
// shrink with terrain ring regeneration, rebirth and reset.
package cataclysm

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/loot"
	"github.com/gridrealm/server/internal/spawn"
	"github.com/gridrealm/server/internal/world"
	"github.com/gridrealm/server/internal/worldgen"
)

var (
	ErrAlreadyActive = errors.New("cataclysm already active")
	ErrRebirth       = errors.New("world is being reborn")
)

// Transition kinds.
const (
	KindStarted     = "cataclysm_started"
	KindShrunk      = "cataclysm_shrunk"
	KindRebirth     = "rebirth_started"
	KindExploration = "exploration_resumed"
)

// lootAttempts bounds the polar sampling for one ring item.
const lootAttempts = 30

// Config holds the cataclysm timings (ticks) and ring densities.
type Config struct {
	FirstShrinkTicks    uint64
	ShrinkIntervalTicks uint64
	RebirthTicks        uint64
	NPCDensity          float64 // NPCs per cell, whole world and ring area alike
	NPCRingFactor       float64
	LootDensity         float64 // items per cell of ring area
	LootRingFactor      float64
}

func DefaultConfig() Config {
	return Config{
		FirstShrinkTicks:    10,
		ShrinkIntervalTicks: 60,
		RebirthTicks:        5,
		NPCDensity:          0.025,
		NPCRingFactor:       0.5,
		LootDensity:         0.20,
		LootRingFactor:      2,
	}
}

// Transition describes one state change, for logging and client notices.
type Transition struct {
	Kind   string
	Phase  world.Phase
	Radius int
	Killed []string
	NPCs   int
	Items  int
}

// Controller mutates the world's cataclysm state. All methods run under the
// store lock.
type Controller struct {
	cfg     Config
	terrain *worldgen.Generator
	loot    *loot.Generator
	pop     *spawn.Populator
	arbiter *spawn.Arbiter
	log     *zap.Logger
}

func NewController(cfg Config, terrain *worldgen.Generator, lg *loot.Generator, pop *spawn.Populator, arbiter *spawn.Arbiter, log *zap.Logger) *Controller {
	return &Controller{cfg: cfg, terrain: terrain, loot: lg, pop: pop, arbiter: arbiter, log: log}
}

// Start activates the event. The first shrink lands FirstShrinkTicks later.
func (c *Controller) Start(w *world.World) (Transition, error) {
	cat := w.Cataclysm()
	if cat.Active {
		return Transition{}, ErrAlreadyActive
	}
	if cat.Phase == world.PhaseRebirth {
		return Transition{}, ErrRebirth
	}
	cat.Active = true
	cat.Phase = world.PhaseCataclysm
	cat.NextShrinkTick = w.Tick() + c.cfg.FirstShrinkTicks
	c.log.Info(fmt.Sprintf("天災開始  tick=%d  radius=%d  first_shrink=%d", w.Tick(), cat.Radius, cat.NextShrinkTick))
	return Transition{Kind: KindStarted, Phase: cat.Phase, Radius: cat.Radius}, nil
}

// Advance runs the due transitions for the current tick.
func (c *Controller) Advance(w *world.World) []Transition {
	cat := w.Cataclysm()
	tick := w.Tick()
	var out []Transition

	if cat.Phase == world.PhaseRebirth && tick >= cat.RebirthEndTick {
		out = append(out, c.finishRebirth(w))
	}
	if cat.Active && tick >= cat.NextShrinkTick {
		out = append(out, c.shrink(w))
	}
	return out
}

func (c *Controller) shrink(w *world.World) Transition {
	cat := w.Cataclysm()
	rng := w.Rand()
	outer := cat.Radius
	inner := outer - 1
	if inner < 0 {
		inner = 0
	}
	cat.Radius = inner
	if cat.InitialRadius > 0 {
		cat.Roughness = 1 + 3*(1-float64(cat.Radius)/float64(cat.InitialRadius))
	}

	ring := c.terrain.RegenerateRing(w.Grid(), cat.Center, outer, inner, rng, w.Blocked)

	var killed []string
	for _, p := range w.Players() {
		if p.Alive && cat.Outside(p.Pos) {
			w.KillPlayer(p)
			killed = append(killed, p.ID)
		}
	}

	area := math.Pi * float64(outer*outer-inner*inner)
	npcCount := int(math.Floor(area * c.cfg.NPCDensity * c.cfg.NPCRingFactor))
	npcs := c.pop.PlaceIn(w, ring, npcCount, "cataclysm")

	items := 0
	lootCount := int(math.Floor(area * c.cfg.LootDensity * c.cfg.LootRingFactor))
	for i := 0; i < lootCount; i++ {
		p, ok := c.sampleRing(w, cat.Center, inner, outer)
		if !ok {
			continue
		}
		w.AddItem(c.loot.Terrain(w, p, true))
		items++
	}

	t := Transition{Kind: KindShrunk, Phase: cat.Phase, Radius: cat.Radius, Killed: killed, NPCs: len(npcs), Items: items}
	if cat.Radius <= 0 {
		cat.Active = false
		cat.Phase = world.PhaseRebirth
		cat.RebirthEndTick = w.Tick() + c.cfg.RebirthTicks
		cat.NextShrinkTick = 0
		t.Kind = KindRebirth
		t.Phase = cat.Phase
	} else {
		cat.NextShrinkTick = w.Tick() + c.cfg.ShrinkIntervalTicks
	}
	c.log.Info(fmt.Sprintf("天災縮圈  tick=%d  radius=%d  ring=%d  killed=%d  npcs=%d  items=%d",
		w.Tick(), cat.Radius, len(ring), len(killed), len(npcs), items))
	return t
}

// sampleRing picks a random free cell between inner and outer by polar
// sampling; cells outside the grid count as misses.
func (c *Controller) sampleRing(w *world.World, center world.Pos, inner, outer int) (world.Pos, bool) {
	rng := w.Rand()
	for i := 0; i < lootAttempts; i++ {
		angle := rng.Float64() * 2 * math.Pi
		dist := float64(inner) + rng.Float64()*float64(outer-inner)
		p := world.Pos{
			X: int(math.Round(float64(center.X) + math.Cos(angle)*dist)),
			Y: int(math.Round(float64(center.Y) + math.Sin(angle)*dist)),
		}
		if w.InBounds(p) && w.Passable(p) && !w.Blocked(p) {
			return p, true
		}
	}
	return world.Pos{}, false
}

// finishRebirth resets the world: ground items and NPCs are cleared, the
// whole grid is regenerated, every dead player is revived on a fresh spawn
// cell and the NPC population is rebuilt. Cells held by live players or
// pending joins stay passable.
func (c *Controller) finishRebirth(w *world.World) Transition {
	cat := w.Cataclysm()
	cat.Phase = world.PhaseExploration
	cat.Radius = cat.InitialRadius
	cat.Roughness = 1
	cat.RebirthEndTick = 0

	for _, it := range w.Items() {
		w.RemoveItem(it.ID)
	}
	for _, n := range w.NPCs() {
		w.RemoveNPC(n.ID)
	}
	c.terrain.Regenerate(w.Grid(), w.Rand(), w.Blocked)

	revived := 0
	for _, p := range w.Players() {
		if p.Alive {
			continue
		}
		res, ok := c.arbiter.ReserveIn(w)
		if !ok {
			c.log.Warn(fmt.Sprintf("重生無可用位置  player=%s", p.ID))
			continue
		}
		res.ReleaseIn(w)
		w.RevivePlayer(p, res.Pos)
		revived++
	}
	npcs := c.pop.PopulateIn(w, c.cfg.NPCDensity)
	c.log.Info(fmt.Sprintf("世界重生完成  tick=%d  revived=%d  npcs=%d", w.Tick(), revived, npcs))
	return Transition{Kind: KindExploration, Phase: cat.Phase, Radius: cat.Radius, NPCs: npcs}
}
