package system

import (
	"time"

	"github.com/gridrealm/server/internal/config"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/world"
)

// RevealDuration maps a rarity to its reveal time in ticks. Unknown
// rarities reveal like common items.
func RevealDuration(cfg config.RevealConfig, r world.Rarity) uint64 {
	switch r {
	case world.RarityUncommon:
		return cfg.Uncommon
	case world.RarityRare:
		return cfg.Rare
	case world.RarityEpic:
		return cfg.Epic
	case world.RarityLegendary:
		return cfg.Legendary
	default:
		return cfg.Common
	}
}

// RevealSystem advances the reveal of every inspected ground item. Phase 2
// (Update).
type RevealSystem struct {
	store *world.Store
	cfg   config.RevealConfig
}

func NewRevealSystem(store *world.Store, cfg config.RevealConfig) *RevealSystem {
	return &RevealSystem{store: store, cfg: cfg}
}

func (s *RevealSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *RevealSystem) Update(_ time.Duration) error {
	return s.store.Update(func(w *world.World) error {
		tick := w.Tick()
		for _, it := range w.Items() {
			if it.Revealing {
				it.AdvanceReveal(tick, RevealDuration(s.cfg, it.Rarity))
			}
		}
		return nil
	})
}
