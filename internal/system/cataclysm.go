package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/cataclysm"
	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/world"
)

// CataclysmSystem runs the due shrink and rebirth transitions and announces
// each one on the bus. Phase 2 (Update).
type CataclysmSystem struct {
	store      *world.Store
	controller *cataclysm.Controller
	bus        *event.Bus
	log        *zap.Logger
}

func NewCataclysmSystem(store *world.Store, controller *cataclysm.Controller, bus *event.Bus, log *zap.Logger) *CataclysmSystem {
	return &CataclysmSystem{store: store, controller: controller, bus: bus, log: log}
}

func (s *CataclysmSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *CataclysmSystem) Update(_ time.Duration) error {
	return s.store.Update(func(w *world.World) error {
		for _, tr := range s.controller.Advance(w) {
			event.Emit(s.bus, event.CataclysmChanged{
				Kind:   tr.Kind,
				Phase:  tr.Phase,
				Radius: tr.Radius,
				Killed: tr.Killed,
				Tick:   w.Tick(),
			})
			s.log.Info(fmt.Sprintf("天災轉換  kind=%s  phase=%s  radius=%d  killed=%d  npcs=%d  items=%d",
				tr.Kind, tr.Phase, tr.Radius, len(tr.Killed), tr.NPCs, tr.Items))
		}
		return nil
	})
}
