package system

import (
	"fmt"
	"time"

	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/world"
)

// InvariantSystem checks the occupancy index against entity positions after
// all game logic ran. A violation aborts the tick before any delta goes out.
// Phase 3 (PostUpdate).
type InvariantSystem struct {
	store *world.Store
}

func NewInvariantSystem(store *world.Store) *InvariantSystem {
	return &InvariantSystem{store: store}
}

func (s *InvariantSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *InvariantSystem) Update(_ time.Duration) error {
	var err error
	s.store.View(func(w *world.World) {
		if e := w.CheckInvariants(); e != nil {
			err = fmt.Errorf("tick %d: %w", w.Tick(), e)
		}
	})
	return err
}
