package system

import (
	"time"

	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/delta"
	"github.com/gridrealm/server/internal/world"
)

// DeltaSystem captures the world once and sends each authenticated client
// what changed since its last view. Phase 4 (Output).
type DeltaSystem struct {
	store       *world.Store
	broadcaster *delta.Broadcaster
	audience    Audience
}

func NewDeltaSystem(store *world.Store, broadcaster *delta.Broadcaster, audience Audience) *DeltaSystem {
	return &DeltaSystem{store: store, broadcaster: broadcaster, audience: audience}
}

func (s *DeltaSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *DeltaSystem) Update(_ time.Duration) error {
	var f world.Frame
	var clients []delta.Client
	// Read the client list under the same lock as the frame, so no client
	// holds a join baseline newer than what it is sent.
	s.store.View(func(w *world.World) {
		f = w.Frame()
		clients = s.audience.Clients()
	})
	s.broadcaster.Broadcast(delta.Capture(f), clients)
	return nil
}
