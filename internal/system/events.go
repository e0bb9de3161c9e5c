package system

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/delta"
	"github.com/gridrealm/server/internal/persist"
	"github.com/gridrealm/server/internal/protocol"
)

// World event kinds besides the cataclysm transitions.
const KindPlayerDefeated = "player_defeated"

// Audience is the set of authenticated connections.
type Audience interface {
	Clients() []delta.Client
	Broadcast(msg protocol.Message)
}

// Journal records audit rows; persist.Journal or persist.Discard.
type Journal interface {
	Record(e persist.Entry)
	Flush(ctx context.Context) (int, error)
}

// EventSystem swaps the bus and delivers last tick's events. Phase 1
// (PreUpdate).
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventSystem) Update(_ time.Duration) error {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
	return nil
}

// Subscribe routes bus events to clients, the journal and the log.
func Subscribe(bus *event.Bus, audience Audience, journal Journal, log *zap.Logger) {
	event.Subscribe(bus, func(e event.CataclysmChanged) {
		audience.Broadcast(protocol.Message{Type: protocol.TypeWorldEvent, Payload: protocol.WorldEvent{
			Kind:   e.Kind,
			Phase:  e.Phase,
			Radius: e.Radius,
			Killed: e.Killed,
			Tick:   e.Tick,
		}})
		journal.Record(persist.Entry{
			Kind:   persist.KindCataclysm,
			Detail: fmt.Sprintf("%s radius=%d killed=%s", e.Kind, e.Radius, strings.Join(e.Killed, ",")),
			Tick:   e.Tick,
		})
	})
	event.Subscribe(bus, func(e event.Defeated) {
		if e.PvP {
			audience.Broadcast(protocol.Message{Type: protocol.TypeWorldEvent, Payload: protocol.WorldEvent{
				Kind:   KindPlayerDefeated,
				Actor:  e.AttackerID,
				Target: e.TargetID,
			}})
		}
		journal.Record(persist.Entry{
			Kind:     persist.KindDefeat,
			PlayerID: e.AttackerID,
			Detail:   fmt.Sprintf("target=%s pvp=%t exp=%d drops=%d", e.TargetID, e.PvP, e.Experience, len(e.Drops)),
		})
	})
	event.Subscribe(bus, func(e event.LevelUp) {
		log.Info(fmt.Sprintf("玩家升級  player=%s  level=%d", e.PlayerID, e.Level))
		journal.Record(persist.Entry{Kind: persist.KindLevelUp, PlayerID: e.PlayerID, Detail: fmt.Sprintf("level=%d", e.Level)})
	})
	event.Subscribe(bus, func(e event.ItemLooted) {
		journal.Record(persist.Entry{Kind: persist.KindLoot, PlayerID: e.PlayerID, Detail: e.ItemID})
	})
	event.Subscribe(bus, func(e event.PlayerJoined) {
		kind := persist.KindJoin
		if e.Rejoin {
			kind = persist.KindRejoin
		}
		journal.Record(persist.Entry{Kind: kind, PlayerID: e.PlayerID, Detail: "conn=" + e.ConnID})
	})
	event.Subscribe(bus, func(e event.PlayerLeft) {
		journal.Record(persist.Entry{Kind: persist.KindLeave, PlayerID: e.PlayerID, Detail: e.Reason})
	})
	event.Subscribe(bus, func(e event.PlayerDisconnected) {
		journal.Record(persist.Entry{Kind: persist.KindDisconnect, PlayerID: e.PlayerID, Detail: "conn=" + e.ConnID})
	})
}
