package protocol

import (
	"errors"
	"fmt"

	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/world"
)

// ErrBadRequest marks malformed or unknown inbound messages.
var ErrBadRequest = errors.New("bad request")

// ErrInactive is sent before the server closes an idle connection.
var ErrInactive = errors.New("disconnected for inactivity")

type commandData struct {
	Direction string `json:"direction,omitempty"`
	X         *int   `json:"x,omitempty"`
	Y         *int   `json:"y,omitempty"`
	ItemID    string `json:"itemId,omitempty"`
}

type commandWire struct {
	Type string      `json:"type"`
	Data commandData `json:"data"`
}

// DecodeCommand turns a command payload into a typed command. This is the
// only place wire command names are interpreted.
func DecodeCommand(c Codec, payload []byte) (command.Command, error) {
	var in commandWire
	if err := c.Unmarshal(payload, &in); err != nil {
		return nil, err
	}
	kind, ok := command.ParseKind(in.Type)
	if !ok {
		return nil, fmt.Errorf("unknown command %q: %w", in.Type, ErrBadRequest)
	}
	switch kind {
	case command.KindMove:
		return command.Move{Direction: command.Direction(in.Data.Direction)}, nil
	case command.KindMoveTo:
		p, err := in.Data.pos()
		if err != nil {
			return nil, err
		}
		return command.MoveTo{Target: p}, nil
	case command.KindAttack:
		p, err := in.Data.pos()
		if err != nil {
			return nil, err
		}
		return command.Attack{Target: p}, nil
	case command.KindPickup:
		return command.Pickup{ItemID: in.Data.ItemID}, nil
	case command.KindUseItem:
		return command.UseItem{ItemID: in.Data.ItemID}, nil
	case command.KindStartCataclysm:
		return command.StartCataclysm{}, nil
	case command.KindInspectItem:
		return command.InspectItem{ItemID: in.Data.ItemID}, nil
	case command.KindLootItem:
		return command.LootItem{ItemID: in.Data.ItemID}, nil
	}
	return nil, fmt.Errorf("unhandled command %s: %w", kind, ErrBadRequest)
}

func (d commandData) pos() (world.Pos, error) {
	if d.X == nil || d.Y == nil {
		return world.Pos{}, fmt.Errorf("command needs x and y: %w", ErrBadRequest)
	}
	return world.Pos{X: *d.X, Y: *d.Y}, nil
}

// CommandMessage builds the client envelope for cmd. Bots and tests use it.
func CommandMessage(cmd command.Command) Message {
	w := commandWire{Type: cmd.Kind().String()}
	switch c := cmd.(type) {
	case command.Move:
		w.Data.Direction = string(c.Direction)
	case command.MoveTo:
		w.Data.X, w.Data.Y = intPtr(c.Target.X), intPtr(c.Target.Y)
	case command.Attack:
		w.Data.X, w.Data.Y = intPtr(c.Target.X), intPtr(c.Target.Y)
	case command.Pickup:
		w.Data.ItemID = c.ItemID
	case command.UseItem:
		w.Data.ItemID = c.ItemID
	case command.InspectItem:
		w.Data.ItemID = c.ItemID
	case command.LootItem:
		w.Data.ItemID = c.ItemID
	case command.StartCataclysm:
	}
	return Message{Type: TypeCommand, Payload: w}
}

func intPtr(v int) *int { return &v }
