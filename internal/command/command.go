// Package command defines the closed set of player commands. Wire strings
// are mapped to these types only at the protocol edge; everything past it
// switches on concrete types.
package command

import "github.com/gridrealm/server/internal/world"

// Kind names a command type.
type Kind uint8

const (
	KindMove Kind = iota + 1
	KindMoveTo
	KindAttack
	KindPickup
	KindUseItem
	KindStartCataclysm
	KindInspectItem
	KindLootItem
)

// Kinds lists every command kind, in wire order.
var Kinds = []Kind{
	KindMove, KindMoveTo, KindAttack, KindPickup,
	KindUseItem, KindStartCataclysm, KindInspectItem, KindLootItem,
}

var kindNames = map[Kind]string{
	KindMove:           "move",
	KindMoveTo:         "move_to",
	KindAttack:         "attack",
	KindPickup:         "pickup",
	KindUseItem:        "use_item",
	KindStartCataclysm: "start_cataclysm",
	KindInspectItem:    "inspect_item",
	KindLootItem:       "loot_item",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind maps a wire name to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Command is implemented only by the types in this package.
type Command interface {
	Kind() Kind
	command()
}

// Direction is a single orthogonal step.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Delta returns the grid offset for d.
func (d Direction) Delta() (world.Pos, bool) {
	switch d {
	case Up:
		return world.Pos{Y: -1}, true
	case Down:
		return world.Pos{Y: 1}, true
	case Left:
		return world.Pos{X: -1}, true
	case Right:
		return world.Pos{X: 1}, true
	}
	return world.Pos{}, false
}

type Move struct{ Direction Direction }

// MoveTo plans a route; the movement system walks it one step per tick.
type MoveTo struct{ Target world.Pos }

type Attack struct{ Target world.Pos }

type Pickup struct{ ItemID string }

type UseItem struct{ ItemID string }

type StartCataclysm struct{}

// InspectItem starts revealing a hidden ground item.
type InspectItem struct{ ItemID string }

// LootItem is Pickup with a failure chance.
type LootItem struct{ ItemID string }

func (Move) Kind() Kind           { return KindMove }
func (MoveTo) Kind() Kind         { return KindMoveTo }
func (Attack) Kind() Kind         { return KindAttack }
func (Pickup) Kind() Kind         { return KindPickup }
func (UseItem) Kind() Kind        { return KindUseItem }
func (StartCataclysm) Kind() Kind { return KindStartCataclysm }
func (InspectItem) Kind() Kind    { return KindInspectItem }
func (LootItem) Kind() Kind       { return KindLootItem }

func (Move) command()           {}
func (MoveTo) command()         {}
func (Attack) command()         {}
func (Pickup) command()         {}
func (UseItem) command()        {}
func (StartCataclysm) command() {}
func (InspectItem) command()    {}
func (LootItem) command()       {}

// Result is the outcome reported to the requesting connection. Err carries
// the taxonomy error, if any, for logging and wire reason mapping.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func OK(msg string) Result { return Result{Success: true, Message: msg} }

// Fail builds a failed result whose message is the error text.
func Fail(err error) Result { return Result{Message: err.Error(), Err: err} }
