package world

// ItemKind is the broad item category.
type ItemKind string

const (
	ItemWeapon     ItemKind = "weapon"
	ItemArmor      ItemKind = "armor"
	ItemConsumable ItemKind = "consumable"
)

// Rarity drives loot weighting and reveal time.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Rarities lists every rarity from most to least common.
var Rarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary}

// ItemStats are the bonuses an item grants. HP on a consumable is a heal.
type ItemStats struct {
	Attack  int `json:"attack,omitempty"`
	Defense int `json:"defense,omitempty"`
	HP      int `json:"hp,omitempty"`
}

// Item is either on the ground (Pos != nil) or in a player's inventory
// (OwnerID set, Pos nil). Not persisted; exists only in memory.
//
// Ground items spawn hidden. inspect_item starts the reveal; the reveal
// system advances RevealProgress each tick and marks the item lootable at 1.0.
type Item struct {
	ID          string
	Name        string
	Kind        ItemKind
	Rarity      Rarity
	Description string
	Stats       ItemStats
	Pos         *Pos
	OwnerID     string

	Hidden          bool
	Revealing       bool
	RevealStartTick uint64
	RevealProgress  float64
	Lootable        bool

	// LootBlockedUntil is the tick after a failed loot attempt when the item
	// can be tried again.
	LootBlockedUntil uint64
}

// At returns the item's ground position and whether it is on the ground.
func (it *Item) At() (Pos, bool) {
	if it.Pos == nil {
		return Pos{}, false
	}
	return *it.Pos, true
}

// StartReveal begins the timed reveal of a hidden item.
func (it *Item) StartReveal(tick uint64) {
	it.Hidden = false
	it.Revealing = true
	it.RevealStartTick = tick
	it.RevealProgress = 0
	it.Lootable = false
}

// AdvanceReveal updates the reveal progress for tick given the rarity's
// reveal duration in ticks. Returns true when the item just became lootable.
func (it *Item) AdvanceReveal(tick, duration uint64) bool {
	if !it.Revealing {
		return false
	}
	if duration == 0 || tick-it.RevealStartTick >= duration {
		it.RevealProgress = 1
		it.Revealing = false
		it.Lootable = true
		return true
	}
	it.RevealProgress = float64(tick-it.RevealStartTick) / float64(duration)
	return false
}

// Revealed reports whether the item can be picked up at tick.
func (it *Item) Revealed() bool {
	return !it.Hidden && it.RevealProgress >= 1
}
