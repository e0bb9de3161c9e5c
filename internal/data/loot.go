package data

import (
	"fmt"

	"github.com/gridrealm/server/internal/world"
)

// LootTable holds loot generation weights and naming words.
type LootTable struct {
	DropChance        float64                             `yaml:"drop_chance"`
	RarityWeights     map[string]map[world.Rarity]float64 `yaml:"rarity_weights"`
	RarityMultipliers map[world.Rarity]float64            `yaml:"rarity_multipliers"`
	CataclysmBonus    float64                             `yaml:"cataclysm_bonus"`
	Prefixes          map[world.Rarity][]string           `yaml:"prefixes"`
	TypeNames         map[world.ItemKind][]string         `yaml:"type_names"`
}

// LoadLootTable loads loot data. An empty path loads the built-in table.
func LoadLootTable(path string) (*LootTable, error) {
	var t LootTable
	if err := decode(path, "loot", &t); err != nil {
		return nil, err
	}
	for _, set := range []string{"normal", "cataclysm", "drop"} {
		if len(t.RarityWeights[set]) == 0 {
			return nil, fmt.Errorf("parse loot: rarity_weights.%s is empty", set)
		}
	}
	if t.DropChance < 0 || t.DropChance > 1 {
		return nil, fmt.Errorf("parse loot: drop_chance %.2f out of range", t.DropChance)
	}
	if t.CataclysmBonus <= 0 {
		t.CataclysmBonus = 1
	}
	return &t, nil
}

// Weights returns the rarity weights for a named set in rarity order,
// skipping rarities with no weight.
func (t *LootTable) Weights(set string) ([]world.Rarity, []float64) {
	var rs []world.Rarity
	var ws []float64
	for _, r := range world.Rarities {
		if w := t.RarityWeights[set][r]; w > 0 {
			rs = append(rs, r)
			ws = append(ws, w)
		}
	}
	return rs, ws
}

// Multiplier returns the stat multiplier for a rarity; unknown rarities get 1.
func (t *LootTable) Multiplier(r world.Rarity) float64 {
	if m, ok := t.RarityMultipliers[r]; ok && m > 0 {
		return m
	}
	return 1
}
