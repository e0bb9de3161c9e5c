package data

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrealm/server/internal/world"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestBuiltinTablesLoad(t *testing.T) {
	terrain, err := LoadTerrainTable("")
	require.NoError(t, err)
	assert.Equal(t, "plain", terrain.Default().Name)
	assert.True(t, terrain.Default().Tile().Spawnable)
	mountain := terrain.Get("mountain")
	require.NotNil(t, mountain)
	assert.False(t, mountain.Tile().Passable)

	_, err = LoadLootTable("")
	require.NoError(t, err)
	_, err = LoadNpcTable("")
	require.NoError(t, err)
}

func TestTerrainOverrideValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "terrain: []\n", "no terrain types"},
		{"impassable default", "default: rock\nterrain:\n  - name: rock\n    impassable: true\n", "impassable"},
		{"unknown mutation", "terrain:\n  - name: plain\nmutations:\n  plain: [lava]\n", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTerrainTable(writeFile(t, "terrain.yaml", tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMissingOverrideFile(t *testing.T) {
	_, err := LoadNpcTable(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "read npcs"))
}

func TestNpcProfileFallback(t *testing.T) {
	npcs, err := LoadNpcTable("")
	require.NoError(t, err)
	assert.Equal(t, npcs.Profiles["world"], npcs.Profile("dungeon"))

	rng := rand.New(rand.NewSource(1))
	name := npcs.Name(rng)
	assert.Len(t, strings.Fields(name), 2)
}

func TestStatRangeRoll(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		v := StatRange{3, 7}.Roll(rng)
		assert.GreaterOrEqual(t, v, 3)
		assert.Less(t, v, 7)
	}
	assert.Equal(t, 5, StatRange{5, 5}.Roll(rng))
}

func TestLootWeightsInRarityOrder(t *testing.T) {
	lt, err := LoadLootTable("")
	require.NoError(t, err)
	rs, ws := lt.Weights("normal")
	assert.Equal(t, []world.Rarity{world.RarityCommon, world.RarityUncommon, world.RarityRare, world.RarityEpic}, rs)
	assert.Equal(t, []float64{60, 30, 9, 1}, ws)
	assert.Equal(t, 1.0, lt.Multiplier(world.Rarity("mythic")))
}
