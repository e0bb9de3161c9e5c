package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestCalcDamageMatchesGoFormula(t *testing.T) {
	e := newEngine(t, "")
	cases := []struct {
		name string
		att  Combatant
		def  Combatant
		r    Rolls
		want int
	}{
		{"mage vs rogue", Combatant{Attack: 30}, Combatant{Defense: 10, Terrain: "plain"}, Rolls{Spread: 1}, 7},
		{"mage vs weak", Combatant{Attack: 30}, Combatant{Defense: 5, Terrain: "plain"}, Rolls{Spread: 1}, 18},
		{"crit", Combatant{Attack: 30}, Combatant{Defense: 5, Terrain: "plain"}, Rolls{Crit: true, Spread: 1}, 36},
		{"forest cover", Combatant{Attack: 30}, Combatant{Defense: 5, Terrain: "forest"}, Rolls{Spread: 1}, 16},
		{"min damage", Combatant{Attack: 15}, Combatant{Defense: 20}, Rolls{Spread: 1}, 5},
		{"max damage", Combatant{Attack: 100}, Combatant{}, Rolls{Crit: true, Spread: 1.1}, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.CalcDamage(tc.att, tc.def, tc.r))
			assert.Equal(t, tc.want, goDamage(tc.att, tc.def, tc.r))
		})
	}
}

func TestLevelCurve(t *testing.T) {
	e := newEngine(t, "")
	assert.Equal(t, 100, e.ExpForLevel(1))
	assert.Equal(t, 300, e.ExpForLevel(3))
	assert.Equal(t, 2, e.LevelUpStat(2))
	assert.Equal(t, 2, e.LevelUpStat(3))
	assert.Equal(t, 3, e.LevelUpStat(4))
}

func TestOverrideScriptReplacesFunction(t *testing.T) {
	dir := t.TempDir()
	src := "function calc_damage(ctx) return 42 end\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "override.lua"), []byte(src), 0o644))
	e := newEngine(t, dir)
	assert.Equal(t, 42, e.CalcDamage(Combatant{Attack: 1}, Combatant{}, Rolls{Spread: 1}))
}

func TestBrokenScriptFallsBackToGo(t *testing.T) {
	dir := t.TempDir()
	src := "function calc_damage(ctx) error('boom') end\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.lua"), []byte(src), 0o644))
	e := newEngine(t, dir)
	assert.Equal(t, 18, e.CalcDamage(Combatant{Attack: 30}, Combatant{Defense: 5}, Rolls{Spread: 1}))
}

func TestSyntaxErrorFailsLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("function ("), 0o644))
	_, err := NewEngine(dir, zap.NewNop())
	assert.Error(t, err)
}
