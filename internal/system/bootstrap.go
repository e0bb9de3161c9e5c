package system

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/spawn"
	"github.com/gridrealm/server/internal/world"
	"github.com/gridrealm/server/internal/worldgen"
)

// NewWorld generates the terrain and wraps it in a store. The same seed
// produces the same grid and the same NPC rolls.
func NewWorld(cfg config.WorldConfig, seed int64, terrain *worldgen.Generator, log *zap.Logger) *world.Store {
	grid := terrain.InitializeGrid(cfg.Width, cfg.Height, rand.New(rand.NewSource(seed)))
	log.Info(fmt.Sprintf("地圖生成完成  size=%dx%d  seed=%d  disallowed=%.2f",
		cfg.Width, cfg.Height, seed, grid.DisallowedFraction()))
	return world.NewStore(grid, seed)
}

// Populate places the starting NPCs. Runs once, before the loop starts.
func Populate(store *world.Store, pop *spawn.Populator, density float64) int {
	var n int
	store.Update(func(w *world.World) error {
		n = pop.PopulateIn(w, density)
		return nil
	})
	return n
}
