package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gridrealm/server/internal/cataclysm"
	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/data"
	"github.com/gridrealm/server/internal/delta"
	"github.com/gridrealm/server/internal/handler"
	"github.com/gridrealm/server/internal/logging"
	"github.com/gridrealm/server/internal/loot"
	gonet "github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/path"
	"github.com/gridrealm/server/internal/persist"
	"github.com/gridrealm/server/internal/protocol"
	"github.com/gridrealm/server/internal/scripting"
	"github.com/gridrealm/server/internal/session"
	"github.com/gridrealm/server/internal/spawn"
	"github.com/gridrealm/server/internal/system"
	"github.com/gridrealm/server/internal/world"
	"github.com/gridrealm/server/internal/worldgen"
)

func main() {
	cfgPath := flag.String("config", config.DefaultPath, "path to the TOML config file")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              GridRealm  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Printf("  \033[1m伺服器:\033[0m %s\n\n", name)
}

func printSection(title string) {
	width := 0
	for _, r := range title {
		if r > 0x7F {
			width += 2
		} else {
			width++
		}
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", max(3, 45-width)))
}

func printStat(label string, count int) {
	num := fmt.Sprintf("%d", count)
	width := 0
	for _, r := range label {
		if r > 0x7F {
			width += 2
		} else {
			width++
		}
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", max(3, 42-width-len(num))), num)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run(cfgPath string) error {
	// 1. Config and logger
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Optional journal database
	printSection("資料庫")
	var journal system.Journal = persist.Discard{}
	var db *persist.DB
	if cfg.Database.Enabled {
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err = persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		err = db.RunMigrations(dbCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		journal = persist.NewJournal(db, cfg.Database.BatchSize, log.Named("journal"))
		printOK("PostgreSQL 連線成功，遷移完成")
	} else {
		printOK("未啟用，日誌不落地")
	}
	fmt.Println()

	// 3. Data tables and scripts
	printSection("資料載入")
	terrain, err := data.LoadTerrainTable(cfg.Data.Terrain)
	if err != nil {
		return fmt.Errorf("load terrain: %w", err)
	}
	printStat("地形", terrain.Count())
	lootTable, err := data.LoadLootTable(cfg.Data.Loot)
	if err != nil {
		return fmt.Errorf("load loot: %w", err)
	}
	npcs, err := data.LoadNpcTable(cfg.Data.NPCs)
	if err != nil {
		return fmt.Errorf("load npcs: %w", err)
	}
	scripts, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scripts.Close()
	printOK("Lua 腳本載入完成")
	fmt.Println()

	// 4. World
	printSection("世界")
	seed := cfg.Server.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := worldgen.NewGenerator(terrain)
	store := system.NewWorld(cfg.World, seed, gen, log)
	arbiter := spawn.NewArbiter(store, cfg.World.SpawnSamples, cfg.World.DegradedThreshold, log.Named("spawn"))
	pop := spawn.NewPopulator(arbiter, npcs, log)
	printStat("NPC 生成", system.Populate(store, pop, cfg.World.NPCDensity))
	printStat("地圖大小", cfg.World.Width*cfg.World.Height)
	fmt.Println()

	bus := event.NewBus()
	planner := path.NewPlanner(cfg.World.MaxStep, cfg.World.PathNodeBudget, cfg.World.MaxPathDistance)
	lootGen := loot.NewGenerator(lootTable, terrain)
	ctl := cataclysm.NewController(cataclysm.Config{
		FirstShrinkTicks:    cfg.Cataclysm.FirstShrinkTicks,
		ShrinkIntervalTicks: cfg.Cataclysm.ShrinkIntervalTicks,
		RebirthTicks:        cfg.Cataclysm.RebirthTicks,
		NPCDensity:          cfg.World.NPCDensity,
		NPCRingFactor:       cfg.Cataclysm.NPCRingFactor,
		LootDensity:         cfg.Cataclysm.LootDensity,
		LootRingFactor:      cfg.Cataclysm.LootRingFactor,
	}, gen, lootGen, pop, arbiter, log.Named("cataclysm"))

	router := handler.NewRouter(&handler.Deps{
		Store:     store,
		Config:    cfg,
		Log:       log.Named("handler"),
		Planner:   planner,
		Scripting: scripts,
		Loot:      lootGen,
		Cataclysm: ctl,
		Bus:       bus,
	})
	registry := session.NewRegistry(session.Deps{
		Store:   store,
		Arbiter: arbiter,
		Router:  router,
		Bus:     bus,
		Config:  cfg.Session,
		Log:     log,
	})
	system.Subscribe(bus, registry, journal, log)

	// 5. Systems, in phase order
	runner := coresys.NewRunner()
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewMovementSystem(store, planner, cfg.World.MoveCooldownTicks))
	runner.Register(system.NewWanderSystem(store, planner, cfg.World.WanderEveryTicks, cfg.World.WanderChance))
	runner.Register(system.NewCataclysmSystem(store, ctl, bus, log))
	runner.Register(system.NewRevealSystem(store, cfg.Items.Reveal))
	if cfg.World.CheckInvariants {
		runner.Register(system.NewInvariantSystem(store))
	}
	runner.Register(system.NewDeltaSystem(store, delta.NewBroadcaster(), registry))
	journalSys := system.NewJournalSystem(journal, cfg.Database.FlushInterval, cfg.Network.TickInterval, log)
	runner.Register(journalSys)

	loop := system.NewLoop(store, runner, cfg.Network.TickInterval, log)
	sweeper := system.NewSweeper(registry, cfg.Session.SweepInterval, log.Named("sweeper"))

	// 6. Transport
	codec, err := protocol.NewCodec(cfg.Network.Codec)
	if err != nil {
		return err
	}
	server := gonet.NewServer(cfg.Network, codec, registry, func(h *gonet.Health) {
		store.View(func(w *world.World) { h.Tick = w.Tick() })
		h.Skipped = loop.Stats().Skipped
		if db != nil {
			h.Database = "ok"
			if err := db.Ping(ctx); err != nil {
				h.Status, h.Database = "degraded", "unreachable"
			}
		}
	}, log)

	printOK(fmt.Sprintf("伺服器就緒  %s", cfg.Network.BindAddress))
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	err = g.Wait()

	// Last events and journal rows before exit.
	runner.TickPhase(coresys.PhasePreUpdate, cfg.Network.TickInterval)
	journalSys.Flush(context.Background())
	log.Info("伺服器已關閉")
	return err
}
