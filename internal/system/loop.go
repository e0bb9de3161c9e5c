// Package system holds the game loop and the per-tick systems it runs.
package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/world"
)

// statsEvery is how often, in world ticks, the loop logs its stats.
const statsEvery = 300

// Stats describes the loop's recent behavior, for health checks and logs.
type Stats struct {
	Ticks     uint64        `json:"ticks"`   // ticks that advanced the world
	Skipped   uint64        `json:"skipped"` // ticks skipped with nobody connected
	Errors    uint64        `json:"errors"`
	LastTick  time.Time     `json:"lastTick"`
	AvgUpdate time.Duration `json:"avgUpdate"` // moving average, weight 0.1
}

// Loop drives the fixed-cadence tick. It runs independently of command
// arrival; commands take the store lock between systems.
type Loop struct {
	store    *world.Store
	runner   *coresys.Runner
	interval time.Duration
	log      *zap.Logger

	mu    sync.Mutex
	stats Stats
}

func NewLoop(store *world.Store, runner *coresys.Runner, interval time.Duration, log *zap.Logger) *Loop {
	return &Loop{store: store, runner: runner, interval: interval, log: log}
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	l.log.Info(fmt.Sprintf("遊戲迴圈啟動  tick=%s", l.interval))
	for {
		select {
		case <-ctx.Done():
			s := l.Stats()
			l.log.Info(fmt.Sprintf("遊戲迴圈停止  ticks=%d  skipped=%d  errors=%d", s.Ticks, s.Skipped, s.Errors))
			return nil
		case now := <-ticker.C:
			l.Tick(now)
		}
	}
}

// Tick runs one tick. With nobody connected the world does not advance;
// only last tick's events are still delivered. An error means the tick was
// aborted part way and nothing was broadcast.
func (l *Loop) Tick(now time.Time) error {
	start := time.Now()
	var connected int
	l.store.View(func(w *world.World) { connected = w.ConnectedCount() })

	if connected == 0 {
		err := l.runner.TickPhase(coresys.PhasePreUpdate, l.interval)
		l.record(now, start, false, err)
		if err != nil {
			l.log.Error("閒置事件派送失敗", zap.Error(err))
		}
		return err
	}

	var tick uint64
	l.store.Update(func(w *world.World) error {
		tick = w.AdvanceTick()
		return nil
	})
	err := l.runner.Tick(l.interval)
	if err != nil {
		l.log.Error(fmt.Sprintf("本輪更新中止  tick=%d", tick), zap.Error(err))
	}
	s := l.record(now, start, true, err)
	if s.Ticks%statsEvery == 0 {
		l.log.Debug(fmt.Sprintf("迴圈統計  ticks=%d  skipped=%d  errors=%d  avg=%s  players=%d",
			s.Ticks, s.Skipped, s.Errors, s.AvgUpdate, connected))
	}
	return err
}

func (l *Loop) record(now, start time.Time, advanced bool, err error) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.LastTick = now
	if advanced {
		l.stats.Ticks++
		took := time.Since(start)
		if l.stats.AvgUpdate == 0 {
			l.stats.AvgUpdate = took
		} else {
			l.stats.AvgUpdate = time.Duration(float64(l.stats.AvgUpdate)*0.9 + float64(took)*0.1)
		}
	} else {
		l.stats.Skipped++
	}
	if err != nil {
		l.stats.Errors++
	}
	return l.stats
}

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
