package system

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/session"
)

// Reaper is the part of the session registry the sweeper drives.
type Reaper interface {
	ReapStale(now time.Time) session.SweepReport
}

// Sweeper reaps stale connections and idle players on its own cadence,
// outside the tick.
type Sweeper struct {
	reaper   Reaper
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewSweeper(reaper Reaper, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{reaper: reaper, interval: interval, now: time.Now, log: log}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass and logs what it found.
func (s *Sweeper) Sweep() session.SweepReport {
	rep := s.reaper.ReapStale(s.now())
	if rep.Connections > 0 || rep.Ghosts > 0 || rep.AFK > 0 || len(rep.Removed) > 0 {
		s.log.Info(fmt.Sprintf("清理完成  connections=%d  ghosts=%d  afk=%d  removed=%d",
			rep.Connections, rep.Ghosts, rep.AFK, len(rep.Removed)))
	}
	return rep
}
