package system

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	coresys "github.com/gridrealm/server/internal/core/system"
)

// flushTimeout bounds one journal flush so a slow database cannot stall the
// loop for more than a tick or two.
const flushTimeout = 2 * time.Second

// JournalSystem flushes the audit journal every interval ticks. Phase 5
// (Persist).
type JournalSystem struct {
	journal  Journal
	interval int
	counter  int
	log      *zap.Logger
}

// NewJournalSystem flushes at most every flushEvery, rounded to whole ticks.
func NewJournalSystem(journal Journal, flushEvery, tick time.Duration, log *zap.Logger) *JournalSystem {
	interval := 1
	if tick > 0 && flushEvery > tick {
		interval = int(flushEvery / tick)
	}
	return &JournalSystem{journal: journal, interval: interval, log: log}
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ time.Duration) error {
	s.counter++
	if s.counter < s.interval {
		return nil
	}
	s.counter = 0
	return s.Flush(context.Background())
}

// Flush writes everything pending now. Used by the tick and at shutdown.
// A failed write is kept for the next attempt and does not abort the tick.
func (s *JournalSystem) Flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	n, err := s.journal.Flush(ctx)
	if err != nil {
		s.log.Warn("日誌寫入失敗，下次重試", zap.Error(err))
		return nil
	}
	if n > 0 {
		s.log.Debug(fmt.Sprintf("日誌已寫入  rows=%d", n))
	}
	return nil
}
