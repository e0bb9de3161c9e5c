package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Journal entry kinds.
const (
	KindJoin       = "join"
	KindRejoin     = "rejoin"
	KindLeave      = "leave"
	KindDisconnect = "disconnect"
	KindDefeat     = "defeat"
	KindLevelUp    = "level_up"
	KindLoot       = "loot"
	KindCataclysm  = "cataclysm"
)

// Entry is one audit row.
type Entry struct {
	At       time.Time
	Kind     string
	PlayerID string
	Detail   string
	Tick     uint64
}

var journalColumns = []string{"at", "kind", "player_id", "detail", "tick"}

// copier is the slice of pgxpool.Pool the journal writes through.
type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Journal buffers session and game events in memory and writes them to
// session_journal in COPY batches. Recording never blocks on the database;
// past the buffer limit the oldest rows are dropped.
type Journal struct {
	db    copier
	batch int
	limit int
	log   *zap.Logger

	mu      sync.Mutex
	buf     []Entry
	dropped uint64
}

func NewJournal(db *DB, batchSize int, log *zap.Logger) *Journal {
	return newJournal(db.Pool, batchSize, log)
}

func newJournal(db copier, batchSize int, log *zap.Logger) *Journal {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Journal{db: db, batch: batchSize, limit: batchSize * 10, log: log}
}

func (j *Journal) Record(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.buf) >= j.limit {
		j.buf = j.buf[1:]
		j.dropped++
	}
	j.buf = append(j.buf, e)
}

// Pending returns the number of buffered rows.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.buf)
}

// Dropped returns how many rows were discarded because the buffer was full.
func (j *Journal) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// Flush writes buffered rows in batches. Rows of a failed batch go back to
// the front of the buffer for the next flush.
func (j *Journal) Flush(ctx context.Context) (int, error) {
	j.mu.Lock()
	rows := j.buf
	j.buf = nil
	j.mu.Unlock()

	written := 0
	for len(rows) > 0 {
		n := min(j.batch, len(rows))
		chunk := rows[:n]
		_, err := j.db.CopyFrom(ctx, pgx.Identifier{"session_journal"}, journalColumns,
			pgx.CopyFromSlice(len(chunk), func(i int) ([]any, error) {
				e := chunk[i]
				return []any{e.At, e.Kind, e.PlayerID, e.Detail, int64(e.Tick)}, nil
			}))
		if err != nil {
			j.requeue(rows)
			return written, fmt.Errorf("journal copy: %w", err)
		}
		written += n
		rows = rows[n:]
	}
	return written, nil
}

func (j *Journal) requeue(rows []Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	merged := append(append(make([]Entry, 0, len(rows)+len(j.buf)), rows...), j.buf...)
	if over := len(merged) - j.limit; over > 0 {
		merged = merged[over:]
		j.dropped += uint64(over)
	}
	j.buf = merged
	j.log.Warn(fmt.Sprintf("日誌寫入失敗，保留待重送  rows=%d  dropped=%d", len(merged), j.dropped))
}

// Discard is the journal used when no database is configured.
type Discard struct{}

func (Discard) Record(Entry) {}

func (Discard) Flush(context.Context) (int, error) { return 0, nil }
