package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCopier struct {
	fail    error
	batches [][][]any
}

func (f *fakeCopier) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if f.fail != nil {
		return 0, f.fail
	}
	var rows [][]any
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		rows = append(rows, vals)
	}
	f.batches = append(f.batches, rows)
	return int64(len(rows)), nil
}

func entry(kind, player string) Entry {
	return Entry{At: time.Unix(10, 0), Kind: kind, PlayerID: player, Tick: 3}
}

func TestJournalFlushesInBatches(t *testing.T) {
	db := &fakeCopier{}
	j := newJournal(db, 2, zap.NewNop())
	for _, p := range []string{"a", "b", "c"} {
		j.Record(entry(KindJoin, p))
	}
	assert.Equal(t, 3, j.Pending())

	n, err := j.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, j.Pending())
	require.Len(t, db.batches, 2)
	assert.Len(t, db.batches[0], 2)
	assert.Equal(t, []any{time.Unix(10, 0), KindJoin, "c", "", int64(3)}, db.batches[1][0])
}

func TestJournalRequeuesOnFailure(t *testing.T) {
	db := &fakeCopier{fail: errors.New("connection refused")}
	j := newJournal(db, 10, zap.NewNop())
	j.Record(entry(KindLeave, "a"))

	_, err := j.Flush(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, j.Pending())

	db.fail = nil
	n, err := j.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJournalDropsOldestPastLimit(t *testing.T) {
	j := newJournal(&fakeCopier{}, 1, zap.NewNop())
	for i := 0; i < 12; i++ {
		j.Record(entry(KindLoot, "a"))
	}
	assert.Equal(t, 10, j.Pending())
	assert.EqualValues(t, 2, j.Dropped())
}

func TestRecordStampsTime(t *testing.T) {
	db := &fakeCopier{}
	j := newJournal(db, 10, zap.NewNop())
	j.Record(Entry{Kind: KindDefeat})
	_, err := j.Flush(context.Background())
	require.NoError(t, err)
	at := db.batches[0][0][0].(time.Time)
	assert.False(t, at.IsZero())
}
