package delta

import (
	"sync"

	"github.com/gridrealm/server/internal/protocol"
)

// Client is one authenticated connection as the broadcaster sees it.
type Client interface {
	// Baseline returns the snapshot the client received in its game_joined
	// message until ClearBaseline is called.
	Baseline() (Snapshot, bool)
	ClearBaseline()
	Send(msg protocol.Message) bool
}

// Broadcaster holds the snapshot sent on the previous tick.
type Broadcaster struct {
	mu   sync.Mutex
	prev Snapshot
	sent uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Broadcast diffs cur against the previous snapshot and sends the result to
// every client, then makes cur the previous snapshot. A client that joined
// since the last broadcast is diffed against its own join baseline instead,
// so it never receives an entity it already has. A baseline read at a later
// store revision than cur is kept for the next broadcast and the client gets
// nothing this time. Returns the number of delta messages sent.
func (b *Broadcaster) Broadcast(cur Snapshot, clients []Client) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	shared := Diff(b.prev, cur)
	b.prev = cur

	n := 0
	for _, c := range clients {
		deltas := shared
		if base, ok := c.Baseline(); ok {
			if base.Rev > cur.Rev {
				continue
			}
			c.ClearBaseline()
			deltas = Diff(base, cur)
		}
		if len(deltas) == 0 {
			continue
		}
		if c.Send(protocol.Message{Type: protocol.TypeGameStateDelta, Payload: deltas}) {
			n++
		}
	}
	b.sent += uint64(n)
	return n
}

// Sent returns the total number of delta messages delivered.
func (b *Broadcaster) Sent() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent
}
