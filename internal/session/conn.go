package session

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/delta"
	"github.com/gridrealm/server/internal/protocol"
)

// State is a connection's position in the join lifecycle.
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Transport is the outbound half of a client connection. Send must not
// block: it enqueues and reports false when the connection is gone or its
// queue is full.
type Transport interface {
	Send(msg protocol.Message) bool
	Close()
	Closed() bool
}

// Conn is one client connection as the registry tracks it.
type Conn struct {
	id        string
	transport Transport
	limiter   *rate.Limiter

	// cmdMu serializes command handling with the post-join replay, so no
	// inbound command can overtake a queued one.
	cmdMu sync.Mutex

	mu       sync.Mutex
	state    State
	identity string
	playerID string
	queue    []command.Command
	baseline *delta.Snapshot

	// A leave sent during the join; it applies after the first leaveAt
	// queued commands.
	leaving bool
	leaveAt int
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PlayerID returns the bound player, or "" before the join completes.
func (c *Conn) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// Queued returns the number of commands waiting for the join to finish.
func (c *Conn) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Conn) Send(msg protocol.Message) bool {
	return c.transport.Send(msg)
}

// Baseline returns the join snapshot the delta broadcaster has not used yet.
func (c *Conn) Baseline() (delta.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.baseline == nil {
		return delta.Snapshot{}, false
	}
	return *c.baseline, true
}

func (c *Conn) ClearBaseline() {
	c.mu.Lock()
	c.baseline = nil
	c.mu.Unlock()
}

// beginAuth moves an unauthenticated connection into authenticating.
func (c *Conn) beginAuth(identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateAuthenticating, StateAuthenticated:
		return errAlreadyJoined
	case StateClosed:
		return ErrClosed
	}
	c.state = StateAuthenticating
	c.identity = identity
	return nil
}

// abortAuth reverts a failed join. Queued commands are discarded.
func (c *Conn) abortAuth() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticating {
		return
	}
	c.state = StateUnauthenticated
	c.identity = ""
	c.queue = nil
	c.leaving = false
}

// deferLeave records a leave that arrived during the join. It reports false
// when the connection is not authenticating.
func (c *Conn) deferLeave() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticating {
		return false
	}
	if !c.leaving {
		c.leaving = true
		c.leaveAt = len(c.queue)
	}
	return true
}

// pendingJoin is what a connection collected while authenticating.
type pendingJoin struct {
	queue   []command.Command
	leaving bool
	leaveAt int
}

// authenticate binds the player and returns what was queued during the
// join. It reports false if the connection closed in the meantime.
func (c *Conn) authenticate(playerID string, base *delta.Snapshot) (pendingJoin, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticating {
		return pendingJoin{}, false
	}
	c.state = StateAuthenticated
	c.playerID = playerID
	c.baseline = base
	pj := pendingJoin{queue: c.queue, leaving: c.leaving, leaveAt: c.leaveAt}
	c.queue = nil
	c.leaving = false
	return pj, true
}

// close marks the connection closed and returns what it was bound to.
func (c *Conn) close() (prev State, identity, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, identity, playerID = c.state, c.identity, c.playerID
	c.state = StateClosed
	c.queue = nil
	c.leaving = false
	c.baseline = nil
	return prev, identity, playerID
}

// unbind returns an authenticated connection to unauthenticated.
func (c *Conn) unbind() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return "", false
	}
	id := c.playerID
	c.state = StateUnauthenticated
	c.identity = ""
	c.playerID = ""
	c.baseline = nil
	return id, true
}
