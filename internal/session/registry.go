// Package session owns the connection lifecycle: joins, the command gate
// that keeps commands from racing a join, disconnects and stale cleanup.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/core/event"
	"github.com/gridrealm/server/internal/delta"
	"github.com/gridrealm/server/internal/protocol"
	"github.com/gridrealm/server/internal/spawn"
	"github.com/gridrealm/server/internal/world"
)

var (
	ErrClosed      = errors.New("connection closed")
	ErrRateLimited = errors.New("too many commands")

	errAlreadyJoined = fmt.Errorf("connection already joined: %w", world.ErrDuplicateJoin)
)

// Reasons recorded on PlayerLeft.
const (
	LeftByRequest = "leave"
	LeftIdle      = "idle"
)

// Disposition is what HandleCommand did with a command.
type Disposition int

const (
	Rejected Disposition = iota
	Queued
	Dispatched
)

func (d Disposition) String() string {
	switch d {
	case Queued:
		return "queued"
	case Dispatched:
		return "dispatched"
	}
	return "rejected"
}

// Dispatcher applies one command for a bound player.
type Dispatcher interface {
	Dispatch(playerID string, cmd command.Command) command.Result
}

// Deps holds the registry's collaborators.
type Deps struct {
	Store   *world.Store
	Arbiter *spawn.Arbiter
	Router  Dispatcher
	Bus     *event.Bus
	Config  config.SessionConfig
	Log     *zap.Logger
	Now     func() time.Time // nil = time.Now
}

// Joined is a committed join waiting for CompleteJoin.
type Joined struct {
	Player world.PlayerView
	Rejoin bool
}

// Registry maps connections to players. Lock order: a connection's command
// lock, the store lock, the registry lock, then the connection's state lock.
type Registry struct {
	deps Deps
	log  *zap.Logger

	mu      sync.Mutex
	conns   map[string]*Conn // by connection id
	players map[string]*Conn // by bound player id
	pending map[string]*Conn // identities claimed by an in-flight join
}

func NewRegistry(deps Deps) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Registry{
		deps:    deps,
		log:     deps.Log.Named("session"),
		conns:   make(map[string]*Conn),
		players: make(map[string]*Conn),
		pending: make(map[string]*Conn),
	}
}

// Open registers a new, unauthenticated connection.
func (r *Registry) Open(t Transport) *Conn {
	cfg := r.deps.Config
	c := &Conn{
		id:        uuid.NewString(),
		transport: t,
		limiter:   rate.NewLimiter(rate.Every(cfg.RateWindow/time.Duration(cfg.RateEvents)), cfg.RateEvents),
	}
	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()
	r.log.Debug(fmt.Sprintf("連線建立  conn=%s", c.id))
	return c
}

// Join runs a whole join on the calling goroutine and reports the outcome to
// the connection.
func (r *Registry) Join(c *Conn, req protocol.JoinRequest) error {
	j, err := r.BeginJoin(c, req)
	if err != nil {
		c.Send(protocol.Error(err))
		return err
	}
	r.CompleteJoin(c, j)
	return nil
}

// JoinAsync puts the connection into authenticating before returning, then
// runs the spawn search on its own goroutine. Commands the client sends
// right after its join are therefore always queued, never rejected. done,
// if set, is called with the outcome.
func (r *Registry) JoinAsync(c *Conn, req protocol.JoinRequest, done func(error)) {
	finish := func(err error) {
		if err != nil {
			c.Send(protocol.Error(err))
		}
		if done != nil {
			done(err)
		}
	}
	identity, err := r.admit(c, req)
	if err != nil {
		finish(err)
		return
	}
	go func() {
		j, err := r.spawn(c, identity, req)
		if err == nil {
			r.CompleteJoin(c, j)
		}
		finish(err)
	}()
}

// BeginJoin claims the identity, enters authenticating and commits the
// player to the world, either freshly spawned or re-attached if the identity
// still has a disconnected player. On failure nothing is left behind and
// the connection is unauthenticated again.
func (r *Registry) BeginJoin(c *Conn, req protocol.JoinRequest) (Joined, error) {
	identity, err := r.admit(c, req)
	if err != nil {
		return Joined{}, err
	}
	return r.spawn(c, identity, req)
}

// admit is the synchronous half of a join: state transition and identity
// claim.
func (r *Registry) admit(c *Conn, req protocol.JoinRequest) (string, error) {
	identity, err := NormalizeIdentity(req.Identity)
	if err != nil {
		return "", err
	}
	if err := c.beginAuth(identity); err != nil {
		return "", err
	}
	if err := r.claim(c, identity); err != nil {
		c.abortAuth()
		return "", err
	}
	return identity, nil
}

// claim reserves identity for c. A mapping whose transport is already gone
// is stale and gets reaped here instead of blocking the join.
func (r *Registry) claim(c *Conn, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if other, ok := r.pending[identity]; ok && other != c {
		return world.ErrDuplicateJoin
	}
	if other, ok := r.players[identity]; ok {
		if !other.transport.Closed() {
			return world.ErrDuplicateJoin
		}
		delete(r.players, identity)
		delete(r.conns, other.id)
		other.close()
		r.log.Info(fmt.Sprintf("清除殘留連線對應  player=%s  conn=%s", identity, other.id))
	}
	r.pending[identity] = c
	return nil
}

func (r *Registry) unclaim(c *Conn, identity string) {
	r.mu.Lock()
	if r.pending[identity] == c {
		delete(r.pending, identity)
	}
	r.mu.Unlock()
}

// spawn commits the player for a claimed identity.
func (r *Registry) spawn(c *Conn, identity string, req protocol.JoinRequest) (Joined, error) {
	j, err := r.commit(identity, req)
	if err != nil {
		r.unclaim(c, identity)
		c.abortAuth()
		r.log.Info(fmt.Sprintf("加入失敗  conn=%s  identity=%s  err=%v", c.id, identity, err))
		return Joined{}, err
	}
	return j, nil
}

func (r *Registry) commit(identity string, req protocol.JoinRequest) (Joined, error) {
	now := r.deps.Now()
	var j Joined
	var found bool
	r.deps.Store.Update(func(w *world.World) error {
		p := w.Player(identity)
		if p == nil {
			return nil
		}
		found = true
		p.Connected = true
		p.DisconnectedAt = time.Time{}
		p.Touch(now)
		j = Joined{Player: p.View(), Rejoin: true}
		return nil
	})
	if found {
		return j, nil
	}

	res, ok := r.deps.Arbiter.FindAndReserve()
	if !ok {
		return Joined{}, world.ErrNoSpawnAvailable
	}
	name := req.DisplayName
	if name == "" {
		name = req.Identity
	}
	err := r.deps.Store.Update(func(w *world.World) error {
		res.ReleaseIn(w)
		p := world.NewPlayer(identity, name, world.ParseClass(req.Class), res.Pos, now)
		if err := w.AddPlayer(p); err != nil {
			return err
		}
		j = Joined{Player: p.View()}
		return nil
	})
	if err != nil {
		res.Release()
		return Joined{}, err
	}
	if res.Degraded {
		r.log.Warn(fmt.Sprintf("玩家出生於不可出生地形  player=%s  pos=%s", identity, res.Pos))
	}
	return j, nil
}

// CompleteJoin authenticates the connection, sends game_joined and replays
// the commands queued during the join in arrival order. A leave queued
// during the join applies at its place in that order; commands after it are
// rejected. The command lock is held throughout so a command arriving now
// waits behind the replay.
func (r *Registry) CompleteJoin(c *Conn, j Joined) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	id := j.Player.ID
	var snap world.Snapshot
	view := j.Player
	r.deps.Store.View(func(w *world.World) {
		snap = w.Snapshot()
		if p := w.Player(id); p != nil {
			view = p.View()
		}
	})
	base := delta.CaptureJoin(snap)

	r.mu.Lock()
	if r.pending[id] == c {
		delete(r.pending, id)
	}
	pj, ok := c.authenticate(id, &base)
	orphaned := false
	if ok {
		r.players[id] = c
	} else {
		orphaned = r.players[id] == nil && r.pending[id] == nil
	}
	r.mu.Unlock()

	if !ok {
		// The connection dropped during the spawn search. Unless another
		// connection has claimed the identity since, the player waits for
		// a rejoin or the sweeper.
		if orphaned {
			r.markDisconnected(id)
		}
		r.log.Info(fmt.Sprintf("加入完成前連線中斷  player=%s  conn=%s", id, c.id))
		return
	}

	c.Send(protocol.Message{Type: protocol.TypeGameJoined, Payload: protocol.GameJoined{Player: view, World: snap}})
	r.broadcast(c, protocol.Message{Type: protocol.TypePlayerJoined, Payload: protocol.PlayerJoinedPayload{Player: view}})
	event.Emit(r.deps.Bus, event.PlayerJoined{PlayerID: id, ConnID: c.id, Rejoin: j.Rejoin})
	r.log.Info(fmt.Sprintf("玩家加入  player=%s  conn=%s  pos=%s  rejoin=%t  queued=%d",
		id, c.id, view.Position, j.Rejoin, len(pj.queue)))

	for i, cmd := range pj.queue {
		if pj.leaving && i == pj.leaveAt {
			r.leave(c)
		}
		if pj.leaving && i >= pj.leaveAt {
			c.Send(protocol.Error(world.ErrNotAuthenticated))
			continue
		}
		r.dispatch(c, id, cmd)
	}
	if pj.leaving && pj.leaveAt >= len(pj.queue) {
		r.leave(c)
	}
}

// HandleCommand gates one inbound command on the connection's state.
func (r *Registry) HandleCommand(c *Conn, cmd command.Command) (Disposition, error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if !c.limiter.Allow() {
		c.Send(protocol.Message{Type: protocol.TypeRateLimit, Payload: protocol.RateLimited{Message: "Too many commands. Please slow down."}})
		return Rejected, ErrRateLimited
	}

	c.mu.Lock()
	switch c.state {
	case StateAuthenticating:
		c.queue = append(c.queue, cmd)
		c.mu.Unlock()
		return Queued, nil
	case StateAuthenticated:
		id := c.playerID
		c.mu.Unlock()
		r.dispatch(c, id, cmd)
		return Dispatched, nil
	}
	c.mu.Unlock()
	c.Send(protocol.Error(world.ErrNotAuthenticated))
	return Rejected, world.ErrNotAuthenticated
}

func (r *Registry) dispatch(c *Conn, playerID string, cmd command.Command) {
	res := r.deps.Router.Dispatch(playerID, cmd)
	c.Send(protocol.Result(res))
}

// OnDisconnect closes the connection. The player stays in the world,
// disconnected, until it rejoins or the sweeper removes it. Calling it again
// for the same connection does nothing.
func (r *Registry) OnDisconnect(c *Conn) {
	prev, identity, playerID := c.close()
	if prev == StateClosed {
		return
	}
	c.transport.Close()

	r.mu.Lock()
	delete(r.conns, c.id)
	if r.players[playerID] == c {
		delete(r.players, playerID)
	}
	if r.pending[identity] == c {
		delete(r.pending, identity)
	}
	r.mu.Unlock()

	if prev != StateAuthenticated {
		return
	}
	r.markDisconnected(playerID)
	r.broadcast(nil, protocol.Message{Type: protocol.TypePlayerDisconnected, Payload: protocol.PlayerRef{PlayerID: playerID}})
	event.Emit(r.deps.Bus, event.PlayerDisconnected{PlayerID: playerID, ConnID: c.id})
	r.log.Info(fmt.Sprintf("玩家斷線  player=%s  conn=%s", playerID, c.id))
}

func (r *Registry) markDisconnected(playerID string) {
	now := r.deps.Now()
	r.deps.Store.Update(func(w *world.World) error {
		if p := w.Player(playerID); p != nil {
			p.Connected = false
			p.DisconnectedAt = now
			p.ClearPath()
		}
		return nil
	})
}

// Leave removes the connection's player from the world. The connection
// stays open and may join again. A leave during a join is held until the
// join completes. Leaving twice is a no-op.
func (r *Registry) Leave(c *Conn) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if c.deferLeave() {
		r.log.Debug(fmt.Sprintf("加入進行中，離開延後  conn=%s", c.id))
		return
	}
	r.leave(c)
}

// leave runs with the connection's command lock held.
func (r *Registry) leave(c *Conn) {
	id, ok := c.unbind()
	if !ok {
		return
	}
	r.mu.Lock()
	if r.players[id] == c {
		delete(r.players, id)
	}
	r.mu.Unlock()
	r.remove([]string{id}, LeftByRequest)
}

// remove drops players from the world and tells everyone.
func (r *Registry) remove(ids []string, reason string) {
	var gone []string
	r.deps.Store.Update(func(w *world.World) error {
		for _, id := range ids {
			if w.RemovePlayer(id) != nil {
				gone = append(gone, id)
			}
		}
		return nil
	})
	r.announceLeft(gone, reason)
}

// announceLeft tells every connection that ids are gone. An identity that a
// join has claimed again since the removal is skipped: that join announces
// the new player itself, and holding the registry lock here keeps it from
// completing halfway through.
func (r *Registry) announceLeft(ids []string, reason string) {
	if len(ids) == 0 {
		return
	}
	r.mu.Lock()
	for _, id := range ids {
		if r.players[id] != nil || r.pending[id] != nil {
			continue
		}
		msg := protocol.Message{Type: protocol.TypePlayerLeft, Payload: protocol.PlayerRef{PlayerID: id}}
		for _, c := range r.players {
			c.Send(msg)
		}
	}
	r.mu.Unlock()
	for _, id := range ids {
		event.Emit(r.deps.Bus, event.PlayerLeft{PlayerID: id, Reason: reason})
		r.log.Info(fmt.Sprintf("玩家離開  player=%s  reason=%s", id, reason))
	}
}

// SweepReport summarizes one ReapStale pass.
type SweepReport struct {
	Connections int      // connections whose transport had already closed
	Ghosts      int      // connected players with no live connection
	AFK         int      // live connections closed for inactivity
	Removed     []string // players removed after idling out
}

// ReapStale closes connections whose transport is gone, marks players with
// no live connection as disconnected, closes connections whose player sent
// nothing for the AFK timeout, and removes players that stayed disconnected
// for the idle timeout, freeing their cells.
func (r *Registry) ReapStale(now time.Time) SweepReport {
	var rep SweepReport

	r.mu.Lock()
	var dead []*Conn
	for _, c := range r.conns {
		if c.transport.Closed() {
			dead = append(dead, c)
		}
	}
	r.mu.Unlock()
	for _, c := range dead {
		r.OnDisconnect(c)
	}
	rep.Connections = len(dead)

	idle, afk := r.deps.Config.IdleTimeout, r.deps.Config.AFKTimeout
	var expired []string
	var inactive []*Conn
	r.deps.Store.Update(func(w *world.World) error {
		// A rejoin needs this lock to re-attach its player, so a player
		// that is unclaimed here is still unclaimed when it is removed.
		for _, p := range w.Players() {
			c, claimed := r.owner(p.ID)
			if claimed {
				if c != nil && afk > 0 && now.Sub(p.LastActive) >= afk {
					inactive = append(inactive, c)
				}
				continue
			}
			if p.Connected {
				p.Connected = false
				p.DisconnectedAt = now
				p.ClearPath()
				rep.Ghosts++
				continue
			}
			if now.Sub(p.DisconnectedAt) >= idle {
				w.RemovePlayer(p.ID)
				expired = append(expired, p.ID)
			}
		}
		return nil
	})
	r.announceLeft(expired, LeftIdle)
	rep.Removed = expired

	for _, c := range inactive {
		r.log.Info(fmt.Sprintf("閒置過久，斷開連線  player=%s  conn=%s", c.PlayerID(), c.id))
		c.Send(protocol.Error(protocol.ErrInactive))
		r.OnDisconnect(c)
	}
	rep.AFK = len(inactive)

	if rep.Connections > 0 || rep.Ghosts > 0 || rep.AFK > 0 || len(rep.Removed) > 0 {
		r.log.Info(fmt.Sprintf("過期連線清理  conns=%d  ghosts=%d  afk=%d  removed=%d",
			rep.Connections, rep.Ghosts, rep.AFK, len(rep.Removed)))
	}
	return rep
}

// owner reports whether playerID is bound or claimed by a join in flight,
// and the authenticated connection if there is one.
func (r *Registry) owner(playerID string) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.players[playerID]
	return c, c != nil || r.pending[playerID] != nil
}

// Broadcast sends msg to every authenticated connection.
func (r *Registry) Broadcast(msg protocol.Message) {
	r.broadcast(nil, msg)
}

func (r *Registry) broadcast(except *Conn, msg protocol.Message) {
	for _, c := range r.authenticated() {
		if c != except {
			c.Send(msg)
		}
	}
}

func (r *Registry) authenticated() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Conn, 0, len(r.players))
	for _, c := range r.players {
		out = append(out, c)
	}
	return out
}

// Clients returns the authenticated connections for the delta broadcaster.
func (r *Registry) Clients() []delta.Client {
	conns := r.authenticated()
	out := make([]delta.Client, len(conns))
	for i, c := range conns {
		out[i] = c
	}
	return out
}

// Count returns the number of open and authenticated connections.
func (r *Registry) Count() (open, authenticated int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns), len(r.players)
}
