package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/core/event"
	"github.com/gridrealm/server/internal/protocol"
	"github.com/gridrealm/server/internal/session"
	"github.com/gridrealm/server/internal/spawn"
	"github.com/gridrealm/server/internal/world"
)

type echoRouter struct{}

func (echoRouter) Dispatch(playerID string, cmd command.Command) command.Result {
	return command.OK(playerID + " " + cmd.Kind().String())
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()
	cfg := config.Default()
	store := world.NewStore(world.NewGrid(5, 5, world.Tile{Terrain: "plain", MoveCost: 1, Passable: true, Spawnable: true}), 1)
	reg := session.NewRegistry(session.Deps{
		Store:   store,
		Arbiter: spawn.NewArbiter(store, 0, 0, zap.NewNop()),
		Router:  echoRouter{},
		Bus:     event.NewBus(),
		Config:  cfg.Session,
		Log:     zap.NewNop(),
	})
	srv := NewServer(cfg.Network, protocol.JSON{}, reg, func(h *Health) { h.Tick = 42 }, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, reg
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg protocol.Message) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(msg))
}

// next reads envelopes until one of type typ arrives.
func next(t *testing.T, ws *websocket.Conn, typ string) envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var e envelope
		require.NoError(t, ws.ReadJSON(&e))
		if e.Type == typ {
			return e
		}
	}
}

func TestJoinThenCommand(t *testing.T) {
	ts, _ := newTestServer(t)
	ws := dial(t, ts)

	send(t, ws, protocol.Message{Type: protocol.TypeJoin, Payload: protocol.JoinRequest{Identity: "Alice"}})
	send(t, ws, protocol.CommandMessage(command.Move{Direction: command.Up}))

	joined := next(t, ws, protocol.TypeGameJoined)
	var gj struct {
		Player world.PlayerView `json:"player"`
	}
	require.NoError(t, json.Unmarshal(joined.Payload, &gj))
	assert.Equal(t, "alice", gj.Player.ID)

	res := next(t, ws, protocol.TypeCommandResult)
	var cr protocol.CommandResult
	require.NoError(t, json.Unmarshal(res.Payload, &cr))
	assert.True(t, cr.Success)
	assert.Equal(t, "alice move", cr.Message)
}

func TestCommandBeforeJoin(t *testing.T) {
	ts, _ := newTestServer(t)
	ws := dial(t, ts)

	send(t, ws, protocol.CommandMessage(command.StartCataclysm{}))
	e := next(t, ws, protocol.TypeError)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(e.Payload, &p))
	assert.Equal(t, protocol.ReasonNotAuthenticated, p.Reason)
}

func TestMalformedFrames(t *testing.T) {
	ts, _ := newTestServer(t)
	ws := dial(t, ts)

	for _, raw := range []string{`not json`, `{"type":"dance"}`, `{"type":"command","payload":{"type":"fly"}}`} {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(raw)))
		e := next(t, ws, protocol.TypeError)
		var p protocol.ErrorPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		assert.Equal(t, protocol.ReasonBadRequest, p.Reason, raw)
	}
}

func TestCloseDisconnectsPlayer(t *testing.T) {
	ts, reg := newTestServer(t)
	ws := dial(t, ts)
	send(t, ws, protocol.Message{Type: protocol.TypeJoin, Payload: protocol.JoinRequest{Identity: "bob"}})
	next(t, ws, protocol.TypeGameJoined)

	ws.Close()
	assert.Eventually(t, func() bool {
		open, _ := reg.Count()
		return open == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var h Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.EqualValues(t, 42, h.Tick)
	assert.Zero(t, h.Players)
}

func TestCheckOrigin(t *testing.T) {
	cfg := config.Default().Network
	cfg.AllowedOrigins = []string{"https://play.example"}
	s := NewServer(cfg, protocol.JSON{}, nil, nil, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, s.checkOrigin(r))
	r.Header.Set("Origin", "https://play.example")
	assert.True(t, s.checkOrigin(r))
}
