// Package net is the websocket edge: it upgrades HTTP connections, frames
// envelopes with the configured codec and hands them to the session
// registry.
package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/protocol"
	"github.com/gridrealm/server/internal/session"
)

// Sessions is the registry surface the transport drives.
type Sessions interface {
	Open(t session.Transport) *session.Conn
	JoinAsync(c *session.Conn, req protocol.JoinRequest, done func(error))
	HandleCommand(c *session.Conn, cmd command.Command) (session.Disposition, error)
	Leave(c *session.Conn)
	OnDisconnect(c *session.Conn)
	Count() (open, authenticated int)
}

// Health is the /healthz body.
type Health struct {
	Status      string `json:"status"`
	Players     int    `json:"players"`
	Connections int    `json:"connections"`
	Tick        uint64 `json:"tick"`
	Skipped     uint64 `json:"skippedTicks"`
	Database    string `json:"database,omitempty"`
	Uptime      string `json:"uptime"`
}

// Probe fills the world side of a health report.
type Probe func(h *Health)

type Server struct {
	cfg      config.NetworkConfig
	codec    protocol.Codec
	sessions Sessions
	probe    Probe
	upgrader websocket.Upgrader
	started  time.Time
	log      *zap.Logger
}

func NewServer(cfg config.NetworkConfig, codec protocol.Codec, sessions Sessions, probe Probe, log *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		codec:    codec,
		sessions: sessions,
		probe:    probe,
		started:  time.Now(),
		log:      log.Named("net"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler serves /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", s.serveHealth)
	return mux
}

// Run listens until ctx is done, then shuts the listener down. Open
// websockets are closed by their own read loops failing.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.BindAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(fmt.Sprintf("伺服器監聽中  addr=%s  codec=%s", s.cfg.BindAddress, s.codec.Name()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen %s: %w", s.cfg.BindAddress, err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.cfg.AllowedOrigins, origin) || slices.Contains(s.cfg.AllowedOrigins, "*")
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("升級失敗", zap.String("ip", r.RemoteAddr), zap.Error(err))
		return
	}
	sess := NewSession(ws, s.codec, s.cfg, s.log)
	conn := s.sessions.Open(sess)
	sess.log = s.log.With(zap.String("conn", conn.ID()))
	s.log.Info(fmt.Sprintf("玩家連線  conn=%s  ip=%s", conn.ID(), sess.IP))

	sess.Serve(s.sessions, conn)
	s.log.Info(fmt.Sprintf("玩家斷線  conn=%s  ip=%s", conn.ID(), sess.IP))
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	h := Health{Status: "ok", Uptime: time.Since(s.started).Round(time.Second).String()}
	h.Connections, h.Players = s.sessions.Count()
	if s.probe != nil {
		s.probe(&h)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h)
}
