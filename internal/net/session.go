package net

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/protocol"
	"github.com/gridrealm/server/internal/session"
)

// Session is one websocket client. It implements session.Transport: Send
// encodes and enqueues without blocking, and a dedicated writer goroutine
// drains the queue to the socket.
type Session struct {
	ws    *websocket.Conn
	codec protocol.Codec
	cfg   config.NetworkConfig

	IP string

	out       chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func NewSession(ws *websocket.Conn, codec protocol.Codec, cfg config.NetworkConfig, log *zap.Logger) *Session {
	return &Session{
		ws:      ws,
		codec:   codec,
		cfg:     cfg,
		IP:      ws.RemoteAddr().String(),
		out:     make(chan []byte, cfg.OutQueueSize),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

// Send encodes msg and queues it. A full queue means the client cannot keep
// up; the session is closed rather than letting the loop block on it.
func (s *Session) Send(msg protocol.Message) bool {
	if s.closed.Load() {
		return false
	}
	data, err := s.codec.Encode(msg)
	if err != nil {
		s.log.Error("訊息編碼失敗", zap.String("type", msg.Type), zap.Error(err))
		return false
	}
	select {
	case s.out <- data:
		return true
	case <-s.closeCh:
		return false
	default:
		s.log.Warn("輸出佇列已滿，斷開慢速連線")
		s.Close()
		return false
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.ws.Close()
	})
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Serve runs the session until the client goes away. The writer runs on its
// own goroutine; the reader runs on the caller's. conn is the registry's
// handle for this session, and sessions gets every inbound message.
func (s *Session) Serve(sessions Sessions, conn *session.Conn) {
	go s.writeLoop()
	defer sessions.OnDisconnect(conn)
	defer s.Close()
	s.readLoop(sessions, conn)
}

func (s *Session) readLoop(sessions Sessions, conn *session.Conn) {
	s.ws.SetReadLimit(s.cfg.MaxMessageSize)
	s.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("讀取錯誤", zap.Error(err))
			}
			return
		}
		s.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		if err := s.handle(sessions, conn, data); err != nil {
			s.Send(protocol.Error(err))
		}
	}
}

// handle routes one inbound envelope. Errors returned here are protocol
// errors; the registry reports its own outcomes to the client.
func (s *Session) handle(sessions Sessions, conn *session.Conn, data []byte) error {
	f, err := s.codec.Decode(data)
	if err != nil {
		return err
	}
	switch f.Type {
	case protocol.TypeJoin:
		var req protocol.JoinRequest
		if err := s.codec.Unmarshal(f.Payload, &req); err != nil {
			return err
		}
		sessions.JoinAsync(conn, req, nil)
	case protocol.TypeCommand:
		cmd, err := protocol.DecodeCommand(s.codec, f.Payload)
		if err != nil {
			return err
		}
		if _, err := sessions.HandleCommand(conn, cmd); err != nil && !errors.Is(err, session.ErrRateLimited) {
			s.log.Debug(fmt.Sprintf("指令拒絕  conn=%s  kind=%s", conn.ID(), cmd.Kind()), zap.Error(err))
		}
	case protocol.TypeLeave:
		sessions.Leave(conn)
	default:
		return fmt.Errorf("unknown message type %q: %w", f.Type, protocol.ErrBadRequest)
	}
	return nil
}

func (s *Session) writeLoop() {
	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()
	defer s.Close()

	kind := websocket.TextMessage
	if s.codec.Binary() {
		kind = websocket.BinaryMessage
	}
	for {
		select {
		case data := <-s.out:
			s.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.ws.WriteMessage(kind, data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("寫入錯誤", zap.Error(err))
				}
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
