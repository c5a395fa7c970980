package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wricardo/livestate/live"
	"github.com/wricardo/livestate/live/host"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Default time between liveness checks.
	DefaultHeartbeatInterval = 5 * time.Second

	// Default time without a pong after which the connection is closed.
	DefaultClientTimeout = 10 * time.Second

	// Default number of pushes buffered for a slow client.
	DefaultInboxSize = 256

	// Default maximum message size allowed from peer.
	DefaultMaxMessageSize = 4096
)

// Envelope is the server to client wire format.
type Envelope struct {
	Route string          `json:"route"`
	Data  json.RawMessage `json:"data"`
}

// SessionOptions tunes a single connection.
type SessionOptions struct {
	HeartbeatInterval time.Duration
	ClientTimeout     time.Duration
	InboxSize         int
	MaxMessageSize    int64
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.ClientTimeout <= 0 {
		o.ClientTimeout = DefaultClientTimeout
	}
	if o.InboxSize <= 0 {
		o.InboxSize = DefaultInboxSize
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	return o
}

// Session bridges one WebSocket connection to whichever Host it is
// subscribed to. All socket writes and the current Host reference are owned
// by the Serve goroutine.
type Session struct {
	id   string
	user live.UserID
	conn *websocket.Conn
	opts SessionOptions
	log  *zap.Logger

	// Pushes from Hosts: host.Update or *host.Host, kept in arrival order.
	inbox  chan any
	reads  chan []byte
	pongs  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession wraps an upgraded connection. Call Serve to run it.
func NewSession(conn *websocket.Conn, user live.UserID, logger *zap.Logger, opts SessionOptions) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	id := uuid.NewString()

	return &Session{
		id:    id,
		user:  user,
		conn:  conn,
		opts:  opts,
		log:   logger.Named("session").With(zap.String("session", id), zap.Stringer("user", user)),
		inbox: make(chan any, opts.InboxSize),
		reads: make(chan []byte),
		pongs: make(chan struct{}, 1),
	}
}

// ID returns the unique session id.
func (s *Session) ID() string {
	return s.id
}

// User returns the user the session was opened for.
func (s *Session) User() live.UserID {
	return s.user
}

// Deliver queues a view push. It never blocks: a session too slow to keep up
// is closed.
func (s *Session) Deliver(u host.Update) bool {
	return s.push(u)
}

// Redirect queues a switch to target behind any pushes already queued.
func (s *Session) Redirect(target *host.Host) bool {
	return s.push(target)
}

// Disconnect closes the session without touching any Host.
func (s *Session) Disconnect() {
	s.cancel()
}

func (s *Session) push(msg any) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.inbox <- msg:
		return true
	default:
		s.log.Warn("session inbox full, closing slow client")
		s.cancel()
		return false
	}
}

// Serve subscribes to initial and runs the session until the connection
// closes, the client stops answering pings or ctx is canceled. It always
// unsubscribes from the current Host exactly once before returning.
func (s *Session) Serve(ctx context.Context, initial *host.Host) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()
	defer s.conn.Close()

	current := initial
	if err := current.Subscribe(s.ctx, s, s.user); err != nil {
		return err
	}
	defer func() {
		// The Host may be gone already; that is fine.
		if err := current.Unsubscribe(context.Background(), s); err != nil && !errors.Is(err, host.ErrStopped) {
			s.log.Warn("failed to unsubscribe", zap.String("route", current.Route()), zap.Error(err))
		}
	}()

	s.log.Info("session opened", zap.String("route", current.Route()))

	readDone := make(chan error, 1)
	go func() {
		readDone <- s.readPump()
	}()

	heartbeat := time.NewTicker(s.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	lastPong := time.Now()
	var lastSent []byte

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("session closed", zap.String("route", current.Route()))
			s.closeConn(websocket.CloseGoingAway, "")
			return nil

		case err := <-readDone:
			s.log.Info("session closed by peer", zap.String("route", current.Route()), zap.Error(err))
			return nil

		case raw := <-s.reads:
			if err := current.Send(s.ctx, raw, s.user); err != nil && s.ctx.Err() == nil {
				s.log.Warn("failed to forward event", zap.String("route", current.Route()), zap.Error(err))
			}

		case <-s.pongs:
			lastPong = time.Now()

		case msg := <-s.inbox:
			switch m := msg.(type) {
			case host.Update:
				payload, err := json.Marshal(Envelope{Route: m.Route, Data: m.Data})
				if err != nil {
					s.log.Error("failed to marshal envelope", zap.Error(err))
					continue
				}
				if bytes.Equal(payload, lastSent) {
					continue
				}
				if err := s.write(websocket.TextMessage, payload); err != nil {
					s.log.Info("write failed, closing session", zap.Error(err))
					return nil
				}
				lastSent = payload

			case *host.Host:
				s.log.Debug("redirected", zap.String("from", current.Route()), zap.String("to", m.Route()))
				// The previous Host already dropped us from its subscriber set.
				current = m
				if err := current.Subscribe(s.ctx, s, s.user); err != nil {
					s.log.Warn("failed to subscribe after redirect", zap.String("route", m.Route()), zap.Error(err))
					return err
				}
			}

		case now := <-heartbeat.C:
			if now.Sub(lastPong) > s.opts.ClientTimeout {
				s.log.Info("client timed out", zap.Duration("since_pong", now.Sub(lastPong)))
				s.closeConn(websocket.CloseGoingAway, "heartbeat timeout")
				return nil
			}
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.log.Info("ping failed, closing session", zap.Error(err))
				return nil
			}
		}
	}
}

// readPump forwards text frames to the Serve loop until the connection fails.
func (s *Session) readPump() error {
	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	s.conn.SetPongHandler(func(string) error {
		select {
		case s.pongs <- struct{}{}:
		default:
		}
		return nil
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read error", zap.Error(err))
			}
			return err
		}

		if messageType != websocket.TextMessage {
			s.log.Debug("ignoring non-text frame", zap.Int("type", messageType), zap.Int("size", len(data)))
			continue
		}

		select {
		case s.reads <- data:
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
}

func (s *Session) write(messageType int, data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *Session) closeConn(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
