package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/wricardo/livestate/live"
	"github.com/wricardo/livestate/live/host"
	"github.com/wricardo/livestate/live/registry"
	"go.uber.org/zap"
)

// Resolver finds the Host for the route a connection asks for.
type Resolver interface {
	Resolve(ctx context.Context, route string) (*host.Host, error)
}

// Options configures a Handler.
type Options struct {
	// InitialRoute is used when the handshake names no route.
	InitialRoute string
	// AllowedOrigins restricts browser origins. Empty allows all.
	AllowedOrigins []string
	Session        SessionOptions
}

// Handler upgrades HTTP requests to live sessions.
type Handler struct {
	resolver Resolver
	log      *zap.Logger
	opts     Options
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewHandler creates a Handler. Call Shutdown to close every open session.
func NewHandler(resolver Resolver, logger *zap.Logger, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.InitialRoute == "" {
		opts.InitialRoute = "/"
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		resolver: resolver,
		log:      logger.Named("websocket"),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Not a browser.
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP performs the handshake: ?uuid=<v4 uuid> is required and
// ?route= selects the initial route.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	user, err := live.UserIDFromQuery(query)
	if err != nil {
		h.log.Debug("rejecting handshake", zap.Error(err))
		http.Error(w, "unauthorized: a valid uuid query parameter is required", http.StatusUnauthorized)
		return
	}

	route := query.Get("route")
	if route == "" {
		route = h.opts.InitialRoute
	}

	target, err := h.resolver.Resolve(r.Context(), route)
	if err != nil {
		if errors.Is(err, registry.ErrRouteNotFound) {
			http.Error(w, "route not found: "+route, http.StatusNotFound)
			return
		}
		h.log.Error("failed to resolve initial route", zap.String("route", route), zap.Error(err))
		http.Error(w, "route unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied with an error status.
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()
	h.active.Add(1)
	defer h.active.Add(-1)

	session := NewSession(conn, user, h.log, h.opts.Session)
	if err := session.Serve(h.ctx, target); err != nil && h.ctx.Err() == nil {
		h.log.Warn("session ended with error", zap.String("session", session.ID()), zap.Error(err))
	}
}

// ActiveSessions returns the number of open connections.
func (h *Handler) ActiveSessions() int64 {
	return h.active.Load()
}

// Shutdown closes every session and waits for them to unsubscribe, or for ctx.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
