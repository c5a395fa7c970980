package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/livestate/game/catalog"
	"github.com/wricardo/livestate/game/config"
	"github.com/wricardo/livestate/game/counter"
	"github.com/wricardo/livestate/game/pomp"
	"github.com/wricardo/livestate/game/setup"
	"github.com/wricardo/livestate/live"
	"github.com/wricardo/livestate/live/host"
	"github.com/wricardo/livestate/live/registry"
	"go.uber.org/zap"
)

const (
	u1 live.UserID = "11111111-1111-4111-8111-111111111111"
	u2 live.UserID = "22222222-2222-4222-8222-222222222222"
)

type testServer struct {
	*httptest.Server
	handler  *Handler
	registry *registry.Registry
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	reg, err := registry.New(zap.NewNop(), catalog.Routes(config.Default()))
	if err != nil {
		t.Fatalf("registry.New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go reg.Run(ctx)

	if opts.InitialRoute == "" {
		opts.InitialRoute = counter.Pattern
	}
	handler := NewHandler(reg, zap.NewNop(), opts)
	srv := httptest.NewServer(handler)

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		handler.Shutdown(shutdownCtx)
		srv.Close()
		cancel()
	})

	return &testServer{Server: srv, handler: handler, registry: reg}
}

func (s *testServer) wsURL(user live.UserID, route string) string {
	q := url.Values{}
	if user != "" {
		q.Set("uuid", user.String())
	}
	if route != "" {
		q.Set("route", route)
	}
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/?" + q.Encode()
}

func (s *testServer) dial(t *testing.T, user live.UserID, route string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL(user, route), nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *testServer) host(t *testing.T, route string) *host.Host {
	t.Helper()
	h, ok, err := s.registry.Lookup(context.Background(), route)
	if err != nil || !ok {
		t.Fatalf("Lookup(%q) = %v, %v", route, ok, err)
	}
	return h
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("invalid envelope %s: %v", data, err)
	}
	return env
}

func readCounter(t *testing.T, conn *websocket.Conn) counter.View {
	t.Helper()
	env := readEnvelope(t, conn)
	if env.Route != counter.Kind {
		t.Fatalf("route = %q, want %q", env.Route, counter.Kind)
	}
	var view counter.View
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("invalid counter view %s: %v", env.Data, err)
	}
	return view
}

func send(t *testing.T, conn *websocket.Conn, event string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
		t.Fatalf("WriteMessage() error: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHandshakeRejectsInvalidUser(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, user := range []live.UserID{"", "not-a-uuid", "11111111-1111-1111-8111-111111111111"} {
		_, resp, err := websocket.DefaultDialer.Dial(srv.wsURL(user, ""), nil)
		if err == nil {
			t.Fatalf("Dial(%q) succeeded, want rejection", user)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Dial(%q) response = %v, want 401", user, resp)
		}
	}
}

func TestHandshakeRejectsUnknownRoute(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, route := range []string{"/nowhere", pomp.Route("abc")} {
		_, resp, err := websocket.DefaultDialer.Dial(srv.wsURL(u1, route), nil)
		if err == nil {
			t.Fatalf("Dial(%q) succeeded, want rejection", route)
		}
		if resp == nil || resp.StatusCode != http.StatusNotFound {
			t.Errorf("Dial(%q) response = %v, want 404", route, resp)
		}
	}
}

func TestCounterScenario(t *testing.T) {
	srv := newTestServer(t, Options{})

	c1 := srv.dial(t, u1, "")
	if v := readCounter(t, c1); v != (counter.View{}) {
		t.Fatalf("initial view = %+v", v)
	}
	c2 := srv.dial(t, u2, counter.Pattern)
	if v := readCounter(t, c2); v != (counter.View{}) {
		t.Fatalf("initial view = %+v", v)
	}

	send(t, c1, `"Increment"`)
	if v := readCounter(t, c1); v != (counter.View{Count: 1, PrivateCount: 1}) {
		t.Errorf("u1 view = %+v", v)
	}
	if v := readCounter(t, c2); v != (counter.View{Count: 1, PrivateCount: 0}) {
		t.Errorf("u2 view = %+v", v)
	}

	send(t, c2, `"Decrement"`)
	if v := readCounter(t, c1); v != (counter.View{Count: 0, PrivateCount: 1}) {
		t.Errorf("u1 view = %+v", v)
	}
	if v := readCounter(t, c2); v != (counter.View{Count: 0, PrivateCount: -1}) {
		t.Errorf("u2 view = %+v", v)
	}
}

func TestIdenticalViewsAreSentOnce(t *testing.T) {
	srv := newTestServer(t, Options{})

	first := srv.dial(t, u1, "")
	readCounter(t, first)

	// A second session of the same user re-broadcasts an unchanged view
	// to the first one, which must suppress it.
	second := srv.dial(t, u1, "")
	readCounter(t, second)

	send(t, second, `"Increment"`)
	if v := readCounter(t, first); v != (counter.View{Count: 1, PrivateCount: 1}) {
		t.Errorf("first session view = %+v, want the incremented one", v)
	}
}

func TestUndecodableEventsAreIgnored(t *testing.T) {
	srv := newTestServer(t, Options{})

	conn := srv.dial(t, u1, "")
	readCounter(t, conn)

	send(t, conn, `{"Explode":true}`)
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte(`"Increment"`)); err != nil {
		t.Fatalf("WriteMessage() error: %v", err)
	}
	send(t, conn, `"Increment"`)

	if v := readCounter(t, conn); v.Count != 1 {
		t.Errorf("count = %d, want 1", v.Count)
	}
}

func TestLobbyHandsOffToGame(t *testing.T) {
	srv := newTestServer(t, Options{})
	lobby := setup.Route("party")

	c1 := srv.dial(t, u1, lobby)
	readEnvelope(t, c1)
	c2 := srv.dial(t, u2, lobby)
	readEnvelope(t, c2)

	send(t, c1, `"StartGame"`)
	send(t, c2, `"StartGame"`)

	for i, conn := range []*websocket.Conn{c1, c2} {
		for {
			env := readEnvelope(t, conn)
			if env.Route == setup.Kind {
				continue
			}
			if env.Route != pomp.Kind {
				t.Fatalf("client %d got route %q", i, env.Route)
			}
			var view pomp.View
			if err := json.Unmarshal(env.Data, &view); err != nil {
				t.Fatalf("invalid pomp view: %v", err)
			}
			if view.MyInventory == nil || len(view.Others) != 1 {
				t.Errorf("client %d view = %+v, want a player view", i, view)
			}
			break
		}
	}

	hosts, err := srv.registry.Hosts(context.Background())
	if err != nil {
		t.Fatalf("Hosts() error: %v", err)
	}
	games := 0
	for _, h := range hosts {
		if h.Kind() == pomp.Kind {
			games++
		}
	}
	if games != 1 {
		t.Errorf("pomp hosts = %d, want 1", games)
	}

	stats, err := srv.host(t, lobby).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Subscribers != 0 {
		t.Errorf("lobby subscribers after handoff = %d, want 0", stats.Subscribers)
	}

	gameStats, err := srv.host(t, pomp.Route("party")).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if gameStats.Subscribers != 2 {
		t.Errorf("game subscribers = %d, want 2", gameStats.Subscribers)
	}
}

func TestLateJoinerIsRedirected(t *testing.T) {
	srv := newTestServer(t, Options{})
	lobby := setup.Route("late")

	c1 := srv.dial(t, u1, lobby)
	readEnvelope(t, c1)
	send(t, c1, `"StartGame"`)
	for readEnvelope(t, c1).Route != pomp.Kind {
	}

	c2 := srv.dial(t, u2, lobby)
	env := readEnvelope(t, c2)
	if env.Route != pomp.Kind {
		t.Fatalf("late joiner got route %q, want %q", env.Route, pomp.Kind)
	}
	var view pomp.View
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("invalid pomp view: %v", err)
	}
	if view.MyInventory != nil {
		t.Error("late joiner should be a spectator")
	}
}

func TestHeartbeatClosesSilentClient(t *testing.T) {
	const (
		interval = 50 * time.Millisecond
		timeout  = 150 * time.Millisecond
	)
	srv := newTestServer(t, Options{Session: SessionOptions{
		HeartbeatInterval: interval,
		ClientTimeout:     timeout,
	}})

	start := time.Now()
	conn := srv.dial(t, u1, "")
	readCounter(t, conn)

	// Without reading, the client never answers pings.
	for srv.handler.ActiveSessions() != 0 {
		if time.Since(start) > 3*time.Second {
			t.Fatal("timed out waiting for the session to close")
		}
		time.Sleep(5 * time.Millisecond)
	}
	closedAfter := time.Since(start)

	// Closed no earlier than the timeout and within one more heartbeat, plus
	// scheduling slack.
	if closedAfter < timeout-interval || closedAfter > timeout+interval+150*time.Millisecond {
		t.Errorf("session closed after %v, want about %v to %v", closedAfter, timeout, timeout+interval)
	}

	stats, err := srv.host(t, counter.Pattern).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Subscribers != 0 {
		t.Errorf("subscribers = %d, want 0", stats.Subscribers)
	}
	if stats.Unsubscribes != 1 {
		t.Errorf("unsubscribes = %d, want exactly 1", stats.Unsubscribes)
	}
}

func TestHeartbeatKeepsResponsiveClient(t *testing.T) {
	srv := newTestServer(t, Options{Session: SessionOptions{
		HeartbeatInterval: 20 * time.Millisecond,
		ClientTimeout:     60 * time.Millisecond,
	}})

	conn := srv.dial(t, u1, "")
	go func() {
		// Reading answers pings.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	waitFor(t, "session to open", func() bool { return srv.handler.ActiveSessions() == 1 })
	time.Sleep(200 * time.Millisecond)
	if n := srv.handler.ActiveSessions(); n != 1 {
		t.Errorf("ActiveSessions() = %d, want 1", n)
	}
}

func TestShutdownClosesSessions(t *testing.T) {
	srv := newTestServer(t, Options{})

	conn := srv.dial(t, u1, "")
	readCounter(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.handler.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage() error = %v, want going away close", err)
	}
}

func TestSlowSessionIsClosed(t *testing.T) {
	s := NewSession(nil, u1, nil, SessionOptions{InboxSize: 1})
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if !s.Deliver(host.Update{Route: "counter"}) {
		t.Fatal("first Deliver() refused")
	}
	if s.Deliver(host.Update{Route: "counter"}) {
		t.Fatal("Deliver() to a full inbox succeeded")
	}
	if s.ctx.Err() == nil {
		t.Error("slow session was not canceled")
	}
	if s.Redirect(nil) {
		t.Error("Redirect() to a closed session succeeded")
	}
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(nil, nil, Options{AllowedOrigins: []string{"https://example.com"}})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://example.com", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := h.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}

	open := NewHandler(nil, nil, Options{})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://anything.example")
	if !open.checkOrigin(r) {
		t.Error("handler without allowed origins rejected a request")
	}
}
