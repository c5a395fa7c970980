package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wricardo/livestate/live"
	"go.uber.org/zap"
)

// DefaultInboxSize bounds the number of queued messages per Host.
const DefaultInboxSize = 64

var ErrStopped = errors.New("host stopped")

// Host owns one live.State and fans out its projections to subscribers.
type Host struct {
	route    string
	kind     string
	state    live.State
	resolver Resolver
	log      *zap.Logger

	inbox chan message
	done  chan struct{}

	// Owned by the Run goroutine.
	subs  map[Subscriber]live.UserID
	stats Stats
}

// Option customizes a Host.
type Option func(*Host)

// WithInboxSize overrides DefaultInboxSize.
func WithInboxSize(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.inbox = make(chan message, n)
		}
	}
}

// New creates a Host for the concrete route name. Call Run to start it.
func New(route string, state live.State, resolver Resolver, logger *zap.Logger, opts ...Option) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Host{
		route:    route,
		kind:     state.RouteName(),
		state:    state,
		resolver: resolver,
		log:      logger.Named("host").With(zap.String("route", route)),
		inbox:    make(chan message, DefaultInboxSize),
		done:     make(chan struct{}),
		subs:     make(map[Subscriber]live.UserID),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.stats = Stats{
		Route:        route,
		Kind:         h.kind,
		TickInterval: state.TickInterval(),
	}

	return h
}

// Route returns the concrete route name this Host serves.
func (h *Host) Route() string {
	return h.route
}

// Kind returns the static route kind of the hosted state.
func (h *Host) Kind() string {
	return h.kind
}

// Done is closed once Run has returned.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// Run processes messages until ctx is canceled. The tick timer only exists if
// the state declares a positive interval.
func (h *Host) Run(ctx context.Context) {
	defer close(h.done)

	var tick <-chan time.Time
	if interval := h.state.TickInterval(); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	h.log.Debug("host started", zap.String("kind", h.kind))

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("host stopped", zap.Int("subscribers", len(h.subs)))
			return

		case msg := <-h.inbox:
			h.handle(ctx, msg)

		case <-tick:
			h.stats.Ticks++
			if !h.apply(ctx, h.state.Tick()) {
				h.broadcast()
			}
		}
	}
}

// Subscribe adds sub to the subscriber set on behalf of user.
func (h *Host) Subscribe(ctx context.Context, sub Subscriber, user live.UserID) error {
	return h.enqueue(ctx, subscribeMsg{sub: sub, user: user})
}

// Unsubscribe removes sub from the subscriber set. No business callback runs:
// the same user may still be connected through another session.
func (h *Host) Unsubscribe(ctx context.Context, sub Subscriber) error {
	return h.enqueue(ctx, unsubscribeMsg{sub: sub})
}

// Send forwards a raw client event. The payload is decoded by the hosted state.
func (h *Host) Send(ctx context.Context, raw []byte, sender live.UserID) error {
	return h.enqueue(ctx, clientEvent{raw: raw, sender: sender})
}

// Stats returns a snapshot taken by the Host goroutine.
func (h *Host) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := h.enqueue(ctx, statsMsg{reply: reply}); err != nil {
		return Stats{}, err
	}

	select {
	case stats := <-reply:
		return stats, nil
	case <-h.done:
		return Stats{}, ErrStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (h *Host) enqueue(ctx context.Context, msg message) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) handle(ctx context.Context, msg message) {
	switch m := msg.(type) {
	case subscribeMsg:
		h.subs[m.sub] = m.user
		h.log.Debug("subscribed", zap.Stringer("user", m.user), zap.Int("subscribers", len(h.subs)))
		if !h.apply(ctx, h.state.Join(m.user)) {
			h.broadcast()
		}

	case unsubscribeMsg:
		h.stats.Unsubscribes++
		if _, ok := h.subs[m.sub]; ok {
			delete(h.subs, m.sub)
			h.log.Debug("unsubscribed", zap.Int("subscribers", len(h.subs)))
		}

	case clientEvent:
		effect, err := h.state.HandleEvent(m.raw, m.sender)
		if err != nil {
			h.stats.DroppedEvents++
			h.log.Debug("dropping undecodable event",
				zap.Stringer("user", m.sender),
				zap.ByteString("raw", m.raw),
				zap.Error(err))
			return
		}
		h.stats.Events++
		if !h.apply(ctx, effect) {
			h.broadcast()
		}

	case statsMsg:
		m.reply <- h.snapshot()

	default:
		h.log.Warn("unknown host message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// apply executes a handoff effect. It reports whether a handoff happened, in
// which case the caller must skip its broadcast.
func (h *Host) apply(ctx context.Context, effect live.Effect) bool {
	var (
		target *Host
		err    error
	)

	switch effect.Kind() {
	case live.EffectNone:
		return false
	case live.EffectRedirect:
		target, err = h.resolver.Resolve(ctx, effect.Target())
	case live.EffectRedirectWithInit:
		target, err = h.resolver.ResolveWithSeed(ctx, effect.Target(), effect.Seed())
	default:
		err = fmt.Errorf("unknown effect kind %s", effect.Kind())
	}

	if err == nil && target == h {
		h.log.Warn("ignoring handoff to own route", zap.Stringer("effect", effect))
		return false
	}

	former := h.takeSubscribers()

	if err != nil {
		// The module promised a resolvable target. Former subscribers reconnect
		// through the handshake; other Hosts keep running.
		h.log.Error("handoff target unresolved",
			zap.Stringer("effect", effect),
			zap.Int("subscribers", len(former)),
			zap.Error(err))
		for _, sub := range former {
			sub.Disconnect()
		}
		return true
	}

	h.stats.Handoffs++
	h.log.Info("handing off subscribers",
		zap.String("target", target.Route()),
		zap.Int("subscribers", len(former)))

	for _, sub := range former {
		if !sub.Redirect(target) {
			h.log.Warn("subscriber refused redirect", zap.String("target", target.Route()))
		}
	}
	return true
}

// takeSubscribers empties the subscriber set and returns its former members.
func (h *Host) takeSubscribers() []Subscriber {
	former := make([]Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		former = append(former, sub)
	}
	clear(h.subs)
	return former
}

// broadcast pushes each subscriber its own projection of the state.
func (h *Host) broadcast() {
	for sub, user := range h.subs {
		data, err := json.Marshal(h.state.View(user))
		if err != nil {
			h.log.Error("failed to marshal view", zap.Stringer("user", user), zap.Error(err))
			continue
		}
		// Delivery failures are cleaned up by the subscriber's own Unsubscribe.
		sub.Deliver(Update{Route: h.kind, Data: data})
	}
}

func (h *Host) snapshot() Stats {
	stats := h.stats
	stats.Subscribers = len(h.subs)

	users := make(map[live.UserID]struct{}, len(h.subs))
	for _, user := range h.subs {
		users[user] = struct{}{}
	}
	stats.Users = len(users)
	return stats
}
