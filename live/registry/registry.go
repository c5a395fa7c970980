package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wricardo/livestate/live"
	"github.com/wricardo/livestate/live/host"
	"go.uber.org/zap"
)

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrSeedMismatch  = errors.New("seed does not match route kind")
	ErrStopped       = errors.New("registry stopped")
)

// Registry is the single authority mapping route names to Hosts.
type Registry struct {
	matcher  *matcher
	log      *zap.Logger
	hostOpts []host.Option

	requests chan request
	done     chan struct{}

	// Owned by the Run goroutine.
	hosts map[string]*host.Host
}

// Option customizes a Registry.
type Option func(*Registry)

// WithHostOptions applies opts to every Host the Registry creates.
func WithHostOptions(opts ...host.Option) Option {
	return func(r *Registry) {
		r.hostOpts = append(r.hostOpts, opts...)
	}
}

// New validates the route definitions and creates a Registry. Call Run to start it.
func New(logger *zap.Logger, routes []Route, opts ...Option) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m, err := newMatcher(routes)
	if err != nil {
		return nil, fmt.Errorf("invalid routes: %w", err)
	}

	r := &Registry{
		matcher:  m,
		log:      logger,
		requests: make(chan request),
		done:     make(chan struct{}),
		hosts:    make(map[string]*host.Host),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type requestKind int

const (
	resolveRequest requestKind = iota
	seedRequest
	lookupRequest
	listRequest
)

type request struct {
	kind  requestKind
	route string
	seed  live.Seed
	reply chan response
}

type response struct {
	host  *host.Host
	hosts []*host.Host
	err   error
}

// Run serves requests until ctx is canceled. Hosts created by the Registry run
// under the same context.
func (r *Registry) Run(ctx context.Context) {
	defer close(r.done)

	log := r.log.Named("registry")
	log.Info("registry started", zap.Int("kinds", len(r.matcher.order)))

	for {
		select {
		case <-ctx.Done():
			log.Info("registry stopped", zap.Int("hosts", len(r.hosts)))
			return

		case req := <-r.requests:
			req.reply <- r.handle(ctx, log, req)
		}
	}
}

// Done is closed once Run has returned.
func (r *Registry) Done() <-chan struct{} {
	return r.done
}

// Resolve returns the Host for route, creating a default one if the route is
// lazily creatable. Unknown and seed-only routes yield ErrRouteNotFound.
func (r *Registry) Resolve(ctx context.Context, route string) (*host.Host, error) {
	res, err := r.call(ctx, request{kind: resolveRequest, route: route})
	return res.host, err
}

// ResolveWithSeed returns the existing Host for route, discarding seed, or
// creates one built from seed.
func (r *Registry) ResolveWithSeed(ctx context.Context, route string, seed live.Seed) (*host.Host, error) {
	if seed == nil {
		return r.Resolve(ctx, route)
	}
	res, err := r.call(ctx, request{kind: seedRequest, route: route, seed: seed})
	return res.host, err
}

// Lookup returns the Host for route only if it already exists.
func (r *Registry) Lookup(ctx context.Context, route string) (*host.Host, bool, error) {
	res, err := r.call(ctx, request{kind: lookupRequest, route: route})
	if err != nil {
		return nil, false, err
	}
	return res.host, res.host != nil, nil
}

// Hosts lists every Host created so far, sorted by route name.
func (r *Registry) Hosts(ctx context.Context) ([]*host.Host, error) {
	res, err := r.call(ctx, request{kind: listRequest})
	return res.hosts, err
}

// Kinds describes the route definitions, parameterized ones first.
func (r *Registry) Kinds() []RouteInfo {
	return r.matcher.infos()
}

func (r *Registry) call(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)

	select {
	case r.requests <- req:
	case <-r.done:
		return response{}, ErrStopped
	case <-ctx.Done():
		return response{}, ctx.Err()
	}

	// Run always answers an accepted request.
	res := <-req.reply
	return res, res.err
}

func (r *Registry) handle(ctx context.Context, log *zap.Logger, req request) response {
	switch req.kind {
	case lookupRequest:
		return response{host: r.hosts[req.route]}

	case listRequest:
		hosts := make([]*host.Host, 0, len(r.hosts))
		for _, h := range r.hosts {
			hosts = append(hosts, h)
		}
		sort.Slice(hosts, func(i, j int) bool {
			return hosts[i].Route() < hosts[j].Route()
		})
		return response{hosts: hosts}
	}

	if h, ok := r.hosts[req.route]; ok {
		return response{host: h}
	}

	def, vars, ok := r.matcher.match(req.route)
	if !ok {
		return response{err: fmt.Errorf("%w: %s", ErrRouteNotFound, req.route)}
	}

	var state live.State
	switch req.kind {
	case seedRequest:
		if req.seed.Kind() != def.Kind {
			return response{err: fmt.Errorf("%w: seed %q for %s route %s",
				ErrSeedMismatch, req.seed.Kind(), def.Kind, req.route)}
		}
		state = req.seed.Build(req.route)

	default:
		if !def.Lazy() {
			return response{err: fmt.Errorf("%w: %s requires a seed", ErrRouteNotFound, req.route)}
		}
		state = def.New(req.route, vars)
	}

	h := host.New(req.route, state, r, r.log, r.hostOpts...)
	r.hosts[req.route] = h
	go h.Run(ctx)

	log.Info("host created",
		zap.String("route", req.route),
		zap.String("kind", def.Kind),
		zap.Bool("seeded", req.kind == seedRequest),
		zap.Int("hosts", len(r.hosts)))

	return response{host: h}
}
