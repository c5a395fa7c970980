package registry

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/wricardo/livestate/live"
)

// Route describes one kind of route the Registry can create.
type Route struct {
	// Kind names the route kind. It must match the Kind of seeds targeting it.
	Kind string
	// Pattern is an exact name or a template with {name} placeholders.
	Pattern string
	// New builds a default state. Nil marks a seed-only route.
	New func(name string, vars map[string]string) live.State
}

// Parameterized reports whether the pattern contains placeholders.
func (r Route) Parameterized() bool {
	return strings.Contains(r.Pattern, "{")
}

// Lazy reports whether the route can start from nothing.
func (r Route) Lazy() bool {
	return r.New != nil
}

// RouteInfo describes a Route definition for introspection.
type RouteInfo struct {
	Kind          string `json:"kind"`
	Pattern       string `json:"pattern"`
	Parameterized bool   `json:"parameterized"`
	Lazy          bool   `json:"lazy"`
}

// matcher resolves concrete route names to Route definitions using gorilla/mux
// templates. It is immutable after construction.
type matcher struct {
	router *mux.Router
	routes map[string]Route
	order  []Route
}

func newMatcher(routes []Route) (*matcher, error) {
	m := &matcher{
		router: mux.NewRouter(),
		routes: make(map[string]Route, len(routes)),
	}

	// Parameterized templates take precedence over exact names.
	var parameterized, exact []Route
	for _, r := range routes {
		if r.Kind == "" {
			return nil, errors.New("route kind cannot be empty")
		}
		if _, dup := m.routes[r.Kind]; dup {
			return nil, fmt.Errorf("duplicate route kind %q", r.Kind)
		}
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("route %q: pattern %q must start with a slash", r.Kind, r.Pattern)
		}
		m.routes[r.Kind] = r
		if r.Parameterized() {
			parameterized = append(parameterized, r)
		} else {
			exact = append(exact, r)
		}
	}

	m.order = append(parameterized, exact...)
	for _, r := range m.order {
		route := m.router.Path(r.Pattern).Name(r.Kind)
		if err := route.GetError(); err != nil {
			return nil, fmt.Errorf("route %q: %w", r.Kind, err)
		}
	}

	return m, nil
}

// match finds the definition for a concrete route name.
func (m *matcher) match(name string) (Route, map[string]string, bool) {
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: name}}

	var rm mux.RouteMatch
	if !m.router.Match(req, &rm) || rm.Route == nil {
		return Route{}, nil, false
	}

	r, ok := m.routes[rm.Route.GetName()]
	if !ok {
		return Route{}, nil, false
	}
	return r, rm.Vars, true
}

func (m *matcher) infos() []RouteInfo {
	infos := make([]RouteInfo, 0, len(m.order))
	for _, r := range m.order {
		infos = append(infos, RouteInfo{
			Kind:          r.Kind,
			Pattern:       r.Pattern,
			Parameterized: r.Parameterized(),
			Lazy:          r.Lazy(),
		})
	}
	return infos
}
