package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/wricardo/livestate/game/config"
	"github.com/wricardo/livestate/game/pomp"
	"github.com/wricardo/livestate/live/registry"
	"go.uber.org/zap"
)

func TestRoutesResolve(t *testing.T) {
	r, err := registry.New(zap.NewNop(), Routes(config.Default()))
	if err != nil {
		t.Fatalf("registry.New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	for route, kind := range map[string]string{
		"/counter":     "counter",
		"/setup/lobby": "setup",
		"/wedding":     "wedding",
	} {
		h, err := r.Resolve(ctx, route)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", route, err)
			continue
		}
		if h.Kind() != kind {
			t.Errorf("Resolve(%q).Kind() = %q, want %q", route, h.Kind(), kind)
		}
	}

	if _, err := r.Resolve(ctx, pomp.Route("lobby")); !errors.Is(err, registry.ErrRouteNotFound) {
		t.Errorf("pomp without seed error = %v, want ErrRouteNotFound", err)
	}

	h, err := r.ResolveWithSeed(ctx, pomp.Route("lobby"), pomp.Seed{})
	if err != nil {
		t.Fatalf("ResolveWithSeed() error: %v", err)
	}
	if h.Kind() != pomp.Kind {
		t.Errorf("Kind() = %q, want %q", h.Kind(), pomp.Kind)
	}
}

func TestRoutesWithoutConfig(t *testing.T) {
	routes := Routes(nil)
	if len(routes) != 4 {
		t.Fatalf("len(Routes(nil)) = %d, want 4", len(routes))
	}
	for _, r := range routes {
		if r.Kind == "wedding" && r.New("/wedding", nil) == nil {
			t.Error("wedding route built no state")
		}
	}
}
