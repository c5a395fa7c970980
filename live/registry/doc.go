// Package registry maps route names to running Hosts.
//
// The Registry is the single authority that creates Hosts. Like a Host it is a
// single-writer component: every resolution request is queued and handled by
// the Registry goroutine one at a time, which is what guarantees that at most
// one Host exists per concrete route name even when many sessions, or two
// racing handoffs, ask for the same unseen route.
//
// Routes are described by Route definitions. A definition's Pattern is either
// an exact name ("/counter") or a parameterized template ("/pomp/{id}");
// parameterized templates are matched before exact names. A definition without
// a New constructor can only be created from a live.Seed during a handoff.
//
// Hosts are never removed once created. A route whose subscribers all left, or
// that handed them off to another route, keeps running with an empty
// subscriber set.
//
// Usage:
//
//	reg, err := registry.New(logger,
//		registry.Route{Kind: "counter", Pattern: "/counter", New: newCounter},
//		registry.Route{Kind: "pomp", Pattern: "/pomp/{id}"},
//	)
//	go reg.Run(ctx)
//
//	h, err := reg.Resolve(ctx, "/counter")
package registry
