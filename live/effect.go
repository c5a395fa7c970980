package live

import "fmt"

// EffectKind tags the variant held by an Effect.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectRedirect
	EffectRedirectWithInit
)

func (k EffectKind) String() string {
	switch k {
	case EffectNone:
		return "none"
	case EffectRedirect:
		return "redirect"
	case EffectRedirectWithInit:
		return "redirect_with_init"
	default:
		return fmt.Sprintf("EffectKind(%d)", int(k))
	}
}

// Effect is returned by every state-mutating callback and consumed by the Host
// immediately. The zero value is None.
type Effect struct {
	kind   EffectKind
	target string
	seed   Seed
}

// None reports that the callback caused no cross-route transition.
func None() Effect {
	return Effect{}
}

// Redirect asks the Host to move all its subscribers to target.
// The target must be resolvable without a seed.
func Redirect(target string) Effect {
	return Effect{kind: EffectRedirect, target: target}
}

// RedirectWithInit asks the Host to move all its subscribers to target,
// building the target from seed if it does not exist yet.
func RedirectWithInit(target string, seed Seed) Effect {
	return Effect{kind: EffectRedirectWithInit, target: target, seed: seed}
}

func (e Effect) Kind() EffectKind { return e.kind }
func (e Effect) Target() string   { return e.target }
func (e Effect) Seed() Seed       { return e.seed }

// IsNone reports whether e is the "no transition" effect.
func (e Effect) IsNone() bool {
	return e.kind == EffectNone
}

func (e Effect) String() string {
	if e.kind == EffectNone {
		return "none"
	}
	return fmt.Sprintf("%s(%s)", e.kind, e.target)
}

// Seed carries the initial data for a route created during a handoff.
// Each seed type knows the concrete state it builds, so constructing the target
// never needs a type assertion.
type Seed interface {
	// Kind names the route kind this seed can build.
	Kind() string
	// Build constructs the initial state for the concrete route name.
	Build(route string) State
}
