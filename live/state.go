package live

import (
	"encoding/json"
	"fmt"
	"time"
)

// Logic is the capability interface a business module implements.
// E is the event type decoded from client JSON, V the per-user view.
type Logic[E any, V any] interface {
	// RouteName is the static identity of the route kind.
	RouteName() string
	// View projects the state for one user. It must not mutate or fail.
	View(user UserID) V
	// Apply processes a decoded client event.
	Apply(event E, sender UserID) Effect
	// Join registers a newly subscribed participant.
	Join(user UserID) Effect
	// TickInterval is constant per module; zero means the module is never ticked.
	TickInterval() time.Duration
	// Tick advances the state by one step. Only called when TickInterval is positive.
	Tick() Effect
}

// State is the uniform form of a module as seen by a Host.
type State interface {
	RouteName() string
	View(user UserID) any
	HandleEvent(raw []byte, sender UserID) (Effect, error)
	Join(user UserID) Effect
	TickInterval() time.Duration
	Tick() Effect
}

// Wrap erases the event and view types of a module.
func Wrap[E any, V any](logic Logic[E, V]) State {
	return wrapped[E, V]{logic: logic}
}

type wrapped[E any, V any] struct {
	logic Logic[E, V]
}

func (w wrapped[E, V]) RouteName() string {
	return w.logic.RouteName()
}

func (w wrapped[E, V]) View(user UserID) any {
	return w.logic.View(user)
}

func (w wrapped[E, V]) HandleEvent(raw []byte, sender UserID) (Effect, error) {
	var event E
	if err := json.Unmarshal(raw, &event); err != nil {
		return None(), fmt.Errorf("decode %s event: %w", w.logic.RouteName(), err)
	}
	return w.logic.Apply(event, sender), nil
}

func (w wrapped[E, V]) Join(user UserID) Effect {
	return w.logic.Join(user)
}

func (w wrapped[E, V]) TickInterval() time.Duration {
	return w.logic.TickInterval()
}

func (w wrapped[E, V]) Tick() Effect {
	return w.logic.Tick()
}
