package host

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wricardo/livestate/live"
)

// Update is one per-user projection pushed from a Host to a subscriber.
type Update struct {
	Route string
	Data  json.RawMessage
}

// Subscriber receives pushes from a Host. Both methods must not block: a
// subscriber that cannot accept a message reports false and is expected to shut
// itself down.
type Subscriber interface {
	// Deliver queues a view update.
	Deliver(update Update) bool
	// Redirect tells the subscriber to switch to target and subscribe there.
	Redirect(target *Host) bool
	// Disconnect asks the subscriber to close its connection.
	Disconnect()
}

// Resolver maps route names to running Hosts. It is implemented by the registry.
type Resolver interface {
	Resolve(ctx context.Context, route string) (*Host, error)
	ResolveWithSeed(ctx context.Context, route string, seed live.Seed) (*Host, error)
}

// Stats is a point-in-time description of a Host.
type Stats struct {
	Route         string        `json:"route"`
	Kind          string        `json:"kind"`
	Subscribers   int           `json:"subscribers"`
	Users         int           `json:"users"`
	TickInterval  time.Duration `json:"tick_interval"`
	Events        uint64        `json:"events"`
	DroppedEvents uint64        `json:"dropped_events"`
	Ticks         uint64        `json:"ticks"`
	Handoffs      uint64        `json:"handoffs"`
	Unsubscribes  uint64        `json:"unsubscribes"`
}

// MarshalJSON writes TickInterval as a duration string such as "200ms", or
// omits it for untimed routes.
func (s Stats) MarshalJSON() ([]byte, error) {
	type plain Stats
	out := struct {
		plain
		TickInterval string `json:"tick_interval,omitempty"`
	}{plain: plain(s)}
	if s.TickInterval > 0 {
		out.TickInterval = s.TickInterval.String()
	}
	return json.Marshal(out)
}

func (s *Stats) UnmarshalJSON(data []byte) error {
	type plain Stats
	in := struct {
		*plain
		TickInterval string `json:"tick_interval"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.TickInterval = 0
	if in.TickInterval == "" {
		return nil
	}
	d, err := time.ParseDuration(in.TickInterval)
	if err != nil {
		return fmt.Errorf("tick_interval: %w", err)
	}
	s.TickInterval = d
	return nil
}

type message interface {
	isMessage()
}

type subscribeMsg struct {
	sub  Subscriber
	user live.UserID
}

type unsubscribeMsg struct {
	sub Subscriber
}

// clientEvent is the RemoteEvent envelope: a raw client payload and its sender.
type clientEvent struct {
	raw    []byte
	sender live.UserID
}

type statsMsg struct {
	reply chan Stats
}

func (subscribeMsg) isMessage()   {}
func (unsubscribeMsg) isMessage() {}
func (clientEvent) isMessage()    {}
func (statsMsg) isMessage()       {}
