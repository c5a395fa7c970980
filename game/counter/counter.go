// Package counter is the simplest live route: a shared count plus one private
// count per user.
package counter

import (
	"time"

	"github.com/wricardo/livestate/live"
)

const (
	Kind    = "counter"
	Pattern = "/counter"
)

// Event is a counter client event, sent as "Increment" or "Decrement".
type Event int

const (
	Increment Event = iota + 1
	Decrement
)

func (e *Event) UnmarshalJSON(data []byte) error {
	tag, _, err := live.DecodeTagged(data)
	if err != nil {
		return err
	}
	switch tag {
	case "Increment":
		*e = Increment
	case "Decrement":
		*e = Decrement
	default:
		return live.UnknownEvent(tag)
	}
	return nil
}

// View is what a single user sees.
type View struct {
	Count        int `json:"count"`
	PrivateCount int `json:"private_count"`
}

// Counter holds the shared count and each user's own contribution.
type Counter struct {
	count   int
	private map[live.UserID]int
}

func New() *Counter {
	return &Counter{private: make(map[live.UserID]int)}
}

// NewState returns a fresh counter ready to be hosted.
func NewState() live.State {
	return live.Wrap[Event, View](New())
}

func (c *Counter) RouteName() string { return Kind }

func (c *Counter) View(user live.UserID) View {
	return View{Count: c.count, PrivateCount: c.private[user]}
}

func (c *Counter) Apply(event Event, sender live.UserID) live.Effect {
	switch event {
	case Increment:
		c.count++
		c.private[sender]++
	case Decrement:
		c.count--
		c.private[sender]--
	}
	return live.None()
}

func (c *Counter) Join(user live.UserID) live.Effect {
	if _, ok := c.private[user]; !ok {
		c.private[user] = 0
	}
	return live.None()
}

func (c *Counter) TickInterval() time.Duration { return 0 }

func (c *Counter) Tick() live.Effect { return live.None() }
