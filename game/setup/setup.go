// Package setup is the lobby in front of a pomp game. Players pick a name,
// mark themselves ready and finally move everyone into the game.
package setup

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/wricardo/livestate/game/pomp"
	"github.com/wricardo/livestate/live"
)

const (
	Kind    = "setup"
	Pattern = "/setup/{id}"
)

// Route returns the concrete route name of the lobby with the given id.
func Route(id string) string {
	return "/setup/" + id
}

type eventKind int

const (
	setName eventKind = iota + 1
	setReady
	startGame
)

// Event is {"SetName": "Ann"}, {"SetReady": true} or "StartGame".
type Event struct {
	kind  eventKind
	name  string
	ready bool
}

func SetNameEvent(name string) Event { return Event{kind: setName, name: name} }
func SetReadyEvent(ready bool) Event { return Event{kind: setReady, ready: ready} }
func StartGameEvent() Event          { return Event{kind: startGame} }

func (e *Event) UnmarshalJSON(data []byte) error {
	tag, payload, err := live.DecodeTagged(data)
	if err != nil {
		return err
	}
	switch tag {
	case "SetName":
		var name string
		if err := json.Unmarshal(payload, &name); err != nil {
			return fmt.Errorf("SetName: %w", err)
		}
		*e = SetNameEvent(name)
	case "SetReady":
		var ready bool
		if err := json.Unmarshal(payload, &ready); err != nil {
			return fmt.Errorf("SetReady: %w", err)
		}
		*e = SetReadyEvent(ready)
	case "StartGame":
		*e = StartGameEvent()
	default:
		return live.UnknownEvent(tag)
	}
	return nil
}

// Player is a public lobby entry.
type Player struct {
	Name    string `json:"name"`
	IsReady bool   `json:"is_ready"`
}

// View lists every player; MyIndex is -1 for users that are not in the list.
type View struct {
	Data    []Player `json:"data"`
	MyIndex int      `json:"my_index"`
}

type member struct {
	user live.UserID
	Player
}

// Lobby keeps players in join order.
type Lobby struct {
	id      string
	members []member
	started bool
	names   func() string
}

// New creates an empty lobby whose game will live at pomp.Route(id).
func New(id string) *Lobby {
	return &Lobby{id: id, names: RandomName}
}

// NewState returns a fresh lobby ready to be hosted.
func NewState(id string) live.State {
	return live.Wrap[Event, View](New(id))
}

func (l *Lobby) RouteName() string { return Kind }

func (l *Lobby) find(user live.UserID) int {
	for i, m := range l.members {
		if m.user == user {
			return i
		}
	}
	return -1
}

func (l *Lobby) View(user live.UserID) View {
	view := View{Data: make([]Player, len(l.members)), MyIndex: l.find(user)}
	for i, m := range l.members {
		view.Data[i] = m.Player
	}
	return view
}

func (l *Lobby) Apply(event Event, sender live.UserID) live.Effect {
	i := l.find(sender)
	if i < 0 {
		return live.None()
	}

	switch event.kind {
	case setName:
		if name := strings.TrimSpace(event.name); name != "" {
			l.members[i].Name = name
		}
	case setReady:
		l.members[i].IsReady = event.ready
	case startGame:
		l.started = true
		return live.RedirectWithInit(pomp.Route(l.id), l.seed())
	}
	return live.None()
}

func (l *Lobby) seed() pomp.Seed {
	players := make([]pomp.SeedPlayer, len(l.members))
	for i, m := range l.members {
		players[i] = pomp.SeedPlayer{User: m.user, Name: m.Name}
	}
	return pomp.Seed{Players: players}
}

// Join appends new users with a random name. Once the game has started,
// late arrivals are sent straight to it.
func (l *Lobby) Join(user live.UserID) live.Effect {
	if l.started {
		return live.Redirect(pomp.Route(l.id))
	}
	if l.find(user) < 0 {
		l.members = append(l.members, member{user: user, Player: Player{Name: l.names()}})
	}
	return live.None()
}

func (l *Lobby) TickInterval() time.Duration { return 0 }

func (l *Lobby) Tick() live.Effect { return live.None() }

var (
	sentiments = []string{"Happy", "Sad", "Angry", "Excited", "Bored", "Lonely"}
	colors     = []string{"Red", "Blue", "Green", "Yellow", "Purple", "Orange"}
	animals    = []string{
		"Bumblebee", "Butterfly", "Clownfish", "Fireant", "Hummingbird", "Jellyfish",
		"Kangaroo", "Lion", "Owl", "Penguin", "Seahorse",
	}
)

// RandomName combines a sentiment, a color and an animal.
func RandomName() string {
	return sentiments[rand.IntN(len(sentiments))] + " " +
		colors[rand.IntN(len(colors))] + " " +
		animals[rand.IntN(len(animals))]
}
