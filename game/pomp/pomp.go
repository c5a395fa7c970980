// Package pomp is a small real-time card game. Players collect energy over
// time, turn it into elements and spend elements on market cards.
//
// A game only exists once a setup lobby hands its players over with a Seed.
package pomp

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/wricardo/livestate/live"
)

const (
	Kind    = "pomp"
	Pattern = "/pomp/{id}"

	// TickEvery is the game loop period.
	TickEvery = 200 * time.Millisecond
	// TicksPerEnergy is how many ticks a player waits for one energy.
	TicksPerEnergy = 10

	slotsPerLevel = 5
)

// Route returns the concrete route name of the game with the given id.
func Route(id string) string {
	return "/pomp/" + id
}

type eventKind int

const (
	buyElement eventKind = iota + 1
	buyCard
)

// Event is {"Buy": "Fire"} or {"BuyCard": 12}.
type Event struct {
	kind    eventKind
	element Element
	card    int
}

func BuyEvent(e Element) Event  { return Event{kind: buyElement, element: e} }
func BuyCardEvent(id int) Event { return Event{kind: buyCard, card: id} }

func (e *Event) UnmarshalJSON(data []byte) error {
	tag, payload, err := live.DecodeTagged(data)
	if err != nil {
		return err
	}
	switch tag {
	case "Buy":
		var element Element
		if err := json.Unmarshal(payload, &element); err != nil {
			return fmt.Errorf("Buy: %w", err)
		}
		*e = BuyEvent(element)
	case "BuyCard":
		var id int
		if err := json.Unmarshal(payload, &id); err != nil {
			return fmt.Errorf("BuyCard: %w", err)
		}
		*e = BuyCardEvent(id)
	default:
		return live.UnknownEvent(tag)
	}
	return nil
}

// Inventory is the public part of a player.
type Inventory struct {
	Name     string   `json:"name"`
	Points   int      `json:"points"`
	Energy   int      `json:"energy"`
	Elements Elements `json:"elements"`
	Discount Elements `json:"discount"`
}

// View is one user's projection. Spectators have no inventory.
type View struct {
	MyInventory *Inventory  `json:"my_inventory"`
	Others      []Inventory `json:"others"`
	Market      []*Card     `json:"market"`
}

type player struct {
	user        live.UserID
	energyTicks int
	inventory   Inventory
}

// Game is the state of one running game.
type Game struct {
	players []*player
	index   map[live.UserID]int
	decks   [3][]Card
	market  []*Card
}

// SeedPlayer is a lobby member carried into the game.
type SeedPlayer struct {
	User live.UserID
	Name string
}

// Seed builds a game from a finished lobby.
type Seed struct {
	Players []SeedPlayer
}

func (s Seed) Kind() string { return Kind }

func (s Seed) Build(string) live.State {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	return live.Wrap[Event, View](NewGame(s.Players, rng))
}

// NewGame deals the decks and fills the market.
func NewGame(players []SeedPlayer, rng *rand.Rand) *Game {
	g := &Game{
		index: make(map[live.UserID]int, len(players)),
	}
	for _, p := range players {
		if _, dup := g.index[p.User]; dup {
			continue
		}
		g.index[p.User] = len(g.players)
		g.players = append(g.players, &player{user: p.User, inventory: Inventory{Name: p.Name}})
	}

	g.decks = newDecks(rng, len(g.players))
	g.market = make([]*Card, 0, slotsPerLevel*len(g.decks))
	for level := range g.decks {
		for range slotsPerLevel {
			g.market = append(g.market, g.draw(level))
		}
	}
	return g
}

// draw pops the top card of a level deck, or nil once it is empty.
func (g *Game) draw(level int) *Card {
	deck := g.decks[level]
	if len(deck) == 0 {
		return nil
	}
	card := deck[len(deck)-1]
	g.decks[level] = deck[:len(deck)-1]
	return &card
}

func (g *Game) RouteName() string { return Kind }

func (g *Game) View(user live.UserID) View {
	view := View{
		Others: make([]Inventory, 0, len(g.players)),
		Market: make([]*Card, len(g.market)),
	}
	for _, p := range g.players {
		if p.user == user {
			inv := p.inventory
			view.MyInventory = &inv
			continue
		}
		view.Others = append(view.Others, p.inventory)
	}
	for i, c := range g.market {
		if c != nil {
			card := *c
			view.Market[i] = &card
		}
	}
	return view
}

func (g *Game) Apply(event Event, sender live.UserID) live.Effect {
	i, ok := g.index[sender]
	if !ok {
		// Spectators cannot act.
		return live.None()
	}
	p := g.players[i]

	switch event.kind {
	case buyElement:
		if p.inventory.Energy >= 1 {
			p.inventory.Energy--
			p.inventory.Elements.Add(event.element, 1)
		}
	case buyCard:
		g.buyCard(p, event.card)
	}
	return live.None()
}

// buyCard is a no-op when the card left the market or is not affordable,
// which happens when two players race for the same card.
func (g *Game) buyCard(p *player, id int) {
	inv := &p.inventory
	funds := inv.Elements.Plus(inv.Discount)

	slot := -1
	for i, c := range g.market {
		if c != nil && c.ID == id && funds.Covers(c.Cost) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return
	}

	card := g.market[slot]
	g.market[slot] = g.draw(slot / slotsPerLevel)

	price := card.Cost.Minus(inv.Discount)
	inv.Elements = inv.Elements.Minus(price)
	inv.Discount.Add(card.Color, 1)
	inv.Points += card.Points
}

// Join is a no-op: late arrivals watch as spectators.
func (g *Game) Join(live.UserID) live.Effect { return live.None() }

func (g *Game) TickInterval() time.Duration { return TickEvery }

func (g *Game) Tick() live.Effect {
	for _, p := range g.players {
		p.energyTicks++
		if p.energyTicks >= TicksPerEnergy {
			p.energyTicks = 0
			p.inventory.Energy++
		}
	}
	return live.None()
}
