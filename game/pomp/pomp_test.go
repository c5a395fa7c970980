package pomp

import (
	"encoding/json"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/wricardo/livestate/live"
)

const (
	alice live.UserID = "11111111-1111-4111-8111-111111111111"
	bob   live.UserID = "22222222-2222-4222-8222-222222222222"
	carol live.UserID = "33333333-3333-4333-8333-333333333333"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func twoPlayerGame() *Game {
	return NewGame([]SeedPlayer{{User: alice, Name: "Alice"}, {User: bob, Name: "Bob"}}, testRand())
}

func TestNewGameDealsMarket(t *testing.T) {
	g := twoPlayerGame()

	if len(g.market) != 15 {
		t.Fatalf("market size = %d, want 15", len(g.market))
	}
	for i, c := range g.market {
		if c == nil {
			t.Fatalf("market slot %d is empty", i)
		}
	}

	// 2 players: 10/20/8 cards, minus 5 per level on the market.
	wantDecks := [3]int{5, 15, 3}
	for level, want := range wantDecks {
		if got := len(g.decks[level]); got != want {
			t.Errorf("deck %d size = %d, want %d", level+1, got, want)
		}
	}

	seen := make(map[int]bool)
	for _, c := range g.market {
		if seen[c.ID] {
			t.Errorf("duplicate card id %d", c.ID)
		}
		seen[c.ID] = true
	}
	for _, deck := range g.decks {
		for _, c := range deck {
			if seen[c.ID] {
				t.Errorf("duplicate card id %d", c.ID)
			}
			seen[c.ID] = true
		}
	}
}

func TestSmallGameLeavesEmptySlots(t *testing.T) {
	g := NewGame([]SeedPlayer{{User: alice, Name: "Alice"}}, testRand())

	// One player only has four level 3 cards.
	if g.market[14] != nil {
		t.Error("last level 3 slot should be empty")
	}
	if g.market[10] == nil {
		t.Error("first level 3 slot should be filled")
	}
}

func TestCardCostsMatchTemplates(t *testing.T) {
	rng := testRand()
	for level := range levelTemplates {
		for i := range 100 {
			c := randomCard(rng, level, i)
			found := false
			for _, tpl := range levelTemplates[level] {
				if tpl.points == c.Points && tpl.cost == c.Cost.Total() {
					found = true
				}
			}
			if !found {
				t.Fatalf("level %d card %+v matches no template", level+1, c)
			}
		}
	}
}

func TestTickGrantsEnergy(t *testing.T) {
	g := twoPlayerGame()

	for range TicksPerEnergy - 1 {
		g.Tick()
	}
	if got := g.View(alice).MyInventory.Energy; got != 0 {
		t.Fatalf("energy after %d ticks = %d, want 0", TicksPerEnergy-1, got)
	}

	g.Tick()
	if got := g.View(alice).MyInventory.Energy; got != 1 {
		t.Errorf("energy after %d ticks = %d, want 1", TicksPerEnergy, got)
	}
	if got := g.View(bob).MyInventory.Energy; got != 1 {
		t.Errorf("bob energy = %d, want 1", got)
	}
}

func TestBuyElement(t *testing.T) {
	g := twoPlayerGame()

	g.Apply(BuyEvent(Water), alice)
	if got := g.View(alice).MyInventory.Elements.Water; got != 0 {
		t.Fatalf("bought without energy: water = %d", got)
	}

	for range TicksPerEnergy {
		g.Tick()
	}
	g.Apply(BuyEvent(Water), alice)

	inv := g.View(alice).MyInventory
	if inv.Elements.Water != 1 || inv.Energy != 0 {
		t.Errorf("inventory = %+v, want 1 water and 0 energy", inv)
	}
}

func TestBuyCard(t *testing.T) {
	g := twoPlayerGame()
	g.market[0] = &Card{ID: 900, Color: Plant, Points: 1, Cost: Elements{Fire: 2, Water: 1}}
	next := g.decks[0][len(g.decks[0])-1]

	p := g.players[g.index[alice]]
	p.inventory.Elements = Elements{Fire: 1, Water: 1, Earth: 3}
	p.inventory.Discount = Elements{Fire: 1}

	g.Apply(BuyCardEvent(900), alice)

	inv := g.View(alice).MyInventory
	if inv.Points != 1 {
		t.Errorf("points = %d, want 1", inv.Points)
	}
	if inv.Elements != (Elements{Earth: 3}) {
		t.Errorf("elements = %+v, want only 3 earth left", inv.Elements)
	}
	if inv.Discount != (Elements{Fire: 1, Plant: 1}) {
		t.Errorf("discount = %+v", inv.Discount)
	}
	if g.market[0] == nil || g.market[0].ID != next.ID {
		t.Errorf("slot not refilled from level 1 deck")
	}
}

func TestBuyCardRejected(t *testing.T) {
	g := twoPlayerGame()
	g.market[5] = &Card{ID: 901, Color: Fire, Points: 2, Cost: Elements{Chaos: 2}}

	p := g.players[g.index[bob]]
	p.inventory.Elements = Elements{Chaos: 1}

	g.Apply(BuyCardEvent(901), bob)
	g.Apply(BuyCardEvent(12345), bob)

	if g.market[5].ID != 901 {
		t.Error("unaffordable card left the market")
	}
	if inv := g.View(bob).MyInventory; inv.Points != 0 || inv.Elements.Chaos != 1 {
		t.Errorf("inventory changed: %+v", inv)
	}
}

func TestSpectatorView(t *testing.T) {
	g := twoPlayerGame()

	view := g.View(carol)
	if view.MyInventory != nil {
		t.Error("spectator has an inventory")
	}
	if len(view.Others) != 2 {
		t.Errorf("spectator sees %d players, want 2", len(view.Others))
	}

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !strings.Contains(string(data), `"my_inventory":null`) {
		t.Errorf("spectator JSON = %s", data)
	}

	// Spectator events are ignored.
	g.Apply(BuyEvent(Fire), carol)
}

func TestPlayerViewHidesNothingPublic(t *testing.T) {
	g := twoPlayerGame()

	view := g.View(alice)
	if view.MyInventory == nil || view.MyInventory.Name != "Alice" {
		t.Fatalf("my_inventory = %+v", view.MyInventory)
	}
	if len(view.Others) != 1 || view.Others[0].Name != "Bob" {
		t.Errorf("others = %+v", view.Others)
	}
}

func TestEventUnmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    Event
		wantErr bool
	}{
		{`{"Buy":"Chaos"}`, BuyEvent(Chaos), false},
		{`{"BuyCard":7}`, BuyCardEvent(7), false},
		{`{"Buy":"Air"}`, Event{}, true},
		{`{"BuyCard":"seven"}`, Event{}, true},
		{`"Buy"`, Event{}, true},
		{`{"Sell":1}`, Event{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got Event
			err := json.Unmarshal([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Unmarshal() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSeedBuildsGame(t *testing.T) {
	seed := Seed{Players: []SeedPlayer{{User: alice, Name: "Alice"}, {User: alice, Name: "Again"}}}
	if seed.Kind() != Kind {
		t.Errorf("Kind() = %q, want %q", seed.Kind(), Kind)
	}

	state := seed.Build(Route("abc"))
	if state.RouteName() != Kind {
		t.Errorf("RouteName() = %q", state.RouteName())
	}
	if state.TickInterval() != TickEvery {
		t.Errorf("TickInterval() = %v, want %v", state.TickInterval(), TickEvery)
	}

	view := state.View(alice).(View)
	if view.MyInventory == nil || view.MyInventory.Name != "Alice" || len(view.Others) != 0 {
		t.Errorf("duplicate seed players were not collapsed: %+v", view)
	}
}

func TestElementsGet(t *testing.T) {
	v := Elements{Fire: 1, Plant: 2, Water: 3, Earth: 4, Chaos: 5}
	for i, e := range AllElements {
		if got := v.Get(e); got != i+1 {
			t.Errorf("Get(%s) = %d, want %d", e, got, i+1)
		}
	}
}
