package pomp

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// Element is one of the five resource colors.
type Element int

const (
	Fire Element = iota
	Plant
	Water
	Earth
	Chaos
)

var elementNames = [...]string{"Fire", "Plant", "Water", "Earth", "Chaos"}

// AllElements lists every element in order.
var AllElements = [...]Element{Fire, Plant, Water, Earth, Chaos}

func (e Element) String() string {
	if e < Fire || e > Chaos {
		return fmt.Sprintf("Element(%d)", int(e))
	}
	return elementNames[e]
}

func (e Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range elementNames {
		if n == name {
			*e = Element(i)
			return nil
		}
	}
	return fmt.Errorf("unknown element %q", name)
}

func randomElement(rng *rand.Rand) Element {
	return Element(rng.IntN(len(elementNames)))
}

// Elements holds one amount per element.
type Elements struct {
	Fire  int `json:"fire"`
	Plant int `json:"plant"`
	Water int `json:"water"`
	Earth int `json:"earth"`
	Chaos int `json:"chaos"`
}

func (v *Elements) slot(e Element) *int {
	switch e {
	case Fire:
		return &v.Fire
	case Plant:
		return &v.Plant
	case Water:
		return &v.Water
	case Earth:
		return &v.Earth
	default:
		return &v.Chaos
	}
}

// Add increases the amount of e by n.
func (v *Elements) Add(e Element, n int) {
	*v.slot(e) += n
}

// Get returns the amount of e.
func (v Elements) Get(e Element) int {
	return *v.slot(e)
}

func (v Elements) Total() int {
	return v.Fire + v.Plant + v.Water + v.Earth + v.Chaos
}

// Covers reports whether v is pointwise greater than or equal to other.
func (v Elements) Covers(other Elements) bool {
	return v.Fire >= other.Fire &&
		v.Plant >= other.Plant &&
		v.Water >= other.Water &&
		v.Earth >= other.Earth &&
		v.Chaos >= other.Chaos
}

func (v Elements) Plus(other Elements) Elements {
	return Elements{
		Fire:  v.Fire + other.Fire,
		Plant: v.Plant + other.Plant,
		Water: v.Water + other.Water,
		Earth: v.Earth + other.Earth,
		Chaos: v.Chaos + other.Chaos,
	}
}

// Minus subtracts other pointwise, flooring each amount at zero.
func (v Elements) Minus(other Elements) Elements {
	return Elements{
		Fire:  max(v.Fire-other.Fire, 0),
		Plant: max(v.Plant-other.Plant, 0),
		Water: max(v.Water-other.Water, 0),
		Earth: max(v.Earth-other.Earth, 0),
		Chaos: max(v.Chaos-other.Chaos, 0),
	}
}
