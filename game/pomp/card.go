package pomp

import "math/rand/v2"

// Card is a market card. Buying it grants its points and a permanent
// discount of one in its color.
type Card struct {
	ID     int      `json:"id"`
	Color  Element  `json:"color"`
	Points int      `json:"points"`
	Cost   Elements `json:"cost"`
}

type cardTemplate struct {
	points int
	cost   int
}

// Five equally likely draws per level; the second template appears twice.
var levelTemplates = [3][5]cardTemplate{
	{{0, 3}, {0, 4}, {0, 4}, {1, 5}, {1, 6}},
	{{2, 7}, {2, 8}, {2, 8}, {3, 9}, {3, 10}},
	{{4, 11}, {4, 12}, {4, 12}, {5, 13}, {5, 14}},
}

// Cards per player in each level's deck.
var deckSizes = [3]int{5, 10, 4}

// newCard spreads a fixed cost randomly across the elements.
func newCard(rng *rand.Rand, id, points, cost int) Card {
	card := Card{ID: id, Color: randomElement(rng), Points: points}
	for range cost {
		card.Cost.Add(randomElement(rng), 1)
	}
	return card
}

func randomCard(rng *rand.Rand, level, id int) Card {
	t := levelTemplates[level][rng.IntN(len(levelTemplates[level]))]
	return newCard(rng, id, t.points, t.cost)
}

// newDecks builds the three level decks for the given number of players.
// Card ids are unique across all decks.
func newDecks(rng *rand.Rand, players int) [3][]Card {
	var decks [3][]Card
	id := 0
	for level, size := range deckSizes {
		decks[level] = make([]Card, 0, players*size)
		for range players * size {
			decks[level] = append(decks[level], randomCard(rng, level, id))
			id++
		}
	}
	return decks
}
