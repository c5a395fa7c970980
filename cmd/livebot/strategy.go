package main

import (
	"github.com/wricardo/livestate/game/pomp"
)

// Move is a pomp client event in its wire form.
type Move map[string]any

func buyElement(e pomp.Element) Move { return Move{"Buy": e} }
func buyCard(id int) Move            { return Move{"BuyCard": id} }

// nextMove picks the best affordable card, or else spends one energy on the
// element the closest card is missing. It reports false when there is nothing
// useful to do until the next energy arrives.
func nextMove(view pomp.View) (Move, bool) {
	inv := view.MyInventory
	if inv == nil {
		return nil, false
	}
	funds := inv.Elements.Plus(inv.Discount)

	var best, closest *pomp.Card
	closestNeed := 0
	for _, card := range view.Market {
		if card == nil {
			continue
		}
		need := card.Cost.Minus(funds).Total()
		if need == 0 {
			if best == nil || card.Points > best.Points || (card.Points == best.Points && card.ID < best.ID) {
				best = card
			}
			continue
		}
		if closest == nil || need < closestNeed ||
			(need == closestNeed && card.Points > closest.Points) ||
			(need == closestNeed && card.Points == closest.Points && card.ID < closest.ID) {
			closest, closestNeed = card, need
		}
	}

	if best != nil {
		return buyCard(best.ID), true
	}
	if closest == nil || inv.Energy < 1 {
		return nil, false
	}

	missing := closest.Cost.Minus(funds)
	for _, e := range pomp.AllElements {
		if missing.Get(e) > 0 {
			return buyElement(e), true
		}
	}
	return nil, false
}

// lobbyReady reports whether a lobby of at least want players is all ready.
func lobbyReady(players []bool, want int) bool {
	if len(players) < want {
		return false
	}
	for _, ready := range players {
		if !ready {
			return false
		}
	}
	return true
}
