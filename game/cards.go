package game

import (
	"fmt"
	"strings"
)

// Card is one immutable catalog entry. Attack values are rolled by the player
// within [MinAttack, MaxAttack]; Defense is how many guesses the defender
// submits per exchange; Bonus is added on top of a landed attack.
type Card struct {
	Name      string
	MinAttack int
	MaxAttack int
	Defense   int
	Bonus     int
}

// Catalog is the fixed card set every duel is played with. Loadouts are
// permutations of its indices.
var Catalog = [...]Card{
	{Name: "A", MinAttack: 1, MaxAttack: 5, Defense: 1, Bonus: 0},
	{Name: "B", MinAttack: 1, MaxAttack: 4, Defense: 2, Bonus: 1},
	{Name: "C", MinAttack: 1, MaxAttack: 2, Defense: 3, Bonus: 0},
}

// Rounds is the number of cards in a loadout cycle.
const Rounds = len(Catalog)

// Order is a loadout: a permutation of catalog indices. Order[round-1] selects
// the card a player fights with in that round.
type Order [Rounds]int

func DefaultOrder() Order {
	return Order{0, 1, 2}
}

// CardAt returns the card this order assigns to a 1-based round index.
func (o Order) CardAt(round int) Card {
	return Catalog[o[round-1]]
}

// CardIndex resolves a card name (case-insensitive) to its catalog index.
func CardIndex(name string) (int, bool) {
	for i, c := range Catalog {
		if strings.EqualFold(c.Name, name) {
			return i, true
		}
	}
	return 0, false
}

// ParseOrder parses a loadout argument: exactly Rounds space-separated card
// names, each from the catalog, no repeats.
func ParseOrder(arg string) (Order, error) {
	parts := strings.Fields(arg)
	if len(parts) != Rounds {
		return Order{}, fmt.Errorf("expected %d card names", Rounds)
	}
	var o Order
	var seen [Rounds]bool
	for i, p := range parts {
		idx, ok := CardIndex(p)
		if !ok {
			return Order{}, fmt.Errorf("card %s does not exist", p)
		}
		if seen[idx] {
			return Order{}, fmt.Errorf("card %s listed more than once", Catalog[idx].Name)
		}
		seen[idx] = true
		o[i] = idx
	}
	return o, nil
}

func (c Card) String() string {
	return fmt.Sprintf("%s | Atk %d-%d | Def %d | Bonus %d", c.Name, c.MinAttack, c.MaxAttack, c.Defense, c.Bonus)
}
