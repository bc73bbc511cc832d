package evaluator

import (
	"fmt"
	"sort"

	"github.com/lox/teenpatti/internal/deck"
	"github.com/lox/teenpatti/internal/fault"
)

// HandSize is the number of cards in a Teen Patti hand
const HandSize = 3

// ErrInvalidHand is returned for anything other than three distinct valid cards
var ErrInvalidHand = fault.New(fault.Validation, "InvalidHand", "hand must be three distinct cards")

// Evaluate ranks a three card hand.
func Evaluate(cards []deck.Card) (HandRank, error) {
	if len(cards) != HandSize {
		return HandRank{}, fmt.Errorf("got %d cards: %w", len(cards), ErrInvalidHand)
	}
	for i, c := range cards {
		if !c.Valid() {
			return HandRank{}, fmt.Errorf("card %d (%+v): %w", i, c, ErrInvalidHand)
		}
		for _, other := range cards[:i] {
			if c == other {
				return HandRank{}, fmt.Errorf("duplicate %s: %w", c, ErrInvalidHand)
			}
		}
	}
	return evaluate3(cards[0], cards[1], cards[2]), nil
}

// MustEvaluate is Evaluate for hands already known to be valid (dealt from a
// deck). It panics otherwise.
func MustEvaluate(cards []deck.Card) HandRank {
	h, err := Evaluate(cards)
	if err != nil {
		panic(err)
	}
	return h
}

func evaluate3(a, b, c deck.Card) HandRank {
	r := []int{int(a.Rank), int(b.Rank), int(c.Rank)}
	sort.Sort(sort.Reverse(sort.IntSlice(r)))

	sameSuit := a.Suit == b.Suit && b.Suit == c.Suit

	if r[0] == r[1] && r[1] == r[2] {
		return HandRank{Category: Trio, Key: [3]int{r[0], r[1], r[2]}}
	}

	if key, ok := sequenceKey(r); ok {
		if sameSuit {
			return HandRank{Category: PureSequence, Key: key}
		}
		return HandRank{Category: Sequence, Key: key}
	}

	if sameSuit {
		return HandRank{Category: Color, Key: [3]int{r[0], r[1], r[2]}}
	}

	// sorting puts the paired ranks next to each other whatever the deal order
	switch {
	case r[0] == r[1]:
		return HandRank{Category: Pair, Key: [3]int{r[0], r[0], r[2]}}
	case r[1] == r[2]:
		return HandRank{Category: Pair, Key: [3]int{r[1], r[1], r[0]}}
	}

	return HandRank{Category: HighCard, Key: [3]int{r[0], r[1], r[2]}}
}

// sequenceKey detects a run in descending-sorted ranks. A-2-3 is the lowest
// run: its ace counts as 1.
func sequenceKey(r []int) ([3]int, bool) {
	if r[0] == r[1]+1 && r[1] == r[2]+1 {
		return [3]int{r[0], r[1], r[2]}, true
	}
	if r[0] == int(deck.Ace) && r[1] == int(deck.Three) && r[2] == int(deck.Two) {
		return [3]int{3, 2, 1}, true
	}
	return [3]int{}, false
}

// Compare returns 1 if a beats b, -1 if b beats a and 0 on a tie. Suits never
// break ties.
func Compare(a, b HandRank) int {
	if a.Category != b.Category {
		if a.Category > b.Category {
			return 1
		}
		return -1
	}
	for i := range a.Key {
		if a.Key[i] > b.Key[i] {
			return 1
		}
		if a.Key[i] < b.Key[i] {
			return -1
		}
	}
	return 0
}

// Winners returns the indices of every hand tied for best. It returns nil for
// an empty slice.
func Winners(hands []HandRank) []int {
	var best []int
	for i, h := range hands {
		if len(best) == 0 {
			best = []int{i}
			continue
		}
		switch Compare(h, hands[best[0]]) {
		case 1:
			best = []int{i}
		case 0:
			best = append(best, i)
		}
	}
	return best
}
