package evaluator

import (
	"fmt"

	"github.com/lox/teenpatti/internal/deck"
)

// Category is the class of a three card hand. Higher values are stronger.
type Category int

const (
	HighCard Category = iota
	Pair
	Color
	Sequence
	PureSequence
	Trio
)

// String returns the readable name of the category
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case Color:
		return "Color"
	case Sequence:
		return "Sequence"
	case PureSequence:
		return "Pure Sequence"
	case Trio:
		return "Trio"
	default:
		return "Unknown"
	}
}

// HandRank is the comparable value of a hand: its category plus a tie-break
// key of rank values, most significant first.
//
// Keys hold deck.Rank values (2..14) with one exception: the A-2-3 run stores
// its ace as 1 so it compares below 2-3-4.
type HandRank struct {
	Category Category `json:"category"`
	Key      [3]int   `json:"key"`
}

// Compare returns -1 if h is weaker, 0 if the hands tie, 1 if h is stronger
func (h HandRank) Compare(other HandRank) int {
	return Compare(h, other)
}

// Beats reports whether h is strictly stronger than other
func (h HandRank) Beats(other HandRank) bool {
	return Compare(h, other) > 0
}

// String describes the hand, e.g. "Pair of Kings, 5 kicker"
func (h HandRank) String() string {
	top := rankLabel(h.Key[0])
	switch h.Category {
	case Trio:
		return fmt.Sprintf("Trio of %s", deck.Rank(h.Key[0]).Name())
	case PureSequence, Sequence:
		return fmt.Sprintf("%s, %s high", h.Category, top)
	case Color:
		return fmt.Sprintf("Color, %s-%s-%s", top, rankLabel(h.Key[1]), rankLabel(h.Key[2]))
	case Pair:
		return fmt.Sprintf("Pair of %s, %s kicker", deck.Rank(h.Key[0]).Name(), rankLabel(h.Key[2]))
	case HighCard:
		return fmt.Sprintf("%s high", top)
	default:
		return "Unknown"
	}
}

func rankLabel(v int) string {
	if v == 1 {
		return deck.Ace.String()
	}
	return deck.Rank(v).String()
}
