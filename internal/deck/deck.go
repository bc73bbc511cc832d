package deck

import (
	rand "math/rand/v2"
)

// Size is the number of cards in a standard deck
const Size = 52

// Deck represents a deck of playing cards. Cards are dealt from the tail.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck creates a new standard 52-card deck in canonical order. The rng is
// used by Shuffle and must not be shared with another goroutine.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, Size),
		rng:   rng,
	}
	d.fill()
	return d
}

func (d *Deck) fill() {
	d.cards = d.cards[:0]
	for suit := Hearts; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(rank, suit))
		}
	}
}

// Shuffle randomizes the order of the remaining cards (Fisher-Yates)
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Reset restores the deck to all 52 cards and shuffles it
func (d *Deck) Reset() {
	d.fill()
	d.Shuffle()
}

// Deal pops a card from the tail of the deck
func (d *Deck) Deal() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}

	last := len(d.cards) - 1
	card := d.cards[last]
	d.cards = d.cards[:last]
	return card, true
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}

// Without returns the cards of a full deck that are not in exclude, in
// canonical order.
func Without(exclude ...Card) []Card {
	used := make(map[Card]bool, len(exclude))
	for _, c := range exclude {
		used[c] = true
	}

	remaining := make([]Card, 0, Size-len(used))
	for suit := Hearts; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			c := NewCard(rank, suit)
			if !used[c] {
				remaining = append(remaining, c)
			}
		}
	}
	return remaining
}
