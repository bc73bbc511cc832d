package game

import "github.com/lox/teenpatti/internal/deck"

// Player is a seat in a room. Chips persist across rounds; everything else is
// reset when a round starts.
type Player struct {
	ID         string
	Name       string
	Chips      int
	Cards      []deck.Card
	CurrentBet int // last amount put in this round
	TotalBet   int // everything put in this round, ante included
	Folded     bool
	Blind      bool
	Seen       bool
	AllIn      bool
	Departed   bool // left during a live round; removed when it closes
}

func (p *Player) resetForRound() {
	p.Cards = nil
	p.CurrentBet = 0
	p.TotalBet = 0
	p.Folded = false
	p.Blind = true
	p.Seen = false
	p.AllIn = false
}

// pay moves amount from the stack into the player's round contribution
func (p *Player) pay(amount int) {
	p.Chips -= amount
	p.CurrentBet = amount
	p.TotalBet += amount
	if p.Chips == 0 {
		p.AllIn = true
	}
}

// ChipCount is one row of a room's chip ledger
type ChipCount struct {
	Player string `json:"player"`
	Chips  int    `json:"chips"`
}
