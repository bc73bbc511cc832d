package game

import (
	"github.com/lox/teenpatti/internal/deck"
	"github.com/lox/teenpatti/internal/evaluator"
	"github.com/lox/teenpatti/internal/fault"
)

// EndReason says how a round finished
type EndReason string

const (
	EndByFold EndReason = "fold"
	EndByShow EndReason = "show"
)

// ShownHand is a hand revealed at showdown
type ShownHand struct {
	Cards       []deck.Card        `json:"cards"`
	Rank        evaluator.HandRank `json:"rank"`
	Description string             `json:"description"`
}

// Result is the outcome of a finished round. Payouts always add up to Pot.
type Result struct {
	Reason  EndReason            `json:"reason"`
	Winners []string             `json:"winners"`
	Pot     int                  `json:"pot"`
	Payouts map[string]int       `json:"payouts"`
	Hands   map[string]ShownHand `json:"hands,omitempty"`
}

// Tie reports whether the pot was split
func (r Result) Tie() bool {
	return len(r.Winners) > 1
}

func (r *Room) finishByFold() *Result {
	survivors := r.unfolded()
	if len(survivors) != 1 {
		fault.Invariant("room %s: fold finish with %d unfolded players", r.id, len(survivors))
	}
	return r.finish(&Result{
		Reason:  EndByFold,
		Winners: []string{survivors[0].ID},
	})
}

func (r *Room) finishByShow() *Result {
	contenders := r.unfolded()
	ranks := make([]evaluator.HandRank, len(contenders))
	hands := make(map[string]ShownHand, len(contenders))
	for i, p := range contenders {
		ranks[i] = evaluator.MustEvaluate(p.Cards)
		hands[p.ID] = ShownHand{
			Cards:       append([]deck.Card(nil), p.Cards...),
			Rank:        ranks[i],
			Description: ranks[i].String(),
		}
	}

	var winners []string
	for _, i := range evaluator.Winners(ranks) {
		winners = append(winners, contenders[i].ID)
	}
	return r.finish(&Result{
		Reason:  EndByShow,
		Winners: winners,
		Hands:   hands,
	})
}

// finish closes the betting. A split pot is shared equally; leftover chips go
// one at a time to the winners nearest the dealer's left.
func (r *Room) finish(res *Result) *Result {
	res.Pot = r.pot
	res.Payouts = make(map[string]int, len(res.Winners))

	won := make(map[string]bool, len(res.Winners))
	for _, id := range res.Winners {
		won[id] = true
		res.Payouts[id] = r.pot / len(res.Winners)
	}
	remainder := r.pot % len(res.Winners)
	n := len(r.players)
	for step := 1; step <= n && remainder > 0; step++ {
		if p := r.players[(r.dealer+step)%n]; won[p.ID] {
			res.Payouts[p.ID]++
			remainder--
		}
	}

	r.turn = -1
	r.state = RoundOver
	r.result = res
	return res
}
