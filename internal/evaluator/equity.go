package evaluator

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"runtime"

	"github.com/lox/teenpatti/internal/deck"
	"github.com/lox/teenpatti/internal/randutil"
	"golang.org/x/sync/errgroup"
)

// Equity is the Monte Carlo outcome for one seat
type Equity struct {
	Wins    int
	Ties    int
	Samples int
}

// WinRate is the share of samples the seat won outright
func (e Equity) WinRate() float64 {
	if e.Samples == 0 {
		return 0
	}
	return float64(e.Wins) / float64(e.Samples)
}

// TieRate is the share of samples the seat chopped
func (e Equity) TieRate() float64 {
	if e.Samples == 0 {
		return 0
	}
	return float64(e.Ties) / float64(e.Samples)
}

// workerResult holds the tallies from a Monte Carlo worker
type workerResult struct {
	wins []int
	ties []int
	n    int
}

// Odds estimates win and tie rates for each seat. Every hand may be partly
// known (0 to 3 cards); unknown cards are drawn from the rest of the deck.
// Sampling is split across workers, each with its own generator derived from
// seed, so a given seed always gives the same answer.
func Odds(ctx context.Context, hands [][]deck.Card, iterations int, seed int64) ([]Equity, error) {
	if len(hands) < 2 {
		return nil, fmt.Errorf("need at least 2 hands, got %d", len(hands))
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	var known []deck.Card
	seen := make(map[deck.Card]bool)
	for i, h := range hands {
		if len(h) > HandSize {
			return nil, fmt.Errorf("hand %d: %d cards: %w", i+1, len(h), ErrInvalidHand)
		}
		for _, c := range h {
			if !c.Valid() || seen[c] {
				return nil, fmt.Errorf("hand %d: card %s: %w", i+1, c, ErrInvalidHand)
			}
			seen[c] = true
			known = append(known, c)
		}
	}
	available := deck.Without(known...)

	workers := min(runtime.NumCPU(), iterations)
	perWorker := iterations / workers
	remainder := iterations % workers

	g, ctx := errgroup.WithContext(ctx)
	results := make([]workerResult, workers)
	for w := 0; w < workers; w++ {
		samples := perWorker
		if w < remainder {
			samples++
		}
		rng := randutil.New(seed + int64(w))

		g.Go(func() error {
			res, err := runOddsWorker(ctx, hands, available, samples, rng)
			if err != nil {
				return err
			}
			results[w] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	equities := make([]Equity, len(hands))
	for _, res := range results {
		for i := range equities {
			equities[i].Wins += res.wins[i]
			equities[i].Ties += res.ties[i]
			equities[i].Samples += res.n
		}
	}
	return equities, nil
}

func runOddsWorker(ctx context.Context, hands [][]deck.Card, available []deck.Card, samples int, rng *rand.Rand) (workerResult, error) {
	res := workerResult{
		wins: make([]int, len(hands)),
		ties: make([]int, len(hands)),
	}

	pool := make([]deck.Card, len(available))
	full := make([][]deck.Card, len(hands))
	ranks := make([]HandRank, len(hands))

	for s := 0; s < samples; s++ {
		if s%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		copy(pool, available)
		next := 0
		for i, h := range hands {
			full[i] = append(full[i][:0], h...)
			for len(full[i]) < HandSize {
				// partial Fisher-Yates: draw from the unshuffled suffix
				j := next + rng.IntN(len(pool)-next)
				pool[next], pool[j] = pool[j], pool[next]
				full[i] = append(full[i], pool[next])
				next++
			}
			ranks[i] = evaluate3(full[i][0], full[i][1], full[i][2])
		}

		winners := Winners(ranks)
		if len(winners) == 1 {
			res.wins[winners[0]]++
		} else {
			for _, w := range winners {
				res.ties[w]++
			}
		}
		res.n++
	}
	return res, nil
}
