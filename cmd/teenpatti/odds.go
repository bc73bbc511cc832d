package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lox/teenpatti/internal/deck"
	"github.com/lox/teenpatti/internal/evaluator"
)

// OddsCmd estimates each seat's chance of winning a show
type OddsCmd struct {
	Hands      []string `arg:"" help:"Known cards per seat, e.g. 'As Ks' '-' ('-' for an unseen hand)"`
	Iterations int      `short:"i" default:"100000" help:"Number of Monte Carlo samples"`
	Seed       *int64   `help:"Random seed for reproducible results"`
}

func (c *OddsCmd) Run() error {
	hands, err := parseHands(c.Hands, true)
	if err != nil {
		return err
	}
	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}

	start := time.Now()
	equities, err := evaluator.Odds(context.Background(), hands, c.Iterations, seed)
	if err != nil {
		return err
	}
	renderOdds(os.Stdout, hands, equities, time.Since(start))
	return nil
}

func renderOdds(w io.Writer, hands [][]deck.Card, equities []evaluator.Equity, took time.Duration) {
	samples := 0
	if len(equities) > 0 {
		samples = equities[0].Samples
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Show odds (%d samples, %s)", samples, took.Round(time.Millisecond))))
	for i, eq := range equities {
		fmt.Fprintf(w, "  %d. %s  %s  %s\n", i+1,
			handStyle.Render(formatHand(hands[i])),
			winStyle.Render(fmt.Sprintf("win %5.1f%%", eq.WinRate()*100)),
			tieStyle.Render(fmt.Sprintf("tie %5.1f%%", eq.TieRate()*100)))
	}
}
