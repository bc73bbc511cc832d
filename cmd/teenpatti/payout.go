package main

import (
	"fmt"
	"io"
	"os"

	sdkmath "cosmossdk.io/math"
	"github.com/lox/teenpatti/internal/payout"
)

// PayoutCmd shows how a custody pot would be split for final chip counts
type PayoutCmd struct {
	Pot     string `arg:"" help:"Escrowed pot in token base units"`
	Chips   []int  `arg:"" help:"Final chip count of each player"`
	RakeBps uint32 `short:"r" default:"${rake_bps}" help:"House rake in basis points"`
}

func (c *PayoutCmd) Run() error {
	pot, ok := sdkmath.NewIntFromString(c.Pot)
	if !ok {
		return fmt.Errorf("pot %q is not an integer", c.Pot)
	}
	d, err := payout.Proportional(pot, c.RakeBps, c.Chips)
	if err != nil {
		return err
	}
	renderPayout(os.Stdout, pot, c.RakeBps, c.Chips, d)
	return nil
}

func renderPayout(w io.Writer, pot sdkmath.Int, bps uint32, chips []int, d payout.Distribution) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Pot %s, rake %d bps", pot, bps)))
	for i, c := range chips {
		line := fmt.Sprintf("  %d. %6d chips  %s", i+1, c, d.Payouts[i])
		if i == d.WinnerIndex && d.Dust.IsPositive() {
			line += winStyle.Render(fmt.Sprintf("  (+%s dust)", d.Dust))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "  rake %s\n", categoryStyle.Render(d.Rake.String()))
}
