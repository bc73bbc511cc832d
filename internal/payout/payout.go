// Package payout holds the pot arithmetic shared by the custody contract and
// the off-chain reconciler. Amounts are token units in cosmossdk.io/math Ints;
// chip counts are plain ints.
package payout

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lox/teenpatti/internal/fault"
)

const (
	// BasisPoints is the rake denominator
	BasisPoints = 10_000
	// MaxRakeBps caps the rake at 10%
	MaxRakeBps = 1_000
)

var (
	ErrRakeTooHigh   = fault.New(fault.Validation, "RakeTooHigh", "rake exceeds 1000 basis points")
	ErrNegativePot   = fault.New(fault.Validation, "NegativePot", "pot must not be negative")
	ErrNegativeChips = fault.New(fault.Validation, "NegativeChips", "chip counts must not be negative")
	ErrNoChips       = fault.New(fault.Validation, "NoChips", "total chips must be positive")
)

// Rake returns floor(pot * bps / 10000)
func Rake(pot sdkmath.Int, bps uint32) (sdkmath.Int, error) {
	if bps > MaxRakeBps {
		return sdkmath.ZeroInt(), fmt.Errorf("%d bps: %w", bps, ErrRakeTooHigh)
	}
	if pot.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativePot
	}
	return pot.MulRaw(int64(bps)).QuoRaw(BasisPoints), nil
}

// Single is the split of a pot paid to one declared winner
type Single struct {
	Winner sdkmath.Int
	Rake   sdkmath.Int
}

// SingleWinner pays pot minus rake to the winner
func SingleWinner(pot sdkmath.Int, bps uint32) (Single, error) {
	rake, err := Rake(pot, bps)
	if err != nil {
		return Single{}, err
	}
	return Single{Winner: pot.Sub(rake), Rake: rake}, nil
}

// Distribution is a proportional cash-game settlement.
//
// Shares are the floored proportional amounts; Payouts are what is actually
// transferred, which is Shares plus Dust for the player at WinnerIndex. Always
// Σ Shares + Dust == Distributable and Σ Payouts + Rake == pot.
type Distribution struct {
	Shares        []sdkmath.Int
	Payouts       []sdkmath.Int
	Rake          sdkmath.Int
	Distributable sdkmath.Int
	Dust          sdkmath.Int
	WinnerIndex   int
}

// Total returns the sum of Payouts
func (d Distribution) Total() sdkmath.Int {
	return sum(d.Payouts)
}

// Proportional splits pot minus rake in proportion to the final chip counts.
// Rounding dust goes to the single highest chip holder, the first one in input
// order when several hold the same count; that player is also the display
// winner.
func Proportional(pot sdkmath.Int, bps uint32, chips []int) (Distribution, error) {
	rake, err := Rake(pot, bps)
	if err != nil {
		return Distribution{}, err
	}

	total := sdkmath.ZeroInt()
	winner := -1
	for i, c := range chips {
		if c < 0 {
			return Distribution{}, fmt.Errorf("player %d has %d: %w", i, c, ErrNegativeChips)
		}
		total = total.AddRaw(int64(c))
		if winner == -1 || c > chips[winner] {
			winner = i
		}
	}
	if !total.IsPositive() {
		return Distribution{}, ErrNoChips
	}

	distributable := pot.Sub(rake)
	shares := make([]sdkmath.Int, len(chips))
	payouts := make([]sdkmath.Int, len(chips))
	for i, c := range chips {
		shares[i] = distributable.MulRaw(int64(c)).Quo(total)
		payouts[i] = shares[i]
	}

	dust := distributable.Sub(sum(shares))
	payouts[winner] = payouts[winner].Add(dust)

	return Distribution{
		Shares:        shares,
		Payouts:       payouts,
		Rake:          rake,
		Distributable: distributable,
		Dust:          dust,
		WinnerIndex:   winner,
	}, nil
}

func sum(xs []sdkmath.Int) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, x := range xs {
		total = total.Add(x)
	}
	return total
}
