package evaluator

import (
	"context"
	"testing"

	"github.com/lox/teenpatti/internal/deck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOddsKnownHands(t *testing.T) {
	hands := [][]deck.Card{
		deck.MustParseCards("Ah Ad Ac"),
		deck.MustParseCards("2h 3d 5c"),
	}

	eq, err := Odds(context.Background(), hands, 500, 1)
	require.NoError(t, err)
	require.Len(t, eq, 2)

	assert.Equal(t, 500, eq[0].Samples)
	assert.Equal(t, 500, eq[0].Wins)
	assert.Equal(t, 0, eq[1].Wins)
	assert.InDelta(t, 1.0, eq[0].WinRate(), 1e-9)
}

func TestOddsDeterministic(t *testing.T) {
	hands := [][]deck.Card{
		deck.MustParseCards("Kh Kd"),
		nil,
		nil,
	}

	a, err := Odds(context.Background(), hands, 2000, 99)
	require.NoError(t, err)
	b, err := Odds(context.Background(), hands, 2000, 99)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	total := 0
	for _, e := range a {
		assert.Equal(t, 2000, e.Samples)
		total += e.Wins
	}
	assert.LessOrEqual(t, total, 2000)
	assert.Greater(t, a[0].WinRate(), a[1].WinRate(), "a made pair of kings should outperform a random hand")
}

func TestOddsRejectsDuplicates(t *testing.T) {
	hands := [][]deck.Card{
		deck.MustParseCards("Ah"),
		deck.MustParseCards("Ah"),
	}
	_, err := Odds(context.Background(), hands, 10, 1)
	assert.ErrorIs(t, err, ErrInvalidHand)
}

func TestOddsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Odds(ctx, [][]deck.Card{nil, nil}, 100, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
