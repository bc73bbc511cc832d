package evaluator

import (
	"context"
	"testing"

	"github.com/lox/teenpatti/internal/deck"
	"github.com/lox/teenpatti/internal/randutil"
)

// dealHands deals n random three card hands, each from a fresh shuffle
func dealHands(seed int64, n int) [][]deck.Card {
	d := deck.NewDeck(randutil.New(seed))
	hands := make([][]deck.Card, n)
	for i := range hands {
		d.Reset()
		hand := make([]deck.Card, 0, HandSize)
		for range HandSize {
			c, _ := d.Deal()
			hand = append(hand, c)
		}
		hands[i] = hand
	}
	return hands
}

func BenchmarkEvaluate(b *testing.B) {
	hands := dealHands(42, 1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = MustEvaluate(hands[i%len(hands)])
	}
}

func BenchmarkWinners(b *testing.B) {
	hands := dealHands(7, 6)
	ranks := make([]HandRank, len(hands))
	for i, h := range hands {
		ranks[i] = MustEvaluate(h)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Winners(ranks)
	}
}

func BenchmarkOdds(b *testing.B) {
	ctx := context.Background()
	hands := [][]deck.Card{
		deck.MustParseCards("As Ks Qs"),
		nil,
		nil,
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Odds(ctx, hands, 10_000, int64(i)); err != nil {
			b.Fatal(err)
		}
	}
}
