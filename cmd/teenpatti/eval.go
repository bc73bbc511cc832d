package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/teenpatti/internal/deck"
	"github.com/lox/teenpatti/internal/evaluator"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	handStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	winStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	tieStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))
)

// EvalCmd ranks complete hands
type EvalCmd struct {
	Hands []string `arg:"" help:"Hands of three cards, e.g. 'As Ks Qs' '10h 10d 2c'"`
}

func (c *EvalCmd) Run() error {
	hands, err := parseHands(c.Hands, false)
	if err != nil {
		return err
	}
	return renderEval(os.Stdout, hands)
}

// parseHands parses one hand per argument. With partial set a hand may hold
// fewer than three cards, and "-" stands for a hand nobody has seen.
func parseHands(args []string, partial bool) ([][]deck.Card, error) {
	hands := make([][]deck.Card, 0, len(args))
	seen := make(map[deck.Card]int)
	for i, arg := range args {
		arg = strings.TrimSpace(arg)
		if partial && arg == "-" {
			hands = append(hands, nil)
			continue
		}
		hand, err := deck.ParseCards(arg)
		if err != nil {
			return nil, fmt.Errorf("hand %d: %w", i+1, err)
		}
		if len(hand) > evaluator.HandSize || (!partial && len(hand) != evaluator.HandSize) {
			return nil, fmt.Errorf("hand %d: want %d cards, got %d", i+1, evaluator.HandSize, len(hand))
		}
		for _, card := range hand {
			if prev, dup := seen[card]; dup {
				return nil, fmt.Errorf("hand %d: %s is already in hand %d", i+1, card, prev)
			}
			seen[card] = i + 1
		}
		hands = append(hands, hand)
	}
	return hands, nil
}

func formatHand(cards []deck.Card) string {
	if len(cards) == 0 {
		return "? ? ?"
	}
	parts := make([]string, evaluator.HandSize)
	for i := range parts {
		parts[i] = "?"
		if i < len(cards) {
			parts[i] = cards[i].String()
		}
	}
	return strings.Join(parts, " ")
}

func renderEval(w io.Writer, hands [][]deck.Card) error {
	ranks := make([]evaluator.HandRank, len(hands))
	for i, h := range hands {
		r, err := evaluator.Evaluate(h)
		if err != nil {
			return fmt.Errorf("hand %d: %w", i+1, err)
		}
		ranks[i] = r
	}
	winners := evaluator.Winners(ranks)

	fmt.Fprintln(w, headerStyle.Render("Hand rankings"))
	for i, r := range ranks {
		marker := ""
		if slices.Contains(winners, i) {
			if len(winners) > 1 {
				marker = tieStyle.Render("  tie")
			} else {
				marker = winStyle.Render("  wins")
			}
		}
		fmt.Fprintf(w, "  %d. %s  %s%s\n", i+1,
			handStyle.Render(formatHand(hands[i])),
			categoryStyle.Render(r.String()),
			marker)
	}
	return nil
}
