package game

import (
	"fmt"
	"strings"
)

// ActionKind is the closed set of moves a player can make on their turn
type ActionKind int

const (
	ActionSee ActionKind = iota + 1
	ActionBet
	ActionFold
	ActionShow
)

// String returns the wire name of the action
func (k ActionKind) String() string {
	switch k {
	case ActionSee:
		return "see"
	case ActionBet:
		return "bet"
	case ActionFold:
		return "fold"
	case ActionShow:
		return "show"
	default:
		return "unknown"
	}
}

// Action is a player move. Only Bet carries an amount.
type Action struct {
	Kind   ActionKind
	Amount int
}

// See looks at the player's cards, ending blind play
func See() Action { return Action{Kind: ActionSee} }

// Bet (chaal) puts amount chips into the pot
func Bet(amount int) Action { return Action{Kind: ActionBet, Amount: amount} }

// Fold (pack) gives up the round
func Fold() Action { return Action{Kind: ActionFold} }

// Show asks for a showdown of every unfolded hand
func Show() Action { return Action{Kind: ActionShow} }

func (a Action) String() string {
	if a.Kind == ActionBet {
		return fmt.Sprintf("bet %d", a.Amount)
	}
	return a.Kind.String()
}

// ParseAction maps a transport action name to an Action. "chaal" and "pack"
// are accepted as the traditional names for bet and fold.
func ParseAction(name string, amount int) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "see":
		return See(), nil
	case "bet", "chaal":
		return Bet(amount), nil
	case "fold", "pack":
		return Fold(), nil
	case "show":
		return Show(), nil
	default:
		return Action{}, fmt.Errorf("%q: %w", name, ErrInvalidAction)
	}
}
