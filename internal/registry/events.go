package registry

import (
	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/deck"
	"github.com/lox/teenpatti/internal/game"
	"github.com/lox/teenpatti/internal/settlement"
)

// EventType names an outbound event. The names are the transport message
// types.
type EventType string

const (
	EventRoomState   EventType = "room_state"
	EventPrivateHand EventType = "private_hand"
	EventTurnChanged EventType = "turn_changed"
	EventRoundEnded  EventType = "round_ended"
	EventSettlement  EventType = "settlement"
	EventError       EventType = "error"
)

// Event is addressed to the listed sessions
type Event struct {
	Type     EventType
	RoomID   string
	Sessions []string
	Data     any
}

// Publisher delivers events to sessions. Publish is called with the room's
// lock held, so events of one room arrive in order; it must not block or call
// back into the Registry.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ev Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

// PrivateHand carries a player's own cards
type PrivateHand struct {
	RoomID string      `json:"roomId"`
	Player string      `json:"player"`
	Cards  []deck.Card `json:"cards"`
}

// TurnChanged announces whose turn it is and what they owe
type TurnChanged struct {
	RoomID   string `json:"roomId"`
	Player   string `json:"player"`
	Required int    `json:"required"`
	Stake    int    `json:"currentStake"`
	Pot      int    `json:"pot"`
}

// RoundEnded reports the winners and payouts of a round
type RoundEnded struct {
	RoomID string `json:"roomId"`
	game.Result
}

// Settlement reports a confirmed custody payout
type Settlement struct {
	RoomID    string         `json:"roomId"`
	ChainRoom custody.RoomID `json:"blockchainRoomId"`
	settlement.Response
}

// ErrorEvent reports a failure that happened outside any request
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
