// Package protocol defines the JSON messages exchanged with clients over the
// WebSocket transport. Every frame is a Message envelope whose Data holds one
// of the payload types below.
package protocol

import (
	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/game"
)

// MessageType identifies the payload of a Message
type MessageType string

func (t MessageType) String() string { return string(t) }

const (
	// Client -> Server
	TypeCreateRoom MessageType = "create_room"
	TypeJoinRoom   MessageType = "join_room"
	TypeLeaveRoom  MessageType = "leave_room"
	TypeListRooms  MessageType = "list_rooms"
	TypeStartRound MessageType = "start_round"
	TypeSee        MessageType = "see"
	TypeBet        MessageType = "bet"
	TypeChaal      MessageType = "chaal"
	TypeFold       MessageType = "fold"
	TypePack       MessageType = "pack"
	TypeShow       MessageType = "show"
	TypeSettle     MessageType = "settle"

	// Server -> Client
	TypeAck         MessageType = "ack"
	TypeRoomList    MessageType = "room_list"
	TypeRoomState   MessageType = "room_state"
	TypePrivateHand MessageType = "private_hand"
	TypeTurnChanged MessageType = "turn_changed"
	TypeRoundEnded  MessageType = "round_ended"
	TypeSettlement  MessageType = "settlement"
	TypeError       MessageType = "error"
)

// IsAction reports whether t is a betting move
func (t MessageType) IsAction() bool {
	switch t {
	case TypeSee, TypeBet, TypeChaal, TypeFold, TypePack, TypeShow:
		return true
	}
	return false
}

// Client -> Server payloads

// CreateRoom opens a room. With a BuyIn the server also creates the custody
// room and escrows the creator's buy-in; with a ChainRoomID the new room is
// bound to an existing custody room. Both need an Address.
type CreateRoom struct {
	Name        string         `json:"name"`
	Address     string         `json:"address,omitempty"`
	BuyIn       string         `json:"buyIn,omitempty"`
	Chips       int            `json:"chips,omitempty"`
	MinStake    int            `json:"minStake,omitempty"`
	MaxPlayers  int            `json:"maxPlayers,omitempty"`
	ChainRoomID custody.RoomID `json:"chainRoomId,omitzero"`
}

// JoinRoom takes a seat
type JoinRoom struct {
	RoomID  string `json:"roomId"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Chips   int    `json:"chips,omitempty"`
}

// Bet is the payload of bet and chaal
type Bet struct {
	Amount int `json:"amount"`
}

// Settle asks for a proportional custody settlement of the sender's room.
// Token is the operator bearer token the settlement API would require.
type Settle struct {
	Claimed []game.ChipCount `json:"claimed"`
	Token   string           `json:"token,omitempty"`
}

// Server -> Client payloads

// Ack answers a request that succeeded
type Ack struct {
	Type   MessageType `json:"type"`
	Result any         `json:"result,omitempty"`
}

// Error answers a request that failed, or reports an asynchronous failure.
// Code is the name of the violated rule.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
