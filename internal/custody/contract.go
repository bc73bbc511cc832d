// Package custody is the token escrow side of a room: buy-ins are held by a
// contract and paid out either to a declared winner or proportionally to the
// final chip counts. Contract is the call surface; Ledger is an in-memory
// contract with the same rules, used by the dev server and tests.
package custody

import (
	"context"
	"errors"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Address is an account on the custody chain
type Address string

// NormalizeAddress lower-cases hex addresses so comparisons are exact
func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

// RoomState is the on-chain lifecycle of a room
type RoomState int

const (
	StateWaiting RoomState = iota
	StateActive
	StateFinished
	StateCancelled
)

func (s RoomState) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateActive:
		return "ACTIVE"
	case StateFinished:
		return "FINISHED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

func (s RoomState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Closed reports whether the room can no longer move tokens
func (s RoomState) Closed() bool {
	return s == StateFinished || s == StateCancelled
}

// RoomDetails is the on-chain view of a room
type RoomDetails struct {
	ID         RoomID      `json:"id"`
	Creator    Address     `json:"creator"`
	BuyIn      sdkmath.Int `json:"buyIn"`
	Pot        sdkmath.Int `json:"pot"`
	MaxPlayers int         `json:"maxPlayers"`
	Players    []Address   `json:"players"`
	State      RoomState   `json:"state"`
	Winner     Address     `json:"winner,omitempty"`
	StartedAt  time.Time   `json:"startedAt,omitzero"`
}

// HasPlayer reports whether addr holds a seat in the room
func (d RoomDetails) HasPlayer(addr Address) bool {
	for _, p := range d.Players {
		if p == addr {
			return true
		}
	}
	return false
}

// Receipt is the result of a confirmed transaction
type Receipt struct {
	TxHash string  `json:"txHash"`
	Block  uint64  `json:"block"`
	Events []Event `json:"events"`
}

// Contract is the custody call surface. Every state-changing call is made on
// behalf of from and either confirms with a Receipt or reverts with a
// *RevertError. Calls may take as long as block confirmation does.
type Contract interface {
	CreateRoom(ctx context.Context, from Address, buyIn sdkmath.Int, maxPlayers int) (RoomID, Receipt, error)
	JoinRoom(ctx context.Context, from Address, room RoomID) (Receipt, error)
	LeaveRoom(ctx context.Context, from Address, room RoomID) (Receipt, error)
	StartGame(ctx context.Context, from Address, room RoomID) (Receipt, error)
	DeclareWinner(ctx context.Context, from Address, room RoomID, winner Address) (Receipt, error)
	SettleCashGame(ctx context.Context, from Address, room RoomID, players []Address, finalChips []int) (Receipt, error)
	HandleTimeout(ctx context.Context, from Address, room RoomID) (Receipt, error)
	GetRoomDetails(ctx context.Context, room RoomID) (RoomDetails, error)
	RakeBps(ctx context.Context) (uint32, error)
}

// RevertError is a rejected contract call. Reason is the contract's error name.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

// Is matches any revert with the same reason
func (e *RevertError) Is(target error) bool {
	var t *RevertError
	return errors.As(target, &t) && t.Reason == e.Reason
}

func revert(reason string) *RevertError {
	return &RevertError{Reason: reason}
}

// Revert reasons
var (
	ErrRoomNotFound        = revert("RoomNotFound")
	ErrRoomExists          = revert("RoomExists")
	ErrRoomFull            = revert("RoomFull")
	ErrAlreadyJoined       = revert("AlreadyJoined")
	ErrNotInRoom           = revert("NotInRoom")
	ErrNotWaiting          = revert("GameAlreadyStarted")
	ErrNotEnoughPlayers    = revert("NotEnoughPlayers")
	ErrGameNotActive       = revert("GameNotActive")
	ErrInsufficientBalance = revert("InsufficientBalance")
	ErrInvalidBuyIn        = revert("InvalidBuyIn")
	ErrInvalidMaxPlayers   = revert("InvalidMaxPlayers")
	ErrInvalidWinner       = revert("InvalidWinner")
	ErrPlayerMismatch      = revert("PlayerMismatch")
	ErrInvalidChips        = revert("InvalidChips")
	ErrTimeoutNotReached   = revert("TimeoutNotReached")
	ErrNotOperator         = revert("NotOperator")
	ErrNotOwner            = revert("NotOwner")
	ErrRakeTooHigh         = revert("RakeTooHigh")
)

// ReasonOf returns the revert reason carried by err, if any
func ReasonOf(err error) (string, bool) {
	var r *RevertError
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}
