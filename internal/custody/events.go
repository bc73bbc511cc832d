package custody

import (
	"encoding/json"

	sdkmath "cosmossdk.io/math"
)

// Event is a log entry emitted by a confirmed transaction
type Event interface {
	EventName() string
}

type RoomCreated struct {
	Room       RoomID      `json:"room"`
	Creator    Address     `json:"creator"`
	BuyIn      sdkmath.Int `json:"buyIn"`
	MaxPlayers int         `json:"maxPlayers"`
}

type PlayerJoined struct {
	Room   RoomID  `json:"room"`
	Player Address `json:"player"`
}

type PlayerLeft struct {
	Room   RoomID      `json:"room"`
	Player Address     `json:"player"`
	Refund sdkmath.Int `json:"refund"`
}

type GameStarted struct {
	Room RoomID      `json:"room"`
	Pot  sdkmath.Int `json:"pot"`
}

type WinnerDeclared struct {
	Room   RoomID      `json:"room"`
	Winner Address     `json:"winner"`
	Amount sdkmath.Int `json:"amount"`
	Rake   sdkmath.Int `json:"rake"`
}

// CashGameSettled reports a proportional settlement. Payouts line up with
// Players and include the rounding dust paid to Winner.
type CashGameSettled struct {
	Room    RoomID        `json:"room"`
	Players []Address     `json:"players"`
	Payouts []sdkmath.Int `json:"payouts"`
	Rake    sdkmath.Int   `json:"rake"`
	Dust    sdkmath.Int   `json:"dust"`
	Winner  Address       `json:"winner"`
}

type RoomCancelled struct {
	Room    RoomID      `json:"room"`
	Players []Address   `json:"players"`
	Refund  sdkmath.Int `json:"refund"`
}

type RakeUpdated struct {
	Bps uint32 `json:"bps"`
}

func (RoomCreated) EventName() string { return "RoomCreated" }
func (PlayerJoined) EventName() string { return "PlayerJoined" }
func (PlayerLeft) EventName() string { return "PlayerLeft" }
func (GameStarted) EventName() string { return "GameStarted" }
func (WinnerDeclared) EventName() string { return "WinnerDeclared" }
func (CashGameSettled) EventName() string { return "CashGameSettled" }
func (RoomCancelled) EventName() string { return "RoomCancelled" }
func (RakeUpdated) EventName() string { return "RakeUpdated" }

// CashSettlement returns the CashGameSettled event of the receipt
func (r Receipt) CashSettlement() (CashGameSettled, bool) {
	for _, e := range r.Events {
		if ev, ok := e.(CashGameSettled); ok {
			return ev, true
		}
	}
	return CashGameSettled{}, false
}

// WinnerDeclared returns the WinnerDeclared event of the receipt
func (r Receipt) WinnerDeclared() (WinnerDeclared, bool) {
	for _, e := range r.Events {
		if ev, ok := e.(WinnerDeclared); ok {
			return ev, true
		}
	}
	return WinnerDeclared{}, false
}

// Cancelled returns the RoomCancelled event of the receipt
func (r Receipt) Cancelled() (RoomCancelled, bool) {
	for _, e := range r.Events {
		if ev, ok := e.(RoomCancelled); ok {
			return ev, true
		}
	}
	return RoomCancelled{}, false
}

// MarshalJSON tags every event with its name so receipts can be logged and
// sent to clients as plain JSON.
func (r Receipt) MarshalJSON() ([]byte, error) {
	type namedEvent struct {
		Name string `json:"name"`
		Args Event  `json:"args"`
	}
	events := make([]namedEvent, len(r.Events))
	for i, e := range r.Events {
		events[i] = namedEvent{Name: e.EventName(), Args: e}
	}
	return json.Marshal(struct {
		TxHash string       `json:"txHash"`
		Block  uint64       `json:"block"`
		Events []namedEvent `json:"events"`
	}{r.TxHash, r.Block, events})
}
