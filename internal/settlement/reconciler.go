// Package settlement moves a room's result from the off-chain chip ledger to
// the custody contract. Claimed chip counts are checked against the
// authoritative ledger, the payout is computed locally to fail fast, and only
// then is the contract called.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/charmbracelet/log"
	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/fault"
	"github.com/lox/teenpatti/internal/game"
	"github.com/lox/teenpatti/internal/payout"
)

// LedgerSource supplies the authoritative chip counts of a room. For rooms
// bound to a custody room, player ids are the players' chain addresses.
type LedgerSource interface {
	ChipLedger(roomID string) ([]game.ChipCount, error)
}

// LedgerFunc adapts a function to LedgerSource
type LedgerFunc func(roomID string) ([]game.ChipCount, error)

func (f LedgerFunc) ChipLedger(roomID string) ([]game.ChipCount, error) { return f(roomID) }

// Request asks for a proportional cash-game settlement
type Request struct {
	RoomID           string           `json:"roomId"`
	BlockchainRoomID custody.RoomID   `json:"blockchainRoomId"`
	Claimed          []game.ChipCount `json:"claimedChipCounts"`
}

// Payout is what one player receives
type Payout struct {
	Player custody.Address `json:"player"`
	Chips  int             `json:"chips,omitempty"`
	Amount sdkmath.Int     `json:"amount"`
}

// Response describes a confirmed settlement
type Response struct {
	Success bool            `json:"success"`
	TxHash  string          `json:"txHash,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payouts []Payout        `json:"payouts,omitempty"`
	Rake    sdkmath.Int     `json:"rake"`
	Dust    sdkmath.Int     `json:"dust"`
	Winner  custody.Address `json:"winner,omitempty"`
}

// Reconciler settles rooms on the custody contract. It holds no room state of
// its own: both the chip ledger and the chain are re-read for every call.
type Reconciler struct {
	ledger   LedgerSource
	contract custody.Contract
	operator custody.Address
	logger   *log.Logger

	mu       sync.Mutex
	inFlight map[custody.RoomID]bool
}

// New creates a reconciler that calls contract as operator
func New(ledger LedgerSource, contract custody.Contract, operator custody.Address, logger *log.Logger) *Reconciler {
	return &Reconciler{
		ledger:   ledger,
		contract: contract,
		operator: operator,
		logger:   logger.WithPrefix("settlement"),
		inFlight: make(map[custody.RoomID]bool),
	}
}

// begin marks a chain room as being settled. Only one settlement per room may
// be in flight; the contract would reject the second anyway, after gas.
func (r *Reconciler) begin(id custody.RoomID) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[id] {
		return nil, fmt.Errorf("room %s: %w", id.Short(), ErrSettlementInProgress)
	}
	r.inFlight[id] = true
	return func() {
		r.mu.Lock()
		delete(r.inFlight, id)
		r.mu.Unlock()
	}, nil
}

// Settle verifies the claimed chip counts and pays the pot out in proportion
// to them. Failed custody calls are not retried: the caller must re-read the
// chain before trying again.
func (r *Reconciler) Settle(ctx context.Context, req Request) (Response, error) {
	if req.RoomID == "" || req.BlockchainRoomID.IsZero() || len(req.Claimed) == 0 {
		return Response{}, fmt.Errorf("room id, blockchain room id and chip counts are required: %w", ErrInvalidRequest)
	}
	done, err := r.begin(req.BlockchainRoomID)
	if err != nil {
		return Response{}, err
	}
	defer done()

	logger := r.logger.With("room", req.RoomID, "chainRoom", req.BlockchainRoomID.Short())

	ledger, err := r.ledger.ChipLedger(req.RoomID)
	if err != nil {
		return Response{}, err
	}
	if err := Verify(req.Claimed, ledger); err != nil {
		logger.Warn("Rejected suspicious chip counts", "error", err)
		return Response{}, err
	}

	details, err := r.activeRoom(ctx, req.BlockchainRoomID)
	if err != nil {
		return Response{}, err
	}

	players := make([]custody.Address, len(ledger))
	chips := make([]int, len(ledger))
	for i, row := range ledger {
		players[i] = custody.Address(row.Player)
		chips[i] = row.Chips
	}
	if !custody.SamePlayers(details.Players, players) {
		logger.Warn("Chain players differ from room ledger", "chain", details.Players, "ledger", players)
		return Response{}, fmt.Errorf("chain has %d players, ledger %d: %w", len(details.Players), len(players), ErrChainPlayerMismatch)
	}

	bps, err := r.contract.RakeBps(ctx)
	if err != nil {
		return Response{}, custodyError(err)
	}
	preflight, err := payout.Proportional(details.Pot, bps, chips)
	if err != nil {
		return Response{}, err
	}

	logger.Info("Settling cash game", "pot", details.Pot, "rakeBps", bps, "players", len(players))
	rcpt, err := r.contract.SettleCashGame(ctx, r.operator, req.BlockchainRoomID, players, chips)
	if err != nil {
		logger.Error("Cash game settlement failed", "error", err)
		return Response{}, custodyError(err)
	}

	resp := Response{
		Success: true,
		TxHash:  rcpt.TxHash,
		Rake:    preflight.Rake,
		Dust:    preflight.Dust,
		Winner:  players[preflight.WinnerIndex],
		Payouts: make([]Payout, len(players)),
	}
	for i, p := range players {
		resp.Payouts[i] = Payout{Player: p, Chips: chips[i], Amount: preflight.Payouts[i]}
	}

	ev, ok := rcpt.CashSettlement()
	if !ok {
		logger.Warn("Settlement receipt has no CashGameSettled event", "tx", rcpt.TxHash)
		return resp, nil
	}
	if !matchesPreflight(ev, players, preflight) {
		logger.Warn("Custody payouts differ from pre-flight calculation", "tx", rcpt.TxHash)
	}
	// the chain moved the tokens, so its numbers win
	amounts := make(map[custody.Address]sdkmath.Int, len(ev.Players))
	for i, p := range ev.Players {
		amounts[p] = ev.Payouts[i]
	}
	for i := range resp.Payouts {
		if a, ok := amounts[resp.Payouts[i].Player]; ok {
			resp.Payouts[i].Amount = a
		}
	}
	resp.Rake, resp.Dust, resp.Winner = ev.Rake, ev.Dust, ev.Winner

	logger.Info("Cash game settled", "tx", rcpt.TxHash, "winner", resp.Winner, "rake", resp.Rake, "dust", resp.Dust)
	return resp, nil
}

// DeclareWinner pays the whole pot minus rake to winner
func (r *Reconciler) DeclareWinner(ctx context.Context, roomID string, chainRoom custody.RoomID, winner custody.Address) (Response, error) {
	if chainRoom.IsZero() || winner == "" {
		return Response{}, fmt.Errorf("blockchain room id and winner are required: %w", ErrInvalidRequest)
	}
	done, err := r.begin(chainRoom)
	if err != nil {
		return Response{}, err
	}
	defer done()

	logger := r.logger.With("room", roomID, "chainRoom", chainRoom.Short())

	details, err := r.activeRoom(ctx, chainRoom)
	if err != nil {
		return Response{}, err
	}
	if !details.HasPlayer(winner) {
		return Response{}, fmt.Errorf("%s: %w", winner, ErrInvalidWinner)
	}

	bps, err := r.contract.RakeBps(ctx)
	if err != nil {
		return Response{}, custodyError(err)
	}
	split, err := payout.SingleWinner(details.Pot, bps)
	if err != nil {
		return Response{}, err
	}

	rcpt, err := r.contract.DeclareWinner(ctx, r.operator, chainRoom, winner)
	if err != nil {
		logger.Error("Declare winner failed", "error", err)
		return Response{}, custodyError(err)
	}

	resp := Response{
		Success: true,
		TxHash:  rcpt.TxHash,
		Payouts: []Payout{{Player: winner, Amount: split.Winner}},
		Rake:    split.Rake,
		Dust:    sdkmath.ZeroInt(),
		Winner:  winner,
	}
	if ev, ok := rcpt.WinnerDeclared(); ok {
		if !ev.Amount.Equal(split.Winner) {
			logger.Warn("Custody payout differs from pre-flight calculation", "chain", ev.Amount, "preflight", split.Winner)
		}
		resp.Payouts[0].Amount = ev.Amount
		resp.Rake = ev.Rake
	}
	logger.Info("Winner declared", "tx", rcpt.TxHash, "winner", winner, "amount", resp.Payouts[0].Amount)
	return resp, nil
}

func (r *Reconciler) activeRoom(ctx context.Context, id custody.RoomID) (custody.RoomDetails, error) {
	details, err := r.contract.GetRoomDetails(ctx, id)
	if err != nil {
		return custody.RoomDetails{}, custodyError(err)
	}
	if details.State != custody.StateActive {
		return custody.RoomDetails{}, fmt.Errorf("room %s is %s: %w", id.Short(), details.State, ErrGameNotActive)
	}
	return details, nil
}

// custodyError classifies a failed contract call. A GameNotActive revert
// means another settlement or a timeout got there first.
func custodyError(err error) error {
	if errors.Is(err, custody.ErrGameNotActive) {
		return fault.Wrap(ErrGameNotActive, err)
	}
	return fault.Wrap(ErrCustody, err)
}

func matchesPreflight(ev custody.CashGameSettled, players []custody.Address, d payout.Distribution) bool {
	if len(ev.Payouts) != len(players) || !ev.Rake.Equal(d.Rake) {
		return false
	}
	want := make(map[custody.Address]sdkmath.Int, len(players))
	for i, p := range players {
		want[p] = d.Payouts[i]
	}
	for i, p := range ev.Players {
		w, ok := want[p]
		if !ok || !w.Equal(ev.Payouts[i]) {
			return false
		}
	}
	return true
}

// Verify checks claimed chip counts against the authoritative ledger: the
// same players, each exactly once, with exactly the same counts. A mismatch
// is never corrected.
func Verify(claimed, ledger []game.ChipCount) error {
	want := make(map[string]int, len(ledger))
	for _, row := range ledger {
		want[row.Player] = row.Chips
	}

	seen := make(map[string]bool, len(claimed))
	for _, c := range claimed {
		if seen[c.Player] {
			return fmt.Errorf("player %s claimed twice: %w", c.Player, ErrChipMismatch)
		}
		seen[c.Player] = true

		chips, ok := want[c.Player]
		if !ok {
			return fmt.Errorf("player %s is not in the room: %w", c.Player, ErrChipMismatch)
		}
		if chips != c.Chips {
			return fmt.Errorf("player %s claimed %d, ledger has %d: %w", c.Player, c.Chips, chips, ErrChipMismatch)
		}
	}
	if len(claimed) != len(ledger) {
		return fmt.Errorf("claimed %d players, ledger has %d: %w", len(claimed), len(ledger), ErrChipMismatch)
	}
	return nil
}
