package custody

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"slices"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/teenpatti/internal/payout"
)

const (
	// DefaultTimeout is how long a game may stay ACTIVE before anyone can
	// cancel it and refund the buy-ins
	DefaultTimeout = time.Hour
	DefaultRakeBps = 250
	MaxRoomPlayers = 6

	roomIDAttempts = 8
)

// LedgerConfig sets the privileged accounts and rules of a Ledger
type LedgerConfig struct {
	Owner    Address // may change the rake
	Operator Address // the game server; the only account allowed to pay out
	Treasury Address // receives the rake
	RakeBps  uint32
	Timeout  time.Duration
}

// Ledger is an in-memory custody contract. All calls confirm immediately and
// are applied atomically under one lock.
type Ledger struct {
	mu       sync.Mutex
	cfg      LedgerConfig
	clock    quartz.Clock
	rng      *rand.Rand
	logger   *log.Logger
	balances map[Address]sdkmath.Int
	rooms    map[RoomID]*RoomDetails
	chain    *chain
}

var _ Contract = (*Ledger)(nil)

// NewLedger creates an empty ledger. A zero Timeout takes DefaultTimeout.
func NewLedger(cfg LedgerConfig, clock quartz.Clock, rng *rand.Rand, logger *log.Logger) (*Ledger, error) {
	if cfg.RakeBps > payout.MaxRakeBps {
		return nil, fmt.Errorf("rake %d bps: %w", cfg.RakeBps, payout.ErrRakeTooHigh)
	}
	if cfg.Operator == "" || cfg.Treasury == "" {
		return nil, errors.New("custody ledger needs an operator and a treasury")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Ledger{
		cfg:      cfg,
		clock:    clock,
		rng:      rng,
		logger:   logger.WithPrefix("custody"),
		balances: make(map[Address]sdkmath.Int),
		rooms:    make(map[RoomID]*RoomDetails),
		chain:    newChain(clock.Now()),
	}, nil
}

// Mint credits tokens to an account. It stands in for a faucet or bridge and
// is not recorded on the chain.
func (l *Ledger) Mint(to Address, amount sdkmath.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(to, amount)
}

// BalanceOf returns the free (not escrowed) balance of an account
func (l *Ledger) BalanceOf(a Address) sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(a)
}

// Treasury returns the account that collects the rake
func (l *Ledger) Treasury() Address {
	return l.cfg.Treasury
}

// Blocks returns a copy of the transaction log, genesis first
func (l *Ledger) Blocks() []Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.chain.blocks)
}

// Verify checks the hash chain of the transaction log
func (l *Ledger) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chain.verify()
}

func (l *Ledger) RakeBps(ctx context.Context) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.RakeBps, nil
}

// SetRakeBps changes the rake. Only the owner may call it.
func (l *Ledger) SetRakeBps(ctx context.Context, from Address, bps uint32) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.Owner == "" || from != l.cfg.Owner {
		return Receipt{}, ErrNotOwner
	}
	if bps > payout.MaxRakeBps {
		return Receipt{}, ErrRakeTooHigh
	}
	l.cfg.RakeBps = bps
	return l.commit(from, "setRakeBps", RoomID{}, RakeUpdated{Bps: bps}), nil
}

func (l *Ledger) CreateRoom(ctx context.Context, from Address, buyIn sdkmath.Int, maxPlayers int) (RoomID, Receipt, error) {
	if err := ctx.Err(); err != nil {
		return RoomID{}, Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if buyIn.IsNil() || !buyIn.IsPositive() {
		return RoomID{}, Receipt{}, ErrInvalidBuyIn
	}
	if maxPlayers < 2 || maxPlayers > MaxRoomPlayers {
		return RoomID{}, Receipt{}, ErrInvalidMaxPlayers
	}
	if l.balance(from).LT(buyIn) {
		return RoomID{}, Receipt{}, ErrInsufficientBalance
	}

	id, ok := l.freeRoomID()
	if !ok {
		return RoomID{}, Receipt{}, ErrRoomExists
	}

	// the creator takes the first seat
	l.debit(from, buyIn)
	l.rooms[id] = &RoomDetails{
		ID:         id,
		Creator:    from,
		BuyIn:      buyIn,
		Pot:        buyIn,
		MaxPlayers: maxPlayers,
		Players:    []Address{from},
		State:      StateWaiting,
	}
	rcpt := l.commit(from, "createRoom", id,
		RoomCreated{Room: id, Creator: from, BuyIn: buyIn, MaxPlayers: maxPlayers},
		PlayerJoined{Room: id, Player: from},
	)
	return id, rcpt, nil
}

func (l *Ledger) freeRoomID() (RoomID, bool) {
	for range roomIDAttempts {
		id := NewRoomID(l.rng)
		if _, taken := l.rooms[id]; !taken && !id.IsZero() {
			return id, true
		}
	}
	return RoomID{}, false
}

func (l *Ledger) JoinRoom(ctx context.Context, from Address, id RoomID) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.room(id)
	if err != nil {
		return Receipt{}, err
	}
	switch {
	case room.State != StateWaiting:
		return Receipt{}, ErrNotWaiting
	case room.HasPlayer(from):
		return Receipt{}, ErrAlreadyJoined
	case len(room.Players) >= room.MaxPlayers:
		return Receipt{}, ErrRoomFull
	case l.balance(from).LT(room.BuyIn):
		return Receipt{}, ErrInsufficientBalance
	}

	l.debit(from, room.BuyIn)
	room.Pot = room.Pot.Add(room.BuyIn)
	room.Players = append(room.Players, from)
	return l.commit(from, "joinRoom", id, PlayerJoined{Room: id, Player: from}), nil
}

// LeaveRoom refunds the caller's buy-in. It is only allowed before the game
// starts; the last player out cancels the room.
func (l *Ledger) LeaveRoom(ctx context.Context, from Address, id RoomID) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.room(id)
	if err != nil {
		return Receipt{}, err
	}
	if room.State != StateWaiting {
		return Receipt{}, ErrNotWaiting
	}
	i := slices.Index(room.Players, from)
	if i < 0 {
		return Receipt{}, ErrNotInRoom
	}

	room.Players = slices.Delete(room.Players, i, i+1)
	room.Pot = room.Pot.Sub(room.BuyIn)
	l.credit(from, room.BuyIn)
	events := []Event{PlayerLeft{Room: id, Player: from, Refund: room.BuyIn}}
	if len(room.Players) == 0 {
		room.State = StateCancelled
		events = append(events, RoomCancelled{Room: id, Refund: sdkmath.ZeroInt()})
	}
	return l.commit(from, "leaveRoom", id, events...), nil
}

// StartGame locks the buy-ins. Any seated player or the operator may call it.
func (l *Ledger) StartGame(ctx context.Context, from Address, id RoomID) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.room(id)
	if err != nil {
		return Receipt{}, err
	}
	switch {
	case room.State != StateWaiting:
		return Receipt{}, ErrNotWaiting
	case from != l.cfg.Operator && !room.HasPlayer(from):
		return Receipt{}, ErrNotInRoom
	case len(room.Players) < 2:
		return Receipt{}, ErrNotEnoughPlayers
	}

	room.State = StateActive
	room.StartedAt = l.clock.Now()
	return l.commit(from, "startGame", id, GameStarted{Room: id, Pot: room.Pot}), nil
}

// DeclareWinner pays the pot minus rake to winner and finishes the room
func (l *Ledger) DeclareWinner(ctx context.Context, from Address, id RoomID, winner Address) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if from != l.cfg.Operator {
		return Receipt{}, ErrNotOperator
	}
	room, err := l.room(id)
	if err != nil {
		return Receipt{}, err
	}
	if room.State != StateActive {
		return Receipt{}, ErrGameNotActive
	}
	if !room.HasPlayer(winner) {
		return Receipt{}, ErrInvalidWinner
	}

	split, err := payout.SingleWinner(room.Pot, l.cfg.RakeBps)
	if err != nil {
		return Receipt{}, ErrRakeTooHigh
	}
	l.credit(winner, split.Winner)
	l.credit(l.cfg.Treasury, split.Rake)
	room.Pot = sdkmath.ZeroInt()
	room.State = StateFinished
	room.Winner = winner

	return l.commit(from, "declareWinner", id,
		WinnerDeclared{Room: id, Winner: winner, Amount: split.Winner, Rake: split.Rake},
	), nil
}

// SettleCashGame splits the pot in proportion to finalChips. players must be
// exactly the room's players, in any order, with finalChips aligned to them.
func (l *Ledger) SettleCashGame(ctx context.Context, from Address, id RoomID, players []Address, finalChips []int) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if from != l.cfg.Operator {
		return Receipt{}, ErrNotOperator
	}
	room, err := l.room(id)
	if err != nil {
		return Receipt{}, err
	}
	if room.State != StateActive {
		return Receipt{}, ErrGameNotActive
	}
	if len(players) != len(finalChips) {
		return Receipt{}, ErrInvalidChips
	}
	if !SamePlayers(room.Players, players) {
		return Receipt{}, ErrPlayerMismatch
	}

	dist, err := payout.Proportional(room.Pot, l.cfg.RakeBps, finalChips)
	if err != nil {
		return Receipt{}, ErrInvalidChips
	}
	for i, p := range players {
		l.credit(p, dist.Payouts[i])
	}
	l.credit(l.cfg.Treasury, dist.Rake)
	room.Pot = sdkmath.ZeroInt()
	room.State = StateFinished
	room.Winner = players[dist.WinnerIndex]

	return l.commit(from, "settleCashGame", id, CashGameSettled{
		Room:    id,
		Players: slices.Clone(players),
		Payouts: dist.Payouts,
		Rake:    dist.Rake,
		Dust:    dist.Dust,
		Winner:  room.Winner,
	}), nil
}

// HandleTimeout cancels a game that has been ACTIVE for longer than the
// timeout and refunds every buy-in. Anyone may call it.
func (l *Ledger) HandleTimeout(ctx context.Context, from Address, id RoomID) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.room(id)
	if err != nil {
		return Receipt{}, err
	}
	if room.State != StateActive {
		return Receipt{}, ErrGameNotActive
	}
	if l.clock.Now().Before(room.StartedAt.Add(l.cfg.Timeout)) {
		return Receipt{}, ErrTimeoutNotReached
	}

	for _, p := range room.Players {
		l.credit(p, room.BuyIn)
	}
	room.Pot = sdkmath.ZeroInt()
	room.State = StateCancelled
	l.logger.Warn("Room timed out", "room", id.Short(), "players", len(room.Players), "caller", from)

	return l.commit(from, "handleTimeout", id, RoomCancelled{
		Room:    id,
		Players: slices.Clone(room.Players),
		Refund:  room.BuyIn,
	}), nil
}

func (l *Ledger) GetRoomDetails(ctx context.Context, id RoomID) (RoomDetails, error) {
	if err := ctx.Err(); err != nil {
		return RoomDetails{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.room(id)
	if err != nil {
		return RoomDetails{}, err
	}
	details := *room
	details.Players = slices.Clone(room.Players)
	return details, nil
}

// SamePlayers reports whether a and b hold the same addresses, ignoring order.
// Duplicates never match.
func SamePlayers(a, b []Address) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[Address]int, len(a))
	for _, p := range a {
		seen[p]++
	}
	for _, p := range b {
		if seen[p] != 1 {
			return false
		}
		seen[p]--
	}
	return true
}

func (l *Ledger) room(id RoomID) (*RoomDetails, error) {
	room, ok := l.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (l *Ledger) balance(a Address) sdkmath.Int {
	if b, ok := l.balances[a]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) credit(a Address, amount sdkmath.Int) {
	l.balances[a] = l.balance(a).Add(amount)
}

func (l *Ledger) debit(a Address, amount sdkmath.Int) {
	l.balances[a] = l.balance(a).Sub(amount)
}

func (l *Ledger) commit(from Address, method string, room RoomID, events ...Event) Receipt {
	b := l.chain.append(l.clock.Now(), from, method, room, events)
	l.logger.Debug("Transaction confirmed", "method", method, "room", room.Short(), "block", b.Index, "tx", b.Hash)
	return Receipt{TxHash: b.Hash, Block: b.Index, Events: events}
}
