package settlement

import (
	"context"
	"errors"
	"io"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/fault"
	"github.com/lox/teenpatti/internal/game"
	"github.com/lox/teenpatti/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	operator custody.Address = "0xoperator"
	treasury custody.Address = "0xtreasury"
	alice    custody.Address = "0xa11ce"
	bob      custody.Address = "0xb0b"
	carol    custody.Address = "0xca401"
	dave     custody.Address = "0xda5e"
)

type staticLedger map[string][]game.ChipCount

func (s staticLedger) ChipLedger(roomID string) ([]game.ChipCount, error) {
	rows, ok := s[roomID]
	if !ok {
		return nil, errors.New("room not found")
	}
	return rows, nil
}

type fixture struct {
	chain *custody.Ledger
	clock *quartz.Mock
	rooms staticLedger
	rec   *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := quartz.NewMock(t)
	chain, err := custody.NewLedger(custody.LedgerConfig{
		Operator: operator,
		Treasury: treasury,
		RakeBps:  500,
	}, clock, randutil.New(9), log.New(io.Discard))
	require.NoError(t, err)
	for _, a := range []custody.Address{alice, bob, carol, dave} {
		chain.Mint(a, sdkmath.NewInt(1000))
	}
	rooms := staticLedger{}
	return &fixture{
		chain: chain,
		clock: clock,
		rooms: rooms,
		rec:   New(rooms, chain, operator, log.New(io.Discard)),
	}
}

func (f *fixture) startChainRoom(t *testing.T, buyIn int64, players ...custody.Address) custody.RoomID {
	t.Helper()
	ctx := context.Background()
	id, _, err := f.chain.CreateRoom(ctx, players[0], sdkmath.NewInt(buyIn), custody.MaxRoomPlayers)
	require.NoError(t, err)
	for _, p := range players[1:] {
		_, err := f.chain.JoinRoom(ctx, p, id)
		require.NoError(t, err)
	}
	_, err = f.chain.StartGame(ctx, players[0], id)
	require.NoError(t, err)
	return id
}

func rows(pairs ...any) []game.ChipCount {
	var out []game.ChipCount
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, game.ChipCount{Player: string(pairs[i].(custody.Address)), Chips: pairs[i+1].(int)})
	}
	return out
}

func amounts(payouts []Payout) []string {
	out := make([]string, len(payouts))
	for i, p := range payouts {
		out[i] = p.Amount.String()
	}
	return out
}

func TestSettleProportional(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chainRoom := f.startChainRoom(t, 250, alice, bob, carol, dave)
	ledger := rows(alice, 5000, bob, 3000, carol, 2000, dave, 0)
	f.rooms["table-1"] = ledger

	resp, err := f.rec.Settle(ctx, Request{RoomID: "table-1", BlockchainRoomID: chainRoom, Claimed: ledger})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.TxHash)
	assert.Equal(t, []string{"475", "285", "190", "0"}, amounts(resp.Payouts))
	assert.Equal(t, "50", resp.Rake.String())
	assert.True(t, resp.Dust.IsZero())
	assert.Equal(t, alice, resp.Winner)
	assert.Equal(t, 5000, resp.Payouts[0].Chips)

	assert.Equal(t, "1225", f.chain.BalanceOf(alice).String())
	assert.Equal(t, "50", f.chain.BalanceOf(treasury).String())

	// replaying the same settlement is a state conflict and pays nothing
	_, err = f.rec.Settle(ctx, Request{RoomID: "table-1", BlockchainRoomID: chainRoom, Claimed: ledger})
	assert.ErrorIs(t, err, ErrGameNotActive)
	assert.True(t, fault.IsKind(err, fault.StateConflict))
	assert.Equal(t, "1225", f.chain.BalanceOf(alice).String())
}

func TestSettleDustGoesToChipLeader(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chainRoom := f.startChainRoom(t, 100, alice, bob, carol)
	ledger := rows(alice, 3333, bob, 3333, carol, 3334)
	f.rooms["t"] = ledger

	resp, err := f.rec.Settle(ctx, Request{RoomID: "t", BlockchainRoomID: chainRoom, Claimed: ledger})
	require.NoError(t, err)
	// 300 - 15 rake = 285; floors are 94, 94, 95 leaving 2
	assert.Equal(t, "2", resp.Dust.String())
	assert.Equal(t, carol, resp.Winner)
	assert.Equal(t, []string{"94", "94", "97"}, amounts(resp.Payouts))

	total := sdkmath.ZeroInt()
	for _, p := range resp.Payouts {
		total = total.Add(p.Amount)
	}
	assert.Equal(t, "285", total.String())
}

func TestSettleRejectsTamperedChips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chainRoom := f.startChainRoom(t, 100, alice, bob)
	f.rooms["t"] = rows(alice, 150, bob, 50)

	for name, claimed := range map[string][]game.ChipCount{
		"inflated": rows(alice, 151, bob, 49),
		"missing":  rows(alice, 150),
		"extra":    rows(alice, 150, bob, 50, carol, 0),
		"stranger": rows(alice, 150, carol, 50),
		"repeated": rows(alice, 150, alice, 150),
	} {
		_, err := f.rec.Settle(ctx, Request{RoomID: "t", BlockchainRoomID: chainRoom, Claimed: claimed})
		assert.ErrorIs(t, err, ErrChipMismatch, name)
		assert.True(t, fault.IsKind(err, fault.IntegrityViolation), name)
	}

	details, err := f.chain.GetRoomDetails(ctx, chainRoom)
	require.NoError(t, err)
	assert.Equal(t, custody.StateActive, details.State, "nothing reached the chain")
}

func TestSettleChainPlayersMustMatchLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chainRoom := f.startChainRoom(t, 100, alice, bob)
	ledger := rows(alice, 100, carol, 100)
	f.rooms["t"] = ledger

	_, err := f.rec.Settle(ctx, Request{RoomID: "t", BlockchainRoomID: chainRoom, Claimed: ledger})
	assert.ErrorIs(t, err, ErrChainPlayerMismatch)
	assert.True(t, fault.IsKind(err, fault.IntegrityViolation))
}

func TestSettleRequiresActiveGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chainRoom, _, err := f.chain.CreateRoom(ctx, alice, sdkmath.NewInt(100), 4)
	require.NoError(t, err)
	_, err = f.chain.JoinRoom(ctx, bob, chainRoom)
	require.NoError(t, err)
	ledger := rows(alice, 100, bob, 100)
	f.rooms["t"] = ledger

	_, err = f.rec.Settle(ctx, Request{RoomID: "t", BlockchainRoomID: chainRoom, Claimed: ledger})
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestSettleDuringLiveRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chainRoom := f.startChainRoom(t, 100, alice, bob)
	rec := New(LedgerFunc(func(roomID string) ([]game.ChipCount, error) {
		return nil, game.ErrRoundInProgress
	}), f.chain, operator, log.New(io.Discard))

	_, err := rec.Settle(ctx, Request{RoomID: "t", BlockchainRoomID: chainRoom, Claimed: rows(alice, 90, bob, 80)})
	assert.ErrorIs(t, err, game.ErrRoundInProgress)
	assert.True(t, fault.IsKind(err, fault.StateConflict))

	details, err := f.chain.GetRoomDetails(ctx, chainRoom)
	require.NoError(t, err)
	assert.Equal(t, custody.StateActive, details.State, "nothing is paid out mid-round")
	assert.Equal(t, "900", f.chain.BalanceOf(alice).String())
}

func TestSettleAfterTimeoutRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chainRoom := f.startChainRoom(t, 100, alice, bob)
	ledger := rows(alice, 120, bob, 80)
	f.rooms["t"] = ledger

	f.clock.Advance(custody.DefaultTimeout).MustWait(ctx)
	_, err := f.chain.HandleTimeout(ctx, carol, chainRoom)
	require.NoError(t, err)

	_, err = f.rec.Settle(ctx, Request{RoomID: "t", BlockchainRoomID: chainRoom, Claimed: ledger})
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestSettleInvalidRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rooms["t"] = rows(alice, 1)

	_, err := f.rec.Settle(ctx, Request{BlockchainRoomID: custody.RoomID{1}, Claimed: rows(alice, 1)})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.rec.Settle(ctx, Request{RoomID: "t", Claimed: rows(alice, 1)})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.rec.Settle(ctx, Request{RoomID: "t", BlockchainRoomID: custody.RoomID{1}})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.rec.Settle(ctx, Request{RoomID: "t", BlockchainRoomID: custody.RoomID{1}, Claimed: rows(alice, 1)})
	assert.ErrorIs(t, err, ErrCustody)
	assert.ErrorIs(t, err, custody.ErrRoomNotFound)
	assert.True(t, fault.IsKind(err, fault.ExternalFailure))

	_, err = f.rec.Settle(ctx, Request{RoomID: "unknown", BlockchainRoomID: custody.RoomID{1}, Claimed: rows(alice, 1)})
	assert.Error(t, err)
}

// blockingContract holds SettleCashGame until released
type blockingContract struct {
	custody.Contract
	entered chan struct{}
	release chan struct{}
}

func (b *blockingContract) SettleCashGame(ctx context.Context, from custody.Address, room custody.RoomID, players []custody.Address, chips []int) (custody.Receipt, error) {
	close(b.entered)
	<-b.release
	return b.Contract.SettleCashGame(ctx, from, room, players, chips)
}

func TestConcurrentSettlementIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chainRoom := f.startChainRoom(t, 100, alice, bob)
	ledger := rows(alice, 120, bob, 80)
	f.rooms["t"] = ledger

	slow := &blockingContract{Contract: f.chain, entered: make(chan struct{}), release: make(chan struct{})}
	rec := New(f.rooms, slow, operator, log.New(io.Discard))
	req := Request{RoomID: "t", BlockchainRoomID: chainRoom, Claimed: ledger}

	type result struct {
		resp Response
		err  error
	}
	first := make(chan result, 1)
	go func() {
		resp, err := rec.Settle(ctx, req)
		first <- result{resp, err}
	}()
	<-slow.entered

	_, err := rec.Settle(ctx, req)
	assert.ErrorIs(t, err, ErrSettlementInProgress)
	assert.True(t, fault.IsKind(err, fault.StateConflict))

	close(slow.release)
	got := <-first
	require.NoError(t, got.err)
	assert.True(t, got.resp.Success)

	_, err = f.rec.Settle(ctx, req)
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestDeclareWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chainRoom := f.startChainRoom(t, 100, alice, bob, carol)

	_, err := f.rec.DeclareWinner(ctx, "t", chainRoom, dave)
	assert.ErrorIs(t, err, ErrInvalidWinner)

	resp, err := f.rec.DeclareWinner(ctx, "t", chainRoom, bob)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"285"}, amounts(resp.Payouts))
	assert.Equal(t, "15", resp.Rake.String())
	assert.Equal(t, "1185", f.chain.BalanceOf(bob).String())

	_, err = f.rec.DeclareWinner(ctx, "t", chainRoom, bob)
	assert.ErrorIs(t, err, ErrGameNotActive)

	_, err = f.rec.DeclareWinner(ctx, "t", custody.RoomID{}, bob)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestVerify(t *testing.T) {
	ledger := []game.ChipCount{{Player: "a", Chips: 10}, {Player: "b", Chips: 0}}

	assert.NoError(t, Verify([]game.ChipCount{{Player: "b", Chips: 0}, {Player: "a", Chips: 10}}, ledger))
	assert.ErrorIs(t, Verify([]game.ChipCount{{Player: "a", Chips: 10}}, ledger), ErrChipMismatch)
	assert.ErrorIs(t, Verify([]game.ChipCount{{Player: "a", Chips: 10}, {Player: "b", Chips: 1}}, ledger), ErrChipMismatch)
	assert.ErrorIs(t, Verify(nil, ledger), ErrChipMismatch)
}
