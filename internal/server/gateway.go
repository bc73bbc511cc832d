package server

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lox/teenpatti/internal/auth"
	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/fault"
	"github.com/lox/teenpatti/internal/game"
	"github.com/lox/teenpatti/internal/protocol"
	"github.com/lox/teenpatti/internal/registry"
	"github.com/lox/teenpatti/internal/settlement"
)

// dispatch applies one client request for session and returns the ack
// payload
func (s *Server) dispatch(ctx context.Context, session string, msg *protocol.Message) (any, error) {
	if msg.Type.IsAction() {
		var bet protocol.Bet
		if msg.Type == protocol.TypeBet || msg.Type == protocol.TypeChaal {
			if err := decode(msg, &bet); err != nil {
				return nil, err
			}
		}
		a, err := game.ParseAction(msg.Type.String(), bet.Amount)
		if err != nil {
			return nil, err
		}
		return s.registry.Act(ctx, session, a)
	}

	switch msg.Type {
	case protocol.TypeCreateRoom:
		var data protocol.CreateRoom
		if err := decode(msg, &data); err != nil {
			return nil, err
		}
		return s.createRoom(ctx, session, data)

	case protocol.TypeJoinRoom:
		var data protocol.JoinRoom
		if err := decode(msg, &data); err != nil {
			return nil, err
		}
		return s.joinRoom(ctx, session, data)

	case protocol.TypeLeaveRoom:
		return nil, s.release(ctx, session, false)

	case protocol.TypeListRooms:
		return s.registry.Rooms(), nil

	case protocol.TypeStartRound:
		return nil, s.startRound(ctx, session)

	case protocol.TypeSettle:
		var data protocol.Settle
		if err := decode(msg, &data); err != nil {
			return nil, err
		}
		if err := s.authorize(ctx, session, data.Token); err != nil {
			return nil, err
		}
		roomID, _, ok := s.registry.Seat(session)
		if !ok {
			return nil, registry.ErrNotSeated
		}
		sum, err := s.registry.Summary(roomID)
		if err != nil {
			return nil, err
		}
		return s.settle(ctx, settlement.Request{RoomID: roomID, BlockchainRoomID: sum.ChainRoom, Claimed: data.Claimed})

	default:
		return nil, errUnknownType
	}
}

// authorize holds a websocket settle to the same operator token as
// POST /api/settle
func (s *Server) authorize(ctx context.Context, session, token string) error {
	id, err := s.auth.Validate(ctx, token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		s.logger.Warn("Rejected settle", "session", session)
		return ErrUnauthorized
	case err != nil:
		s.logger.Error("Auth service unavailable", "session", session, "error", err)
		return fault.Wrap(ErrAuthUnavailable, err)
	}
	if id != nil {
		s.logger.Debug("Settle authorized", "session", session, "subject", id.Subject)
	}
	return nil
}

func decode(msg *protocol.Message, v any) error {
	if err := msg.Decode(v); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

func (s *Server) chips(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.cfg.Game.DefaultChips
}

// createRoom opens a room. A buy-in also creates the custody room, escrowing
// the creator's tokens; a chain room id binds to an existing custody room.
func (s *Server) createRoom(ctx context.Context, session string, req protocol.CreateRoom) (game.Snapshot, error) {
	if _, _, ok := s.registry.Seat(session); ok {
		return game.Snapshot{}, registry.ErrAlreadySeated
	}
	player := registry.PlayerInfo{ID: session, Name: req.Name, Chips: s.chips(req.Chips)}
	opts := registry.RoomOptions{MinStake: req.MinStake, MaxPlayers: req.MaxPlayers, ChainRoom: req.ChainRoomID}

	if req.BuyIn != "" || !req.ChainRoomID.IsZero() {
		addr, err := s.custodyAccount(req.Address)
		if err != nil {
			return game.Snapshot{}, err
		}
		player.ID = string(addr)

		if req.BuyIn == "" {
			if err := s.takeChainSeat(ctx, addr, req.ChainRoomID); err != nil {
				return game.Snapshot{}, err
			}
		} else {
			if !req.ChainRoomID.IsZero() {
				return game.Snapshot{}, fmt.Errorf("buy-in given for existing custody room: %w", ErrInvalidBuyIn)
			}
			buyIn, ok := sdkmath.NewIntFromString(req.BuyIn)
			if !ok || !buyIn.IsPositive() {
				return game.Snapshot{}, fmt.Errorf("%q: %w", req.BuyIn, ErrInvalidBuyIn)
			}
			maxPlayers := req.MaxPlayers
			if maxPlayers == 0 {
				maxPlayers = s.cfg.Game.MaxPlayers
			}
			id, rcpt, err := s.contract.CreateRoom(ctx, addr, buyIn, maxPlayers)
			if err != nil {
				return game.Snapshot{}, fault.Wrap(ErrCustody, err)
			}
			s.logger.Info("Custody room created", "chainRoom", id.Short(), "creator", addr, "buyIn", buyIn, "tx", rcpt.TxHash)
			opts.ChainRoom = id
		}
	}
	return s.registry.CreateRoom(session, player, opts)
}

func (s *Server) joinRoom(ctx context.Context, session string, req protocol.JoinRoom) (game.Snapshot, error) {
	if _, _, ok := s.registry.Seat(session); ok {
		return game.Snapshot{}, registry.ErrAlreadySeated
	}
	sum, err := s.registry.Summary(req.RoomID)
	if err != nil {
		return game.Snapshot{}, err
	}
	player := registry.PlayerInfo{ID: session, Name: req.Name, Chips: s.chips(req.Chips)}
	if !sum.ChainRoom.IsZero() {
		addr, err := s.custodyAccount(req.Address)
		if err != nil {
			return game.Snapshot{}, err
		}
		if err := s.takeChainSeat(ctx, addr, sum.ChainRoom); err != nil {
			return game.Snapshot{}, err
		}
		player.ID = string(addr)
	}
	return s.registry.JoinRoom(session, req.RoomID, player)
}

// startRound starts the custody game of a bound room on its first round,
// then deals
func (s *Server) startRound(ctx context.Context, session string) error {
	roomID, _, ok := s.registry.Seat(session)
	if !ok {
		return registry.ErrNotSeated
	}
	sum, err := s.registry.Summary(roomID)
	if err != nil {
		return err
	}
	if !sum.ChainRoom.IsZero() {
		details, err := s.contract.GetRoomDetails(ctx, sum.ChainRoom)
		if err != nil {
			return fault.Wrap(ErrCustody, err)
		}
		switch {
		case details.State.Closed():
			s.registry.ChainStateChanged(roomID, details.State)
		case details.State == custody.StateWaiting:
			rcpt, err := s.contract.StartGame(ctx, s.operator, sum.ChainRoom)
			if err != nil {
				return fault.Wrap(ErrCustody, err)
			}
			s.logger.Info("Custody game started", "room", roomID, "chainRoom", sum.ChainRoom.Short(), "tx", rcpt.TxHash)
		}
	}
	return s.registry.StartRound(session)
}

// release gives up the session's seat. Leaving a bound room whose custody
// game has not started refunds the player's buy-in.
func (s *Server) release(ctx context.Context, session string, disconnected bool) error {
	roomID, player, ok := s.registry.Seat(session)
	if !ok {
		if disconnected {
			return nil
		}
		return registry.ErrNotSeated
	}
	sum, sumErr := s.registry.Summary(roomID)

	if disconnected {
		s.registry.Disconnect(ctx, session)
	} else if err := s.registry.Leave(ctx, session); err != nil {
		return err
	}

	if sumErr != nil || sum.ChainRoom.IsZero() {
		return nil
	}
	addr := custody.Address(player)
	details, err := s.contract.GetRoomDetails(ctx, sum.ChainRoom)
	if err != nil || details.State != custody.StateWaiting || !details.HasPlayer(addr) {
		return nil
	}
	if _, err := s.contract.LeaveRoom(ctx, addr, sum.ChainRoom); err != nil {
		s.logger.Warn("Custody refund failed", "room", roomID, "chainRoom", sum.ChainRoom.Short(), "player", addr, "error", err)
		return nil
	}
	s.logger.Info("Custody buy-in refunded", "room", roomID, "chainRoom", sum.ChainRoom.Short(), "player", addr)
	return nil
}

// settle runs a proportional settlement and tells the room about it. A
// GameNotActive rejection means the chain moved on without us, so the room is
// brought in line with the chain.
func (s *Server) settle(ctx context.Context, req settlement.Request) (settlement.Response, error) {
	if s.reconciler == nil {
		return failed(ErrCustodyDisabled), ErrCustodyDisabled
	}
	sum, err := s.registry.Summary(req.RoomID)
	if err != nil {
		return failed(err), err
	}
	if sum.ChainRoom.IsZero() || sum.ChainRoom != req.BlockchainRoomID {
		err := fmt.Errorf("room %s: %w", req.RoomID, ErrRoomNotBound)
		return failed(err), err
	}

	resp, err := s.reconciler.Settle(ctx, req)
	if err != nil {
		if errors.Is(err, settlement.ErrGameNotActive) {
			if details, derr := s.contract.GetRoomDetails(ctx, req.BlockchainRoomID); derr == nil {
				s.registry.ChainStateChanged(sum.ID, details.State)
			}
		}
		return failed(err), err
	}

	s.registry.Notify(sum.ID, registry.EventSettlement, registry.Settlement{
		RoomID:    sum.ID,
		ChainRoom: req.BlockchainRoomID,
		Response:  resp,
	})
	s.registry.ChainStateChanged(sum.ID, custody.StateFinished)
	return resp, nil
}

func failed(err error) settlement.Response {
	return settlement.Response{
		Success: false,
		Error:   err.Error(),
		Rake:    sdkmath.ZeroInt(),
		Dust:    sdkmath.ZeroInt(),
	}
}

// custodyAccount resolves the chain address of a player, funding it on first
// sight when a dev balance is configured
func (s *Server) custodyAccount(raw string) (custody.Address, error) {
	if s.contract == nil {
		return "", ErrCustodyDisabled
	}
	addr := custody.NormalizeAddress(raw)
	if addr == "" {
		return "", ErrInvalidAddress
	}
	if s.ledger == nil || s.devBalance.IsNil() {
		return addr, nil
	}

	s.fundMu.Lock()
	defer s.fundMu.Unlock()
	if !s.funded[addr] {
		s.funded[addr] = true
		s.ledger.Mint(addr, s.devBalance)
		s.logger.Debug("Funded dev account", "address", addr, "amount", s.devBalance)
	}
	return addr, nil
}

// takeChainSeat escrows addr's buy-in in a custody room unless it already has
// a seat there
func (s *Server) takeChainSeat(ctx context.Context, addr custody.Address, id custody.RoomID) error {
	details, err := s.contract.GetRoomDetails(ctx, id)
	if err != nil {
		return fault.Wrap(ErrCustody, err)
	}
	if details.HasPlayer(addr) {
		return nil
	}
	rcpt, err := s.contract.JoinRoom(ctx, addr, id)
	if err != nil {
		return fault.Wrap(ErrCustody, err)
	}
	s.logger.Info("Custody seat taken", "chainRoom", id.Short(), "player", addr, "tx", rcpt.TxHash)
	return nil
}
