package settlement

import "github.com/lox/teenpatti/internal/fault"

var (
	ErrInvalidRequest       = fault.New(fault.Validation, "InvalidRequest", "invalid settlement request")
	ErrInvalidWinner        = fault.New(fault.Validation, "InvalidWinner", "winner is not a player in the on-chain room")
	ErrChipMismatch         = fault.New(fault.IntegrityViolation, "ChipMismatch", "claimed chip counts do not match the room ledger")
	ErrChainPlayerMismatch  = fault.New(fault.IntegrityViolation, "ChainPlayerMismatch", "on-chain players do not match the room ledger")
	ErrGameNotActive        = fault.New(fault.StateConflict, "GameNotActive", "on-chain game is not active")
	ErrSettlementInProgress = fault.New(fault.StateConflict, "SettlementInProgress", "a settlement for this room is already in flight")
	ErrCustody              = fault.New(fault.ExternalFailure, "CustodyFailure", "custody call failed")
)
