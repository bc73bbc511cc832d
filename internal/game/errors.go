package game

import "github.com/lox/teenpatti/internal/fault"

// Rejections returned by Room. None of them leave the room mutated.
var (
	ErrInvalidConfig       = fault.New(fault.Validation, "InvalidConfig", "invalid room configuration")
	ErrInvalidPlayer       = fault.New(fault.Validation, "InvalidPlayer", "invalid player")
	ErrUnknownPlayer       = fault.New(fault.Validation, "UnknownPlayer", "player is not seated in this room")
	ErrNotYourTurn         = fault.New(fault.Validation, "NotYourTurn", "not your turn")
	ErrInvalidAction       = fault.New(fault.Validation, "InvalidAction", "unknown action")
	ErrInvalidBetAmount    = fault.New(fault.Validation, "InvalidBetAmount", "bet must equal the required stake or twice it")
	ErrAllInRequired       = fault.New(fault.Validation, "AllInRequired", "stack is below the required stake; only an all-in bet is allowed")
	ErrInsufficientChips   = fault.New(fault.Validation, "InsufficientChips", "not enough chips")
	ErrPlayerExists        = fault.New(fault.StateConflict, "PlayerExists", "player already seated")
	ErrRoomFull            = fault.New(fault.StateConflict, "RoomFull", "room is full")
	ErrInsufficientPlayers = fault.New(fault.StateConflict, "InsufficientPlayers", "not enough players to start")
	ErrRoundInProgress     = fault.New(fault.StateConflict, "RoundInProgress", "a round is in progress")
	ErrRoundNotActive      = fault.New(fault.StateConflict, "RoundNotActive", "no round is in progress")
	ErrRoundNotOver        = fault.New(fault.StateConflict, "RoundNotOver", "round has not ended")
	ErrRoomClosed          = fault.New(fault.StateConflict, "RoomClosed", "room is cancelled")
	ErrAlreadySeen         = fault.New(fault.StateConflict, "AlreadySeen", "cards already seen")
	ErrPotLimitReached     = fault.New(fault.StateConflict, "PotLimitReached", "pot limit reached; show is required")
)
