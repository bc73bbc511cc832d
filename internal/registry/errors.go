package registry

import "github.com/lox/teenpatti/internal/fault"

var (
	ErrInvalidSession = fault.New(fault.Validation, "InvalidSession", "invalid session")
	ErrRoomNotFound   = fault.New(fault.Validation, "RoomNotFound", "room not found")
	ErrNotSeated      = fault.New(fault.StateConflict, "NotSeated", "session is not seated in a room")
	ErrAlreadySeated  = fault.New(fault.StateConflict, "AlreadySeated", "session is already seated in a room")
	ErrChainRoomBound = fault.New(fault.StateConflict, "ChainRoomBound", "custody room is already bound to another room")
)
