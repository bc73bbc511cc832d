package server

import (
	"errors"

	"github.com/lox/teenpatti/internal/fault"
)

var (
	ErrCustodyDisabled = fault.New(fault.StateConflict, "CustodyDisabled", "custody is not configured on this server")
	ErrInvalidAddress  = fault.New(fault.Validation, "InvalidAddress", "a chain address is required for custody rooms")
	ErrInvalidBuyIn    = fault.New(fault.Validation, "InvalidBuyIn", "buy-in must be a positive integer")
	ErrRoomNotBound    = fault.New(fault.StateConflict, "RoomNotBound", "room is not bound to this custody room")
	ErrCustody         = fault.New(fault.ExternalFailure, "CustodyFailure", "custody call failed")
	ErrUnauthorized    = fault.New(fault.Validation, "Unauthorized", "settlement requires a valid operator token")
	ErrAuthUnavailable = fault.New(fault.ExternalFailure, "AuthUnavailable", "token could not be validated")
)

var errUnknownType = errors.New("unknown message type")

// decodeError marks a request whose payload could not be decoded
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }
