// Package fault classifies the errors the game core can return.
//
// Every rejection carries a Kind, which decides how callers react, and a Code
// naming the rule that was violated, which is what clients see:
//
//	Validation         bad input; nothing was mutated
//	StateConflict      the action does not fit the current state; nothing was mutated
//	IntegrityViolation submitted data disagrees with the authoritative ledger
//	ExternalFailure    the custody layer reverted or failed
//	FatalInvariant     an internal invariant broke; raised by panic, never returned
package fault

import (
	"errors"
	"fmt"
)

// Kind is the class of a failure
type Kind int

const (
	Validation Kind = iota + 1
	StateConflict
	IntegrityViolation
	ExternalFailure
	FatalInvariant
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case StateConflict:
		return "state_conflict"
	case IntegrityViolation:
		return "integrity_violation"
	case ExternalFailure:
		return "external_failure"
	case FatalInvariant:
		return "fatal_invariant"
	default:
		return "unknown"
	}
}

// Error is a classified rejection. Sentinels are declared with New; call sites
// add context with fmt.Errorf("...: %w", ErrX) or Wrap.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New declares a sentinel error
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap returns a copy of sentinel carrying cause. errors.Is matches both.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code, so a wrapped copy still
// matches its sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf returns the rule code of err, or "internal" for unclassified errors
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// Invariant panics with a FatalInvariant error. It marks states that external
// input must never be able to reach.
func Invariant(format string, args ...any) {
	panic(&Error{Kind: FatalInvariant, Code: "FatalInvariant", Message: fmt.Sprintf(format, args...)})
}
