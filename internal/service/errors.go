package service

import (
	"errors"
	"fmt"
)

// Kind classifies transition failures for callers: validation is locally
// correctable, forbidden needs re-authentication, conflict is safe to retry
// with fresh data, invalid state means stale client state, upstream means the
// persistence or authorization call itself failed.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindForbidden
	KindConflict
	KindInvalidState
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is the typed transition error surfaced to callers. The bulk runner
// captures it per item so one failure never aborts a batch.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrKind extracts the Kind from any error in the chain, or 0.
func ErrKind(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

func IsValidation(err error) bool   { return ErrKind(err) == KindValidation }
func IsForbidden(err error) bool    { return ErrKind(err) == KindForbidden }
func IsConflict(err error) bool     { return ErrKind(err) == KindConflict }
func IsInvalidState(err error) bool { return ErrKind(err) == KindInvalidState }
func IsUpstream(err error) bool     { return ErrKind(err) == KindUpstream }

func validationErr(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func forbiddenErr(op, msg string) *Error {
	return &Error{Kind: KindForbidden, Op: op, Msg: msg}
}

func conflictErr(op, msg string, err error) *Error {
	return &Error{Kind: KindConflict, Op: op, Msg: msg, Err: err}
}

func invalidStateErr(op, msg string) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Msg: msg}
}

func upstreamErr(op, msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, Msg: msg, Err: err}
}
