package chat

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Error is a fatal turn failure. State records how far the turn got before
// failing.
type Error struct {
	Code   ErrorCode
	State  State
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("turn failed at %s: %s", e.State, e.Reason)
	}
	return fmt.Sprintf("turn failed at %s: %s: %v", e.State, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, state State, reason string, err error) *Error {
	return &Error{Code: code, State: state, Reason: reason, Err: err}
}
