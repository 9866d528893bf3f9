package usecase

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed turn for the transport layer.
type ErrorCode string

const (
	// ErrorInvalidActivity means the inbound activity cannot be routed.
	ErrorInvalidActivity ErrorCode = "INVALID_ACTIVITY"
	// ErrorInternal covers state storage failures and anything unclassified.
	ErrorInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a request-level failure of the turn service. Reason is a short
// machine-readable detail such as "missing_conversation".
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CodeOf returns the code carried by err, or ErrorInternal when err is not
// an *Error.
func CodeOf(err error) ErrorCode {
	var ucErr *Error
	if errors.As(err, &ucErr) && ucErr.Code != "" {
		return ucErr.Code
	}
	return ErrorInternal
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
