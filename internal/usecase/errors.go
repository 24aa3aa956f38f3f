package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrorNotFound            ErrorCode = "NOT_FOUND"
	ErrorUnsupportedFileType ErrorCode = "UNSUPPORTED_FILE_TYPE"
	ErrorInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrorUpstream            ErrorCode = "UPSTREAM_ERROR"
	ErrorTimeout             ErrorCode = "TIMEOUT"
	ErrorInternal            ErrorCode = "INTERNAL_ERROR"
)

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

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf extracts the ErrorCode from err, defaulting to ErrorInternal
// for anything that is not a usecase error.
func CodeOf(err error) ErrorCode {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ErrorInternal
}
