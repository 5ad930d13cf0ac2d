package protocol

import "fmt"

// Status is the outcome code carried in a response header.
type Status uint8

const (
	StatusSuccess Status = iota
	// StatusInvalidOperation: operation not defined or access not granted.
	StatusInvalidOperation
	// StatusTimeout: the round trip exceeded the caller's deadline. Set by the
	// client library, never by the service.
	StatusTimeout
	// StatusNoSessionSlotAvailable: every session slot is in use.
	StatusNoSessionSlotAvailable
	// StatusInvalidSession: the handle failed the owner or liveness check.
	StatusInvalidSession
	// StatusInvalidParamUnsufficientSize: input shorter than required.
	StatusInvalidParamUnsufficientSize
	// StatusInvalidParamSizeExceedAllowed: input longer than the configured maximum.
	StatusInvalidParamSizeExceedAllowed

	// StatusCustomStart is the first value available for extensions.
	StatusCustomStart Status = 32
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusInvalidOperation:
		return "InvalidOperation"
	case StatusTimeout:
		return "Timeout"
	case StatusNoSessionSlotAvailable:
		return "NoSessionSlotAvailable"
	case StatusInvalidSession:
		return "InvalidSession"
	case StatusInvalidParamUnsufficientSize:
		return "InvalidParam_UnsufficientSize"
	case StatusInvalidParamSizeExceedAllowed:
		return "InvalidParam_SizeExceedAllowed"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// StatusError is a non-success status surfaced as a Go error.
type StatusError struct {
	Operation Operation
	Status    Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Status)
}

// Is matches any StatusError with the same status, so the Err* sentinels work
// with errors.Is regardless of operation.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	return ok && t.Status == e.Status
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidOperation              = &StatusError{Status: StatusInvalidOperation}
	ErrTimeout                       = &StatusError{Status: StatusTimeout}
	ErrNoSessionSlotAvailable        = &StatusError{Status: StatusNoSessionSlotAvailable}
	ErrInvalidSession                = &StatusError{Status: StatusInvalidSession}
	ErrInvalidParamUnsufficientSize  = &StatusError{Status: StatusInvalidParamUnsufficientSize}
	ErrInvalidParamSizeExceedAllowed = &StatusError{Status: StatusInvalidParamSizeExceedAllowed}
)

// Err returns nil for StatusSuccess and a *StatusError otherwise.
func (s Status) Err(op Operation) error {
	if s == StatusSuccess {
		return nil
	}
	return &StatusError{Operation: op, Status: s}
}
