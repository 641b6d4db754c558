package domain

import "errors"

// Coordinator error taxonomy. Every user-triggered violation maps to a
// wire error code; stale signaling is never surfaced to clients.
var (
	ErrStreamNotFound     = errors.New("stream not found")
	ErrStreamIDInUse      = errors.New("stream id already in use")
	ErrSelfViewNotAllowed = errors.New("cannot view your own stream")
	ErrNotRegistered      = errors.New("connection not registered")
	ErrChatTimeout        = errors.New("sender is timed out")
	ErrNotBroadcaster     = errors.New("only the broadcaster may do this")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
)

// Wire error codes.
const (
	ErrCodeStreamNotFound     = "STREAM_NOT_FOUND"
	ErrCodeStreamIDInUse      = "STREAM_ID_IN_USE"
	ErrCodeSelfViewNotAllowed = "SELF_VIEW_NOT_ALLOWED"
	ErrCodeNotRegistered      = "NOT_REGISTERED"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeCapacityExceeded   = "CAPACITY_EXCEEDED"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// ErrorCode maps a coordinator error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrStreamNotFound):
		return ErrCodeStreamNotFound
	case errors.Is(err, ErrStreamIDInUse):
		return ErrCodeStreamIDInUse
	case errors.Is(err, ErrSelfViewNotAllowed):
		return ErrCodeSelfViewNotAllowed
	case errors.Is(err, ErrNotRegistered):
		return ErrCodeNotRegistered
	case errors.Is(err, ErrChatTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrNotBroadcaster):
		return ErrCodeForbidden
	case errors.Is(err, ErrCapacityExceeded):
		return ErrCodeCapacityExceeded
	default:
		return ErrCodeInternalError
	}
}
