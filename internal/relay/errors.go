package relay

import "errors"

var (
	// ErrUnauthenticated is returned when a connection has no bound identity or acts for another user.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidMessage is returned for a message without receiver or without content and media.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrPayloadTooLarge is returned when a field of a client frame exceeds its length limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrPersistenceFailure wraps every Message Store error, including timeouts.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrSessionClosed is returned when joining on a connection that already disconnected.
	ErrSessionClosed = errors.New("connection closed")
)

// Error codes sent to clients.
const (
	CodeUnauthenticated    = "unauthenticated"
	CodeInvalidMessage     = "invalid_message"
	CodePersistenceFailure = "persistence_failure"
	CodePayloadTooLarge    = "payload_too_large"
	CodeInternal           = "internal"
)

// ErrorCode maps a relay error to the code reported on the originating connection.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrSessionClosed):
		return CodeUnauthenticated
	case errors.Is(err, ErrInvalidMessage):
		return CodeInvalidMessage
	case errors.Is(err, ErrPayloadTooLarge):
		return CodePayloadTooLarge
	case errors.Is(err, ErrPersistenceFailure):
		return CodePersistenceFailure
	default:
		return CodeInternal
	}
}
