package relay

import "sync"

// Session is the per-connection context handed to every relay operation.
type Session struct {
	connID    string
	requestID string

	// ops serialises operations issued on this connection.
	ops sync.Mutex

	mu     sync.RWMutex
	userID string
	closed bool
}

func newSession(connID, requestID string) *Session {
	return &Session{connID: connID, requestID: requestID}
}

// ConnID returns the connection identifier.
func (s *Session) ConnID() string { return s.connID }

// RequestID returns the id of the request that opened the connection.
func (s *Session) RequestID() string { return s.requestID }

// UserID returns the bound identity, empty before join and after disconnect.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ""
	}
	return s.userID
}

// Closed reports whether the connection has been disconnected.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
