package ws

import "time"

// ConnInfo describes the request that opened a websocket connection.
type ConnInfo struct {
	ConnID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
