package models

// Outbound event types pushed to websocket connections.
const (
	EventJoined       = "joined"
	EventNewMessage   = "newMessage"
	EventMessageSent  = "messageSent"
	EventUserTyping   = "userTyping"
	EventMessagesRead = "messagesRead"
	EventError        = "error"
)

// Inbound event names sent by clients.
const (
	ClientJoin        = "join"
	ClientSendMessage = "sendMessage"
	ClientTyping      = "typing"
	ClientMarkAsRead  = "markAsRead"
)

// ServerEvent is the single frame shape written to clients.
type ServerEvent struct {
	Type     string     `json:"type"`
	Message  *Message   `json:"message,omitempty"`
	UserID   string     `json:"user_id,omitempty"`
	IsTyping *bool      `json:"is_typing,omitempty"`
	Error    *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a rejected client event.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
