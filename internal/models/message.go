package models

import "time"

// Message represents a direct message between two users.
type Message struct {
	ID         string    `db:"id" json:"id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	ReceiverID string    `db:"receiver_id" json:"receiver_id"`
	Content    string    `db:"content" json:"content,omitempty"`
	MediaURL   string    `db:"media_url" json:"media_url,omitempty"`
	Read       bool      `db:"read" json:"read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// NewMessage is the input of a store append. Ids and timestamps are assigned by the store.
type NewMessage struct {
	SenderID   string
	ReceiverID string
	Content    string
	MediaURL   string
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Page selects a window of a conversation history.
type Page struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

// Normalize applies the default and maximum limit.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
