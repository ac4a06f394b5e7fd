package repositories

import (
	"context"
	"sync"

	"github.com/rs/xid"
	"github.com/samber/lo"

	"message-relay/internal/models"
)

// MemoryMessageRepo keeps messages in process memory.
type MemoryMessageRepo struct {
	mu       sync.RWMutex
	messages []models.Message
	clock    *monotonicClock
}

// NewMemoryMessageRepo constructs an empty MemoryMessageRepo.
func NewMemoryMessageRepo() *MemoryMessageRepo {
	return &MemoryMessageRepo{clock: newMonotonicClock()}
}

// Append stores a message.
func (r *MemoryMessageRepo) Append(ctx context.Context, in models.NewMessage) (models.Message, error) {
	if err := validateNewMessage(in); err != nil {
		return models.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := models.Message{
		ID:         xid.New().String(),
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		MediaURL:   in.MediaURL,
		CreatedAt:  r.clock.Now(),
	}
	r.messages = append(r.messages, msg)
	return msg, nil
}

// BulkMarkRead flips unread messages from senderID to receiverID.
func (r *MemoryMessageRepo) BulkMarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for i := range r.messages {
		m := &r.messages[i]
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.Read {
			m.Read = true
			count++
		}
	}
	return count, nil
}

// History returns messages between two users in insertion order.
func (r *MemoryMessageRepo) History(ctx context.Context, userA, userB string, page models.Page) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize()
	r.mu.RLock()
	conversation := lo.Filter(r.messages, func(m models.Message, _ int) bool {
		return (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA)
	})
	r.mu.RUnlock()
	if page.Offset >= len(conversation) {
		return []models.Message{}, nil
	}
	end := min(page.Offset+page.Limit, len(conversation))
	return conversation[page.Offset:end], nil
}
