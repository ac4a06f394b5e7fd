package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"message-relay/internal/models"
)

var (
	ErrInvalidMessage = errors.New("message has no receiver or no body")
)

// MessageRepository is the durable Message Store used by the relay and the history API.
type MessageRepository interface {
	// Append stores a new unread message and assigns its id and creation time.
	Append(ctx context.Context, msg models.NewMessage) (models.Message, error)
	// BulkMarkRead flips every unread message from senderID to receiverID and returns the number changed.
	BulkMarkRead(ctx context.Context, senderID, receiverID string) (int64, error)
	// History returns the conversation between two users, oldest first.
	History(ctx context.Context, userA, userB string, page models.Page) ([]models.Message, error)
}

func validateNewMessage(msg models.NewMessage) error {
	if msg.SenderID == "" || msg.ReceiverID == "" {
		return ErrInvalidMessage
	}
	if msg.Content == "" && msg.MediaURL == "" {
		return ErrInvalidMessage
	}
	return nil
}

const messageColumns = `id, sender_id, receiver_id, content, media_url, read, created_at`

// PostgresMessageRepo is a sqlx-backed repository.
type PostgresMessageRepo struct {
	db     *sqlx.DB
	logger *zap.SugaredLogger
	clock  *monotonicClock
}

// NewPostgresMessageRepo constructs PostgresMessageRepo.
func NewPostgresMessageRepo(db *sqlx.DB, logger *zap.SugaredLogger) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db, logger: logger, clock: newMonotonicClock()}
}

// Append stores a direct message.
func (r *PostgresMessageRepo) Append(ctx context.Context, in models.NewMessage) (models.Message, error) {
	if err := validateNewMessage(in); err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, sender_id, receiver_id, content, media_url, read, created_at)
        VALUES ($1, $2, $3, $4, $5, FALSE, $6) RETURNING `+messageColumns,
		xid.New().String(), in.SenderID, in.ReceiverID, in.Content, in.MediaURL, r.clock.Now()).
		StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	r.logger.Debugf("Stored message %s from %s to %s", msg.ID, msg.SenderID, msg.ReceiverID)
	return msg, nil
}

// BulkMarkRead marks every unread message of one direction of a conversation as read.
func (r *PostgresMessageRepo) BulkMarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read = TRUE WHERE sender_id=$1 AND receiver_id=$2 AND read = FALSE`, senderID, receiverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// History returns ordered messages exchanged between two users.
func (r *PostgresMessageRepo) History(ctx context.Context, userA, userB string, page models.Page) ([]models.Message, error) {
	page = page.Normalize()
	query := `SELECT ` + messageColumns + `
        FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC, id ASC
        LIMIT $3 OFFSET $4`
	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, userA, userB, page.Limit, page.Offset); err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].CreatedAt = msgs[i].CreatedAt.UTC()
	}
	return msgs, nil
}
