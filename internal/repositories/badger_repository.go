package repositories

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"message-relay/internal/models"
)

// BadgerMessageRepo stores messages in an embedded badger database.
//
// Keys are formatted as "msg/{hex sender}/{hex receiver}/{unix nanos, 19 digits}/{xid}" so a prefix scan
// over one direction of a conversation yields messages in creation order.
type BadgerMessageRepo struct {
	db     *badger.DB
	logger *zap.SugaredLogger
	clock  *monotonicClock
}

// NewBadgerMessageRepo constructs BadgerMessageRepo.
func NewBadgerMessageRepo(db *badger.DB, logger *zap.SugaredLogger) *BadgerMessageRepo {
	return &BadgerMessageRepo{db: db, logger: logger, clock: newMonotonicClock()}
}

func directionPrefix(senderID, receiverID string) []byte {
	return []byte(fmt.Sprintf("msg/%s/%s/", hex.EncodeToString([]byte(senderID)), hex.EncodeToString([]byte(receiverID))))
}

func messageKey(msg models.Message) []byte {
	return append(directionPrefix(msg.SenderID, msg.ReceiverID), []byte(fmt.Sprintf("%019d/%s", msg.CreatedAt.UnixNano(), msg.ID))...)
}

// Append stores a message.
func (r *BadgerMessageRepo) Append(ctx context.Context, in models.NewMessage) (models.Message, error) {
	if err := validateNewMessage(in); err != nil {
		return models.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	msg := models.Message{
		ID:         xid.New().String(),
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		MediaURL:   in.MediaURL,
		CreatedAt:  r.clock.Now(),
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return models.Message{}, err
	}
	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), value)
	}); err != nil {
		return models.Message{}, err
	}
	r.logger.Debugf("Stored message %s from %s to %s", msg.ID, msg.SenderID, msg.ReceiverID)
	return msg, nil
}

// BulkMarkRead rewrites every unread message of one direction inside a single transaction.
func (r *BadgerMessageRepo) BulkMarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var count int64
	err := r.db.Update(func(txn *badger.Txn) error {
		count = 0
		prefix := directionPrefix(senderID, receiverID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		type pending struct {
			key   []byte
			value []byte
		}
		var updates []pending
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var msg models.Message
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &msg) }); err != nil {
				return err
			}
			if msg.Read {
				continue
			}
			msg.Read = true
			value, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			updates = append(updates, pending{key: item.KeyCopy(nil), value: value})
		}
		for _, u := range updates {
			if err := txn.Set(u.key, u.value); err != nil {
				return err
			}
		}
		count = int64(len(updates))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// History merges both directions of a conversation and returns the requested window.
func (r *BadgerMessageRepo) History(ctx context.Context, userA, userB string, page models.Page) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize()
	prefixes := [][]byte{directionPrefix(userA, userB)}
	if other := directionPrefix(userB, userA); !bytes.Equal(other, prefixes[0]) {
		prefixes = append(prefixes, other)
	}

	var msgs []models.Message
	err := r.db.View(func(txn *badger.Txn) error {
		for _, prefix := range prefixes {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				var msg models.Message
				if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &msg) }); err != nil {
					it.Close()
					return err
				}
				msgs = append(msgs, msg)
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	if page.Offset >= len(msgs) {
		return []models.Message{}, nil
	}
	end := min(page.Offset+page.Limit, len(msgs))
	return msgs[page.Offset:end], nil
}
