package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"message-relay/internal/models"
	"message-relay/internal/observability"
	"message-relay/internal/telemetry"
)

// DefaultPersistTimeout bounds every Message Store call made by the relay.
const DefaultPersistTimeout = 3 * time.Second

// MessageStore is the part of the Message Store the relay writes to.
type MessageStore interface {
	Append(ctx context.Context, msg models.NewMessage) (models.Message, error)
	BulkMarkRead(ctx context.Context, senderID, receiverID string) (int64, error)
}

// Pusher writes an event to one connection and reports whether it failed.
type Pusher interface {
	Push(ctx context.Context, connID string, event models.ServerEvent) error
}

// Auditor records rejected and failed operations.
type Auditor interface {
	Emit(ctx context.Context, level, text, requestID string, userID *string)
}

// SendRequest is the payload of a send operation. An empty SenderID means the session user.
type SendRequest struct {
	SenderID   string
	ReceiverID string
	Content    string
	MediaURL   string
}

// TypingRequest is the payload of a typing signal.
type TypingRequest struct {
	SenderID   string
	ReceiverID string
	IsTyping   bool
}

// MarkReadRequest asks to mark every message from CounterpartID to ReaderID as read.
type MarkReadRequest struct {
	ReaderID      string
	CounterpartID string
}

// Option configures a Relay built by New.
type Option interface {
	apply(*Relay)
}

type optionFunc func(r *Relay)

func (f optionFunc) apply(r *Relay) { f(r) }

// PersistTimeout overrides DefaultPersistTimeout.
func PersistTimeout(d time.Duration) Option {
	return optionFunc(func(r *Relay) {
		if d > 0 {
			r.persistTimeout = d
		}
	})
}

// WithAuditor sets the audit sink for rejected and failed operations.
func WithAuditor(a Auditor) Option {
	return optionFunc(func(r *Relay) {
		r.auditor = a
	})
}

// Relay persists direct messages and fans them out to the live connections of their receivers.
type Relay struct {
	dir            *Directory
	store          MessageStore
	pusher         Pusher
	logger         *zap.SugaredLogger
	auditor        Auditor
	persistTimeout time.Duration
	tracer         trace.Tracer
}

// New constructs a Relay.
func New(dir *Directory, store MessageStore, pusher Pusher, logger *zap.SugaredLogger, opts ...Option) *Relay {
	r := &Relay{
		dir:            dir,
		store:          store,
		pusher:         pusher,
		logger:         logger,
		persistTimeout: DefaultPersistTimeout,
		tracer:         otel.Tracer("message-relay/relay"),
	}
	for _, opt := range opts {
		opt.apply(r)
	}
	return r
}

// Directory returns the connection directory used by the relay.
func (r *Relay) Directory() *Directory {
	return r.dir
}

// Connect creates the session of a new transport connection.
func (r *Relay) Connect(connID, requestID string) *Session {
	r.logger.Debugw("connection opened", "conn_id", connID, "request_id", requestID)
	return newSession(connID, requestID)
}

// Join binds userID to the session and registers the connection in the directory.
func (r *Relay) Join(ctx context.Context, sess *Session, userID string) error {
	if userID == "" {
		r.reject(ctx, sess, models.ClientJoin, ErrUnauthenticated)
		return ErrUnauthenticated
	}

	sess.ops.Lock()
	defer sess.ops.Unlock()

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		r.reject(ctx, sess, models.ClientJoin, ErrSessionClosed)
		return ErrSessionClosed
	}
	r.dir.Register(userID, sess.connID)
	sess.userID = userID
	sess.mu.Unlock()

	r.logger.Debugw("connection joined", "conn_id", sess.connID, "user_id", userID)
	r.push(ctx, sess.connID, models.ServerEvent{Type: models.EventJoined, UserID: userID})
	return nil
}

// Disconnect unregisters the connection. Calling it more than once is a no-op.
func (r *Relay) Disconnect(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	sess.closed = true
	if userID, ok := r.dir.Unregister(sess.connID); ok {
		r.logger.Debugw("connection left", "conn_id", sess.connID, "user_id", userID)
	}
}

// Send persists a message, delivers it to the receiver's connections and acknowledges the sender's connection.
func (r *Relay) Send(ctx context.Context, sess *Session, req SendRequest) (models.Message, error) {
	ctx, span := r.tracer.Start(ctx, "relay.send")
	defer span.End()

	sess.ops.Lock()
	defer sess.ops.Unlock()

	senderID, err := r.authorize(sess, req.SenderID)
	if err != nil {
		r.reject(ctx, sess, models.ClientSendMessage, err)
		return models.Message{}, err
	}
	if req.ReceiverID == "" || (req.Content == "" && req.MediaURL == "") {
		r.reject(ctx, sess, models.ClientSendMessage, ErrInvalidMessage)
		return models.Message{}, ErrInvalidMessage
	}
	span.SetAttributes(attribute.String("relay.sender_id", senderID), attribute.String("relay.receiver_id", req.ReceiverID))

	storeCtx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	start := time.Now()
	msg, err := r.store.Append(storeCtx, models.NewMessage{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		MediaURL:   req.MediaURL,
	})
	cancel()
	observability.ObserveStoreLatency("append", time.Since(start))
	if err != nil {
		return models.Message{}, r.persistenceFailure(ctx, span, sess, "append", err)
	}

	r.fanOut(ctx, r.dir.ActiveConnections(msg.ReceiverID), models.ServerEvent{Type: models.EventNewMessage, Message: &msg})
	r.push(ctx, sess.connID, models.ServerEvent{Type: models.EventMessageSent, Message: &msg})
	return msg, nil
}

// Typing forwards an ephemeral typing signal to the receiver's other connections. Offline receivers drop it.
func (r *Relay) Typing(ctx context.Context, sess *Session, req TypingRequest) error {
	ctx, span := r.tracer.Start(ctx, "relay.typing")
	defer span.End()

	sess.ops.Lock()
	defer sess.ops.Unlock()

	senderID, err := r.authorize(sess, req.SenderID)
	if err != nil {
		r.reject(ctx, sess, models.ClientTyping, err)
		return err
	}
	if req.ReceiverID == "" {
		r.reject(ctx, sess, models.ClientTyping, ErrInvalidMessage)
		return ErrInvalidMessage
	}

	targets := lo.Without(r.dir.ActiveConnections(req.ReceiverID), sess.connID)
	isTyping := req.IsTyping
	r.fanOut(ctx, targets, models.ServerEvent{Type: models.EventUserTyping, UserID: senderID, IsTyping: &isTyping})
	return nil
}

// MarkRead flips every unread message from the counterpart to the reader and notifies the counterpart.
func (r *Relay) MarkRead(ctx context.Context, sess *Session, req MarkReadRequest) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "relay.mark_read")
	defer span.End()

	sess.ops.Lock()
	defer sess.ops.Unlock()

	readerID, err := r.authorize(sess, req.ReaderID)
	if err != nil {
		r.reject(ctx, sess, models.ClientMarkAsRead, err)
		return 0, err
	}
	if req.CounterpartID == "" {
		r.reject(ctx, sess, models.ClientMarkAsRead, ErrInvalidMessage)
		return 0, ErrInvalidMessage
	}

	storeCtx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	start := time.Now()
	count, err := r.store.BulkMarkRead(storeCtx, req.CounterpartID, readerID)
	cancel()
	observability.ObserveStoreLatency("bulk_mark_read", time.Since(start))
	if err != nil {
		return 0, r.persistenceFailure(ctx, span, sess, "bulk_mark_read", err)
	}
	span.SetAttributes(attribute.Int64("relay.marked_read", count))
	if count == 0 {
		return 0, nil
	}

	r.fanOut(ctx, r.dir.ActiveConnections(req.CounterpartID), models.ServerEvent{Type: models.EventMessagesRead, UserID: readerID})
	return count, nil
}

func (r *Relay) authorize(sess *Session, claimed string) (string, error) {
	userID := sess.UserID()
	if userID == "" {
		return "", ErrUnauthenticated
	}
	if claimed != "" && claimed != userID {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

func (r *Relay) fanOut(ctx context.Context, connIDs []string, event models.ServerEvent) {
	for _, connID := range connIDs {
		r.push(ctx, connID, event)
	}
}

// push logs and counts a failed delivery; it never fails the caller.
func (r *Relay) push(ctx context.Context, connID string, event models.ServerEvent) {
	if err := r.pusher.Push(ctx, connID, event); err != nil {
		observability.IncRelayDelivery(event.Type, observability.OutcomeFailed)
		r.logger.Warnw("delivery failed", "conn_id", connID, "event", event.Type, "error", err)
		return
	}
	observability.IncRelayDelivery(event.Type, observability.OutcomeDelivered)
}

func (r *Relay) reject(ctx context.Context, sess *Session, event string, err error) {
	code := ErrorCode(err)
	observability.IncRelayRejected(event, code)
	r.logger.Infow("event rejected", "conn_id", sess.connID, "event", event, "code", code)
	if code == CodeUnauthenticated {
		r.audit(ctx, telemetry.LevelWarn, fmt.Sprintf("unauthenticated %s on connection %s", event, sess.connID), sess)
	}
}

func (r *Relay) persistenceFailure(ctx context.Context, span trace.Span, sess *Session, op string, err error) error {
	observability.IncPersistenceFailure(op)
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	r.logger.Errorw("message store failed", "op", op, "conn_id", sess.connID, "error", err)
	r.audit(ctx, telemetry.LevelError, fmt.Sprintf("message store %s failed: %v", op, err), sess)
	return fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, op, err)
}

func (r *Relay) audit(ctx context.Context, level, text string, sess *Session) {
	if r.auditor == nil {
		return
	}
	var userID *string
	if id := sess.UserID(); id != "" {
		userID = &id
	}
	r.auditor.Emit(ctx, level, text, sess.requestID, userID)
}
