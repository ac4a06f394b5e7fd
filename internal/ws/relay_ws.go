package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/valyala/fastjson"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"message-relay/internal/auth"
	"message-relay/internal/middleware"
	"message-relay/internal/models"
	"message-relay/internal/observability"
	"message-relay/internal/relay"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	defaultSendBufferSize = 64
	defaultWriteTimeout   = 10 * time.Second
)

type Option interface {
	apply(*RelayWebSocketHandler)
}

type optionFunc func(h *RelayWebSocketHandler)

func (f optionFunc) apply(h *RelayWebSocketHandler) { f(h) }

// SendBufferSize sets the per-connection outbound queue length.
func SendBufferSize(n int) Option {
	return optionFunc(func(h *RelayWebSocketHandler) {
		if n > 0 {
			h.bufferSize = n
		}
	})
}

// WriteTimeout sets the deadline of a single websocket write.
func WriteTimeout(d time.Duration) Option {
	return optionFunc(func(h *RelayWebSocketHandler) {
		if d > 0 {
			h.writeTimeout = d
		}
	})
}

// RelayWebSocketHandler adapts websocket connections to relay sessions.
type RelayWebSocketHandler struct {
	hub           *Hub
	relay         *relay.Relay
	authenticator auth.Authenticator
	logger        *zap.SugaredLogger
	parsers       fastjson.ParserPool
	bufferSize    int
	writeTimeout  time.Duration
}

// NewRelayWebSocketHandler constructs a RelayWebSocketHandler. A nil authenticator trusts the user id sent in join.
func NewRelayWebSocketHandler(hub *Hub, r *relay.Relay, authenticator auth.Authenticator, logger *zap.SugaredLogger, opts ...Option) *RelayWebSocketHandler {
	h := &RelayWebSocketHandler{
		hub:           hub,
		relay:         r,
		authenticator: authenticator,
		logger:        logger,
		bufferSize:    defaultSendBufferSize,
		writeTimeout:  defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt.apply(h)
	}
	return h
}

// Handle upgrades the connection, opens a relay session and serves client events until disconnect.
// A token on the handshake (Authorization header or ?token=) joins the connection immediately.
func (h *RelayWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("message-relay/ws").Start(c.Request.Context(), "ws.handshake")
	c.Request = c.Request.WithContext(ctx)

	token, _ := middleware.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}

	var userID string
	if token != "" && h.authenticator != nil {
		id, err := h.authenticator.ValidateToken(ctx, token)
		if err != nil {
			span.End()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID = id
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.End()
		h.logger.Debugw("websocket upgrade failed", "error", err)
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.End()

	conn.SetReadLimit(maxFrameSize)
	client := newClient(conn, info, h.bufferSize, h.writeTimeout)
	h.hub.Add(client)
	sess := h.relay.Connect(info.ConnID, info.RequestID)

	// The request context ends when Handle returns; the connection outlives it.
	connCtx := context.WithoutCancel(ctx)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publish(connCtx, "ws_connect", client, "")

	go func() {
		if err := client.writePump(); err != nil {
			h.logger.Debugw("websocket write failed", "conn_id", info.ConnID, "error", err)
			client.closeConn()
		}
	}()

	if userID != "" {
		if err := h.relay.Join(connCtx, sess, userID); err != nil {
			h.replyError(connCtx, sess, models.ClientJoin, err)
		} else {
			client.setUserID(userID)
		}
	}

	go h.readLoop(connCtx, client, sess)
}

func (h *RelayWebSocketHandler) readLoop(ctx context.Context, client *Client, sess *relay.Session) {
	var closeReason string
	defer func() {
		h.relay.Disconnect(sess)
		h.hub.Remove(client.info.ConnID)
		client.closeConn()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publish(ctx, "ws_disconnect", client, closeReason)
	}()

	conn := client.conn
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publish(ctx, "ws_error", client, closeReason)
			}
			return
		}
		// Frames of one connection are handled one at a time, in arrival order.
		h.dispatch(ctx, client, sess, frame)
	}
}

func (h *RelayWebSocketHandler) dispatch(ctx context.Context, client *Client, sess *relay.Session, frame []byte) {
	in, err := decodeFrame(&h.parsers, frame)
	if err != nil {
		h.rejectFrame(ctx, sess, "", fmt.Errorf("%w: %v", relay.ErrInvalidMessage, err))
		return
	}
	switch in.Event {
	case models.ClientJoin, models.ClientSendMessage, models.ClientTyping, models.ClientMarkAsRead:
		observability.IncWSEvent(in.Event)
	}

	switch in.Event {
	case models.ClientJoin:
		p, err := decodeJoin(in)
		if err != nil {
			h.rejectFrame(ctx, sess, in.Event, err)
			return
		}
		userID, err := h.resolveJoin(ctx, sess, p)
		if err != nil {
			h.rejectFrame(ctx, sess, in.Event, err)
			return
		}
		if err := h.relay.Join(ctx, sess, userID); err != nil {
			h.replyError(ctx, sess, in.Event, err)
			return
		}
		client.setUserID(userID)

	case models.ClientSendMessage:
		var p sendPayload
		if err := decodePayload(in.Data, &p); err != nil {
			h.rejectFrame(ctx, sess, in.Event, err)
			return
		}
		if _, err := h.relay.Send(ctx, sess, relay.SendRequest{
			SenderID:   p.SenderID,
			ReceiverID: p.ReceiverID,
			Content:    p.Content,
			MediaURL:   p.MediaURL,
		}); err != nil {
			h.replyError(ctx, sess, in.Event, err)
		}

	case models.ClientTyping:
		var p typingPayload
		if err := decodePayload(in.Data, &p); err != nil {
			h.rejectFrame(ctx, sess, in.Event, err)
			return
		}
		if err := h.relay.Typing(ctx, sess, relay.TypingRequest{
			SenderID:   p.SenderID,
			ReceiverID: p.ReceiverID,
			IsTyping:   p.IsTyping,
		}); err != nil {
			h.replyError(ctx, sess, in.Event, err)
		}

	case models.ClientMarkAsRead:
		var p markReadPayload
		if err := decodePayload(in.Data, &p); err != nil {
			h.rejectFrame(ctx, sess, in.Event, err)
			return
		}
		if _, err := h.relay.MarkRead(ctx, sess, relay.MarkReadRequest{
			ReaderID:      p.UserID,
			CounterpartID: p.SenderID,
		}); err != nil {
			h.replyError(ctx, sess, in.Event, err)
		}

	default:
		h.rejectFrame(ctx, sess, "unknown", fmt.Errorf("%w: %v %q", relay.ErrInvalidMessage, errUnknownEvent, in.Event))
	}
}

// resolveJoin decides which identity a join binds. With an authenticator the token is authoritative
// and a claimed user id must match it.
func (h *RelayWebSocketHandler) resolveJoin(ctx context.Context, sess *relay.Session, p joinPayload) (string, error) {
	if h.authenticator == nil {
		return p.UserID, nil
	}
	if p.Token == "" {
		if bound := sess.UserID(); bound != "" && (p.UserID == "" || p.UserID == bound) {
			return bound, nil
		}
		return "", relay.ErrUnauthenticated
	}
	userID, err := h.authenticator.ValidateToken(ctx, p.Token)
	if err != nil {
		return "", relay.ErrUnauthenticated
	}
	if p.UserID != "" && p.UserID != userID {
		return "", relay.ErrUnauthenticated
	}
	return userID, nil
}

// rejectFrame reports an error found before the relay was called.
func (h *RelayWebSocketHandler) rejectFrame(ctx context.Context, sess *relay.Session, event string, err error) {
	observability.IncRelayRejected(event, relay.ErrorCode(err))
	h.replyError(ctx, sess, event, err)
}

func (h *RelayWebSocketHandler) replyError(ctx context.Context, sess *relay.Session, event string, err error) {
	code := relay.ErrorCode(err)
	body := &models.ErrorBody{Code: code, Event: event, Message: errorMessage(code, err)}
	if pushErr := h.hub.Push(ctx, sess.ConnID(), models.ServerEvent{Type: models.EventError, Error: body}); pushErr != nil {
		h.logger.Debugw("error reply dropped", "conn_id", sess.ConnID(), "error", pushErr)
	}
}

func errorMessage(code string, err error) string {
	switch code {
	case relay.CodeUnauthenticated:
		return "connection is not joined as this user"
	case relay.CodePersistenceFailure:
		return "message could not be stored"
	case relay.CodeInvalidMessage, relay.CodePayloadTooLarge:
		return err.Error()
	default:
		return "internal error"
	}
}

func (h *RelayWebSocketHandler) publish(ctx context.Context, name string, client *Client, reason string) {
	info := client.info
	_ = observability.PublishEvent(ctx, observability.WSEventsRoutingKey,
		observability.WSEvent(name, info.ConnID, client.userID(), info.DeviceID, info.IP, reason, info.ConnectedAt),
		observability.BuildHeaders(info.RequestID, info.TraceID))
}
