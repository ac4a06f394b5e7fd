package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fastjson"

	"message-relay/internal/relay"
)

var (
	errMissingEvent = errors.New("frame has no event")
	errUnknownEvent = errors.New("unknown event")
)

var validate = validator.New()

// inboundFrame is a client frame: {"event": "<name>", "data": <payload>}.
type inboundFrame struct {
	Event string
	Data  []byte
	// DataIsString is set when data is a bare JSON string, as sent by legacy join events.
	DataIsString bool
}

// Payloads accept the snake_case field names and the camelCase names sent by the mobile client.
// A snake_case value wins when both are present.

type joinPayload struct {
	UserID      string `json:"user_id" validate:"max=128"`
	UserIDCamel string `json:"userId" validate:"-"`
	Token       string `json:"token" validate:"max=4096"`
}

func (p *joinPayload) normalize() {
	p.UserID = firstNonEmpty(p.UserID, p.UserIDCamel)
}

type sendPayload struct {
	SenderID        string `json:"sender_id" validate:"max=128"`
	SenderIDCamel   string `json:"senderId" validate:"-"`
	ReceiverID      string `json:"receiver_id" validate:"required,max=128"`
	ReceiverIDCamel string `json:"receiverId" validate:"-"`
	Content         string `json:"content" validate:"max=4000"`
	// MediaURL is an opaque reference; only its length is checked.
	MediaURL      string `json:"media_url" validate:"max=2048"`
	MediaURLCamel string `json:"mediaUrl" validate:"-"`
}

func (p *sendPayload) normalize() {
	p.SenderID = firstNonEmpty(p.SenderID, p.SenderIDCamel)
	p.ReceiverID = firstNonEmpty(p.ReceiverID, p.ReceiverIDCamel)
	p.MediaURL = firstNonEmpty(p.MediaURL, p.MediaURLCamel)
}

type typingPayload struct {
	SenderID        string `json:"sender_id" validate:"max=128"`
	SenderIDCamel   string `json:"senderId" validate:"-"`
	ReceiverID      string `json:"receiver_id" validate:"required,max=128"`
	ReceiverIDCamel string `json:"receiverId" validate:"-"`
	IsTyping        bool   `json:"is_typing"`
	IsTypingCamel   bool   `json:"isTyping"`
}

func (p *typingPayload) normalize() {
	p.SenderID = firstNonEmpty(p.SenderID, p.SenderIDCamel)
	p.ReceiverID = firstNonEmpty(p.ReceiverID, p.ReceiverIDCamel)
	p.IsTyping = p.IsTyping || p.IsTypingCamel
}

// markReadPayload: user_id is the reader, sender_id the counterpart whose messages are read.
type markReadPayload struct {
	UserID        string `json:"user_id" validate:"max=128"`
	UserIDCamel   string `json:"userId" validate:"-"`
	SenderID      string `json:"sender_id" validate:"required,max=128"`
	SenderIDCamel string `json:"senderId" validate:"-"`
}

func (p *markReadPayload) normalize() {
	p.UserID = firstNonEmpty(p.UserID, p.UserIDCamel)
	p.SenderID = firstNonEmpty(p.SenderID, p.SenderIDCamel)
}

type normalizer interface {
	normalize()
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func decodeFrame(pool *fastjson.ParserPool, frame []byte) (inboundFrame, error) {
	p := pool.Get()
	defer pool.Put(p)

	v, err := p.ParseBytes(frame)
	if err != nil {
		return inboundFrame{}, err
	}
	in := inboundFrame{Event: string(v.GetStringBytes("event"))}
	if in.Event == "" {
		return inboundFrame{}, errMissingEvent
	}
	if data := v.Get("data"); data != nil {
		in.Data = data.MarshalTo(nil)
		in.DataIsString = data.Type() == fastjson.TypeString
	}
	return in, nil
}

// decodePayload unmarshals and validates a frame payload. Oversized fields are reported as
// ErrPayloadTooLarge, every other decode or validation error as an invalid message.
func decodePayload(data []byte, dst normalizer) error {
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", relay.ErrInvalidMessage, err)
	}
	dst.normalize()
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.Tag() == "max" {
					return fmt.Errorf("%w: %s exceeds %s characters", relay.ErrPayloadTooLarge, fe.Field(), fe.Param())
				}
			}
		}
		return fmt.Errorf("%w: %v", relay.ErrInvalidMessage, err)
	}
	return nil
}

func decodeJoin(in inboundFrame) (joinPayload, error) {
	var p joinPayload
	if in.DataIsString {
		if err := json.Unmarshal(in.Data, &p.UserID); err != nil {
			return joinPayload{}, fmt.Errorf("%w: %v", relay.ErrInvalidMessage, err)
		}
		return p, nil
	}
	err := decodePayload(in.Data, &p)
	return p, err
}
