package ws

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"

	"message-relay/internal/relay"
)

func TestDecodeFrame(t *testing.T) {
	var pool fastjson.ParserPool

	in, err := decodeFrame(&pool, []byte(`{"event":"sendMessage","data":{"receiver_id":"bob","content":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, "sendMessage", in.Event)
	assert.False(t, in.DataIsString)

	var p sendPayload
	require.NoError(t, decodePayload(in.Data, &p))
	assert.Equal(t, "bob", p.ReceiverID)
	assert.Equal(t, "hi", p.Content)
}

func TestDecodeFrameErrors(t *testing.T) {
	var pool fastjson.ParserPool

	_, err := decodeFrame(&pool, []byte(`not json`))
	assert.Error(t, err)

	_, err = decodeFrame(&pool, []byte(`{"data":{}}`))
	assert.ErrorIs(t, err, errMissingEvent)
}

func TestDecodeJoinAcceptsBareUserID(t *testing.T) {
	var pool fastjson.ParserPool
	in, err := decodeFrame(&pool, []byte(`{"event":"join","data":"alice"}`))
	require.NoError(t, err)
	require.True(t, in.DataIsString)

	p, err := decodeJoin(in)

	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)
	assert.Empty(t, p.Token)
}

func TestDecodeJoinObject(t *testing.T) {
	var pool fastjson.ParserPool
	in, err := decodeFrame(&pool, []byte(`{"event":"join","data":{"user_id":"alice","token":"t"}}`))
	require.NoError(t, err)

	p, err := decodeJoin(in)

	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, "t", p.Token)
}

func TestDecodePayloadValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
		dst  normalizer
	}{
		{name: "missing receiver", data: `{"content":"hi"}`, dst: &sendPayload{}},
		{name: "wrong type", data: `{"receiver_id":42}`, dst: &typingPayload{}},
		{name: "mark read without counterpart", data: `{"user_id":"bob"}`, dst: &markReadPayload{}},
		{name: "missing data", data: ``, dst: &typingPayload{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decodePayload([]byte(tt.data), tt.dst)
			require.ErrorIs(t, err, relay.ErrInvalidMessage)
		})
	}
}

func TestDecodePayloadAcceptsMediaOnly(t *testing.T) {
	var p sendPayload

	err := decodePayload([]byte(`{"receiver_id":"bob","media_url":"https://cdn.example.com/a.png"}`), &p)

	require.NoError(t, err)
	assert.Empty(t, p.Content)
	assert.Equal(t, "https://cdn.example.com/a.png", p.MediaURL)
}

func TestDecodePayloadTreatsMediaAsOpaque(t *testing.T) {
	var p sendPayload

	err := decodePayload([]byte(`{"receiver_id":"bob","media_url":"uploads/cat.png"}`), &p)

	require.NoError(t, err)
	assert.Equal(t, "uploads/cat.png", p.MediaURL)
}

func TestDecodePayloadOversizedFields(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "content", data: `{"receiver_id":"bob","content":"` + strings.Repeat("a", 4001) + `"}`},
		{name: "media", data: `{"receiver_id":"bob","media_url":"` + strings.Repeat("m", 2049) + `"}`},
		{name: "receiver", data: `{"receiverId":"` + strings.Repeat("b", 129) + `","content":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p sendPayload
			err := decodePayload([]byte(tt.data), &p)
			require.ErrorIs(t, err, relay.ErrPayloadTooLarge)
			assert.NotErrorIs(t, err, relay.ErrInvalidMessage)
		})
	}
}

func TestDecodePayloadAcceptsCamelCaseFields(t *testing.T) {
	var send sendPayload
	require.NoError(t, decodePayload([]byte(`{"senderId":"alice","receiverId":"bob","mediaUrl":"a.png"}`), &send))
	assert.Equal(t, "alice", send.SenderID)
	assert.Equal(t, "bob", send.ReceiverID)
	assert.Equal(t, "a.png", send.MediaURL)

	var typing typingPayload
	require.NoError(t, decodePayload([]byte(`{"senderId":"alice","receiverId":"bob","isTyping":true}`), &typing))
	assert.Equal(t, "bob", typing.ReceiverID)
	assert.True(t, typing.IsTyping)

	var read markReadPayload
	require.NoError(t, decodePayload([]byte(`{"userId":"bob","senderId":"alice"}`), &read))
	assert.Equal(t, "bob", read.UserID)
	assert.Equal(t, "alice", read.SenderID)

	var join joinPayload
	require.NoError(t, decodePayload([]byte(`{"userId":"alice"}`), &join))
	assert.Equal(t, "alice", join.UserID)
}

func TestDecodePayloadPrefersSnakeCase(t *testing.T) {
	var p sendPayload

	require.NoError(t, decodePayload([]byte(`{"receiver_id":"bob","receiverId":"carol","content":"hi"}`), &p))

	assert.Equal(t, "bob", p.ReceiverID)
}
