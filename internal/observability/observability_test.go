package observability

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func TestBuildHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"x-request-id": "r1", "trace_id": "t1"}, BuildHeaders("r1", "t1"))
	assert.Empty(t, BuildHeaders("", ""))
}

func TestWSEvent(t *testing.T) {
	ev := WSEvent("ws_connect", "c1", "alice", "d1", "10.0.0.1", "", time.Now().Add(-time.Second))

	assert.Equal(t, "ws_events", ev.EventType)
	assert.Equal(t, "ws_connect", ev.EventName)
	payload := ev.Payload.(map[string]interface{})
	ws := payload["ws"].(map[string]interface{})
	assert.Equal(t, "c1", ws["conn_id"])
	assert.GreaterOrEqual(t, ws["duration_ms"].(int64), int64(1000))
	identity := payload["identity"].(map[string]interface{})
	assert.Equal(t, "alice", identity["user_id"])
}

func TestPublishEventUsesInstalledPublisher(t *testing.T) {
	t.Cleanup(func() { SetPublisher(nil) })
	require.NoError(t, PublishEvent(context.Background(), WSEventsRoutingKey, "x", nil))

	pub := new(publisherMock)
	pub.On("PublishWithHeaders", mock.Anything, WSEventsRoutingKey, "x", mock.Anything).Return(assert.AnError).Once()
	SetPublisher(pub)

	err := PublishEvent(context.Background(), WSEventsRoutingKey, "x", nil)

	assert.ErrorIs(t, err, assert.AnError)
	pub.AssertExpectations(t)
}

func TestRequestHelpers(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", IPFromRequest(req))
	assert.NotEmpty(t, RequestIDFromRequest(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("X-Request-Id", "req-9")
	req.Header.Set("X-Device-Id", "phone")
	assert.Equal(t, "203.0.113.7", IPFromRequest(req))
	assert.Equal(t, "req-9", RequestIDFromRequest(req))
	assert.Equal(t, "phone", DeviceIDFromRequest(req))
}

func TestSplitFullMethod(t *testing.T) {
	service, method := splitFullMethod("/grpc.health.v1.Health/Check")
	assert.Equal(t, "grpc.health.v1.Health", service)
	assert.Equal(t, "Check", method)
}

func TestSplitFullMethodMalformed(t *testing.T) {
	service, method := splitFullMethod("Check")
	assert.Equal(t, "unknown", service)
	assert.Equal(t, "unknown", method)
}
