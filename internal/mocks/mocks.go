package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"message-relay/internal/models"
	"message-relay/internal/rabbitmq"
	"message-relay/internal/relay"
	"message-relay/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) BulkMarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	args := m.Called(ctx, senderID, receiverID)
	var count int64
	if val := args.Get(0); val != nil {
		count = val.(int64)
	}
	return count, args.Error(1)
}

func (m *MessageRepositoryMock) History(ctx context.Context, userA, userB string, page models.Page) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB, page)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type PusherMock struct {
	mock.Mock
}

func (m *PusherMock) Push(ctx context.Context, connID string, event models.ServerEvent) error {
	args := m.Called(ctx, connID, event)
	return args.Error(0)
}

type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	m.Called(ctx, level, text, requestID, userID)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ relay.MessageStore = (*MessageRepositoryMock)(nil)
var _ relay.Pusher = (*PusherMock)(nil)
var _ relay.Auditor = (*AuditorMock)(nil)
var _ rabbitmq.Publisher = (*PublisherMock)(nil)
