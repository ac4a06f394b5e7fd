package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"message-relay/internal/mocks"
	"message-relay/internal/models"
	"message-relay/internal/relay"
	"message-relay/internal/ws"
)

func setupHistoryRouter(handler *HistoryHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.GET("/messages/:user_id", handler.GetConversation)
	return r
}

func TestGetConversationSuccess(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupHistoryRouter(NewHistoryHandler(repo, zap.NewNop().Sugar()))

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.On("History", mock.Anything, "alice", "bob", models.Page{Limit: 10, Offset: 5}).
		Return([]models.Message{{ID: "m1", SenderID: "bob", ReceiverID: "alice", Content: "hey", CreatedAt: created}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/bob?limit=10&offset=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
		Limit    int              `json:"limit"`
		Offset   int              `json:"offset"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "m1", resp.Messages[0].ID)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, 5, resp.Offset)
	repo.AssertExpectations(t)
}

func TestGetConversationDefaultsAndCapsLimit(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupHistoryRouter(NewHistoryHandler(repo, zap.NewNop().Sugar()))

	repo.On("History", mock.Anything, "alice", "bob", models.Page{Limit: models.DefaultPageLimit}).Return([]models.Message{}, nil).Once()
	repo.On("History", mock.Anything, "alice", "bob", models.Page{Limit: models.MaxPageLimit}).Return([]models.Message{}, nil).Once()

	for _, target := range []string{"/messages/bob", "/messages/bob?limit=100000"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)
	}
	repo.AssertExpectations(t)
}

func TestGetConversationInvalidPagination(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupHistoryRouter(NewHistoryHandler(repo, zap.NewNop().Sugar()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/bob?limit=abc", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetConversationRepoError(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupHistoryRouter(NewHistoryHandler(repo, zap.NewNop().Sugar()))

	repo.On("History", mock.Anything, "alice", "bob", mock.Anything).Return(nil, assert.AnError).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/bob", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	repo.AssertExpectations(t)
}

func TestOpsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	dir := relay.NewDirectory()
	dir.Register("alice", "c1")
	RegisterOpsRoutes(router, ws.NewHub(zap.NewNop().Sugar()), dir)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["online_users"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relay_ws_active_connections")
}

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterDebugRoutes(router, nil, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
