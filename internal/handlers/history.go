package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"message-relay/internal/middleware"
	"message-relay/internal/models"
	"message-relay/internal/repositories"
)

// HistoryHandler serves the conversation read path.
type HistoryHandler struct {
	messageRepo repositories.MessageRepository
	logger      *zap.SugaredLogger
}

// NewHistoryHandler builds a HistoryHandler.
func NewHistoryHandler(messageRepo repositories.MessageRepository, logger *zap.SugaredLogger) *HistoryHandler {
	return &HistoryHandler{messageRepo: messageRepo, logger: logger}
}

// GetConversation returns the messages exchanged between the authenticated user and :user_id.
func (h *HistoryHandler) GetConversation(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	otherID := c.Param("user_id")
	if otherID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var page models.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pagination"})
		return
	}
	page = page.Normalize()

	msgs, err := h.messageRepo.History(c.Request.Context(), userID, otherID, page)
	if err != nil {
		h.logger.Errorw("load history failed", "user_id", userID, "other_id", otherID, "request_id", requestIDFromContext(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs, "limit": page.Limit, "offset": page.Offset})
}
