package handlers

import (
	"github.com/gin-gonic/gin"

	"message-relay/internal/middleware"
	"message-relay/internal/observability"
)

const requestIDKey = "request_id"

// requestIDFromContext returns the request id of c, resolving it once per request.
func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	id := observability.RequestIDFromRequest(c.Request)
	c.Set(requestIDKey, id)
	return id
}

// userIDFromContext returns the authenticated user, nil for anonymous callers.
func userIDFromContext(c *gin.Context) *string {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		return nil
	}
	return &userID
}
