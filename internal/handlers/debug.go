package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"message-relay/internal/relay"
	"message-relay/internal/telemetry"
	"message-relay/internal/ws"
)

// RegisterOpsRoutes wires health and metrics endpoints.
func RegisterOpsRoutes(router *gin.Engine, hub *ws.Hub, dir *relay.Directory) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"connections":  hub.Len(),
			"online_users": dir.Len(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), telemetry.LevelInfo, "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
