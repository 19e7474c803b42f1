package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/telemetry"
)

// PresenceLookup exposes the presence registry for debugging.
type PresenceLookup interface {
	PresenceOf(ctx context.Context, userID string) (string, bool, error)
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, presence PresenceLookup, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/presence/:user_id", func(c *gin.Context) {
		connID, online, err := presence.PresenceOf(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": c.Param("user_id"), "conn_id": connID, "online": online})
	})

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
