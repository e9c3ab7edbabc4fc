package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"skincare-backend/internal/shared/server/respond"
	"skincare-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			consultationID, _ := c.Get("consultationId")
			telemetry.Error("http.panic", map[string]any{
				"request_id":      RequestIDFromContext(c),
				"consultation_id": consultationID,
				"error":           rec,
				"stack":           string(debug.Stack()),
				"route":           c.FullPath(),
				"method":          c.Request.Method,
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}
