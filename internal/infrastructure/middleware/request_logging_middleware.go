package middleware

import (
	"time"

	"camlink/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLoggingMiddleware logs each control API request with any session
// and stream identifiers carried in the request context.
func RequestLoggingMiddleware(ctxLogger *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := c.Request.Context()
		if id := c.Param("id"); id != "" {
			ctx = logger.WithSessionID(ctx, id)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()

		ctxLogger.LogRequest(ctx,
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
		)
	}
}
