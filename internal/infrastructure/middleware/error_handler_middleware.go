package middleware

import (
	"net/http"

	"camlink/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware turns errors attached to the gin context into
// structured JSON responses.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			appErr = errors.FromDomain(err)
		}

		logger.Errorw("request failed",
			"code", appErr.Code,
			"message", appErr.Message,
			"status", appErr.HTTPStatus,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err,
		)

		c.JSON(appErr.HTTPStatus, gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		})
	}
}

// RecoveryMiddleware recovers panics in handlers into a 500 response.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered",
					"error", r,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(errors.ErrCodeInternal),
					"message": "internal server error",
				})
			}
		}()

		c.Next()
	}
}
