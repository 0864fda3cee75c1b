package middleware

import (
	"chat-requests/internal/transport/httpdto"
	"chat-requests/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler logs errors attached with c.Error. If nothing has been
// written yet it answers with a generic internal error.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.ErrorCtx(c.Request.Context(), "request error",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
		if !c.Writer.Written() {
			c.JSON(500, httpdto.NewErrorResponse("internal server error", "INTERNAL_ERROR"))
		}
	}
}
