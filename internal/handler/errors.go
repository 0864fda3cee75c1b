package handler

import (
	"errors"
	"io"
	"net/http"

	"chat-requests/internal/services"
	"chat-requests/internal/transport/httpdto"
	app_errors "chat-requests/pkg/errors"
	"chat-requests/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const internalErrorMessage = "internal server error"

// writeError maps err to its status and stable message. Unclassified errors
// are logged and reported with a generic message.
func writeError(c *gin.Context, l *logger.Logger, err error) {
	status := services.HTTPStatus(err)
	message := app_errors.Message(err)
	if status == http.StatusInternalServerError {
		if l != nil {
			l.ErrorCtx(c.Request.Context(), "request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		message = internalErrorMessage
	}
	c.JSON(status, httpdto.NewErrorResponse(message, services.ErrorCode(status)))
}

// missingField reports whether a bind failure came from an empty body or a
// failed `binding:"required"` rule rather than from malformed JSON.
func missingField(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}
