package services

import (
	"errors"
	"net/http"

	app_errors "chat-requests/pkg/errors"
)

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, app_errors.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, app_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, app_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, app_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app_errors.ErrAlreadyExists),
		errors.Is(err, app_errors.ErrConflict),
		errors.Is(err, app_errors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, app_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func ErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusUnprocessableEntity:
		return "VALIDATION_FAILED"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}
