// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"context"
	"net/http"
	"time"

	"chat-requests/internal/domain/user"
	"chat-requests/internal/services"
	"chat-requests/internal/transport/httpdto"
	"chat-requests/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AttemptResetter clears the login attempt counter of a client IP.
type AttemptResetter interface {
	ResetAuth(ctx context.Context, ip string) error
}

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	service  *services.AuthService
	attempts AttemptResetter
	log      *logger.Logger
}

func NewAuthHandler(service *services.AuthService, l *logger.Logger) *AuthHandler {
	return &AuthHandler{service: service, log: l}
}

// ResetAttemptsOnLogin makes a successful login clear the caller's auth
// rate limit window.
func (h *AuthHandler) ResetAttemptsOnLogin(r AttemptResetter) {
	h.attempts = r
}

// Register handles user registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req httpdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.service.Register(c.Request.Context(), services.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toAuthResponse(res)))
}

// Login handles user authentication.
func (h *AuthHandler) Login(c *gin.Context) {
	var req httpdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	if h.attempts != nil {
		if err := h.attempts.ResetAuth(c.Request.Context(), c.ClientIP()); err != nil && h.log != nil {
			h.log.WarnCtx(c.Request.Context(), "failed to reset login attempts", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toAuthResponse(res)))
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	current, ok := services.UserFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toUserDTO(current)))
}

func toAuthResponse(res services.AuthResponse) httpdto.AuthResponse {
	return httpdto.AuthResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   res.ExpiresIn,
		User:        toUserDTO(res.User),
	}
}

func toUserDTO(u user.User) httpdto.UserDTO {
	return httpdto.UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}
