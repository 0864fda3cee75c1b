package middleware

import (
	"context"
	"net/http"
	"strconv"

	"chat-requests/internal/redis"
	"chat-requests/internal/services"
	"chat-requests/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// RateLimiter is the subset of redis.RateLimiter the middleware needs.
type RateLimiter interface {
	AllowAuth(ctx context.Context, ip string) (*redis.RateLimitResult, error)
	AllowChatRequest(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

// AuthRateLimitMiddleware limits register and login attempts per client IP.
func AuthRateLimitMiddleware(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowAuth(c.Request.Context(), c.ClientIP())
		if !enforce(c, result, err, "rate limit exceeded") {
			return
		}
		c.Next()
	}
}

// ChatRequestRateLimitMiddleware limits how many chat requests a user can
// send. It must run after AuthMiddleware.
func ChatRequestRateLimitMiddleware(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := services.UserFromContext(c.Request.Context())
		if !ok {
			// No user context, auth middleware will handle it
			c.Next()
			return
		}

		result, err := limiter.AllowChatRequest(c.Request.Context(), current.ID.String())
		if !enforce(c, result, err, "chat request rate limit exceeded") {
			return
		}
		c.Next()
	}
}

func enforce(c *gin.Context, result *redis.RateLimitResult, err error, message string) bool {
	if err != nil {
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, httpdto.NewErrorResponse("rate limit error", "INTERNAL_ERROR"))
		return false
	}

	setRateLimitHeaders(c, result)

	if !result.Allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(message, "RATE_LIMITED"))
		return false
	}
	return true
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
