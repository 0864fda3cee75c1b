package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat-requests/internal/domain/user"
	"chat-requests/internal/redis"
	"chat-requests/internal/services"
	app_errors "chat-requests/pkg/errors"
	"chat-requests/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestExtractBearer(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"Bearer abc":       "abc",
		"bearer  abc ":     "abc",
		"Basic dXNlcjpwdw": "",
		"abc":              "",
	}
	for header, want := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set("Authorization", header)
		if got := extractBearer(c); got != want {
			t.Errorf("extractBearer(%q) = %q, want %q", header, got, want)
		}
	}
}

type stubAuth struct {
	u   user.User
	err error
}

func (a stubAuth) Authenticate(ctx context.Context, token string) (user.User, error) {
	if token != "good" {
		return user.User{}, app_errors.ErrUnauthorized
	}
	return a.u, a.err
}

func TestAuthMiddleware(t *testing.T) {
	alice := user.User{ID: uuid.New(), Email: "alice@x.com"}
	newRouter := func(auth Authenticator) *gin.Engine {
		r := gin.New()
		r.GET("/me", AuthMiddleware(auth), func(c *gin.Context) {
			current, ok := services.UserFromContext(c.Request.Context())
			if !ok {
				c.Status(http.StatusTeapot)
				return
			}
			c.String(http.StatusOK, current.Email)
		})
		return r
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := serve(newRouter(stubAuth{u: alice}), req)
	if rec.Code != http.StatusOK || rec.Body.String() != "alice@x.com" {
		t.Errorf("valid token: %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(newRouter(stubAuth{u: alice}), httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = serve(newRouter(stubAuth{err: errors.New("db down")}), req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("lookup failure: %d", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen interface{}
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		seen = c.Request.Context().Value(logger.RequestIdKey)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := serve(r, req)
	if rec.Header().Get(RequestIDHeader) != "req-123" || seen != "req-123" {
		t.Errorf("incoming id not kept: header %q, context %v", rec.Header().Get(RequestIDHeader), seen)
	}

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get(RequestIDHeader); len(got) != 32 {
		t.Errorf("generated id = %q", got)
	}
}

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (l *stubLimiter) AllowAuth(ctx context.Context, ip string) (*redis.RateLimitResult, error) {
	l.keys = append(l.keys, ip)
	return l.result()
}

func (l *stubLimiter) AllowChatRequest(ctx context.Context, userID string) (*redis.RateLimitResult, error) {
	l.keys = append(l.keys, userID)
	return l.result()
}

func (l *stubLimiter) result() (*redis.RateLimitResult, error) {
	if l.err != nil {
		return nil, l.err
	}
	remaining := 0
	if l.allowed {
		remaining = 3
	}
	return &redis.RateLimitResult{Allowed: l.allowed, Remaining: remaining, Limit: 4, ResetIn: 10 * time.Second}, nil
}

func TestChatRequestRateLimit(t *testing.T) {
	alice := user.User{ID: uuid.New(), Email: "alice@x.com"}
	newRouter := func(limiter RateLimiter) *gin.Engine {
		r := gin.New()
		r.POST("/requests", AuthMiddleware(stubAuth{u: alice}), ChatRequestRateLimitMiddleware(limiter), func(c *gin.Context) {
			c.Status(http.StatusCreated)
		})
		return r
	}
	post := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/requests", nil)
		req.Header.Set("Authorization", "Bearer good")
		return req
	}

	allow := &stubLimiter{allowed: true}
	rec := serve(newRouter(allow), post())
	if rec.Code != http.StatusCreated || rec.Header().Get("X-RateLimit-Remaining") != "3" {
		t.Errorf("allowed: %d %v", rec.Code, rec.Header())
	}
	if len(allow.keys) != 1 || allow.keys[0] != alice.ID.String() {
		t.Errorf("limited on %v, want user id", allow.keys)
	}

	if rec := serve(newRouter(&stubLimiter{}), post()); rec.Code != http.StatusTooManyRequests {
		t.Errorf("denied: %d", rec.Code)
	}
	if rec := serve(newRouter(&stubLimiter{err: errors.New("redis down")}), post()); rec.Code != http.StatusInternalServerError {
		t.Errorf("limiter failure: %d", rec.Code)
	}
}

func TestAuthRateLimitUsesClientIP(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	r := gin.New()
	r.POST("/login", AuthRateLimitMiddleware(limiter), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.7:4242"
	serve(r, req)
	if len(limiter.keys) != 1 || limiter.keys[0] != "192.0.2.7" {
		t.Errorf("limited on %v", limiter.keys)
	}
}
