package redis

import (
	"context"
	"fmt"
	"time"

	"chat-requests/config"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{ip}:auth          register and login attempts
// - ratelimit:{user_id}:requests chat requests sent

type RateLimitConfig struct {
	AuthLimit         int
	AuthWindow        time.Duration
	ChatRequestLimit  int
	ChatRequestWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		AuthLimit:         5,
		AuthWindow:        60 * time.Second,
		ChatRequestLimit:  20,
		ChatRequestWindow: 60 * time.Second,
	}
}

// RateLimitConfigFrom reads limits from cfg, keeping defaults for unset values.
func RateLimitConfigFrom(cfg *config.Config) RateLimitConfig {
	rl := DefaultRateLimitConfig()
	if cfg.RateLimitAuth > 0 {
		rl.AuthLimit = cfg.RateLimitAuth
	}
	if cfg.RateLimitChatRequests > 0 {
		rl.ChatRequestLimit = cfg.RateLimitChatRequests
	}
	if cfg.RateLimitWindowSec > 0 {
		window := time.Duration(cfg.RateLimitWindowSec) * time.Second
		rl.AuthWindow = window
		rl.ChatRequestWindow = window
	}
	return rl
}

type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// AllowAuth checks if an IP can make an auth attempt
func (r *RateLimiter) AllowAuth(ctx context.Context, ip string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, authKey(ip), r.config.AuthLimit, r.config.AuthWindow)
}

// AllowChatRequest checks if a user can send another chat request
func (r *RateLimiter) AllowChatRequest(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, chatRequestKey(userID), r.config.ChatRequestLimit, r.config.ChatRequestWindow)
}

func (r *RateLimiter) ResetAuth(ctx context.Context, ip string) error {
	return r.client.Del(ctx, authKey(ip)).Err()
}

func authKey(ip string) string {
	return fmt.Sprintf("ratelimit:%s:auth", ip)
}

func chatRequestKey(userID string) string {
	return fmt.Sprintf("ratelimit:%s:requests", userID)
}

// The counter and its expiry are updated atomically; the window starts with
// the first hit.
var fixedWindowScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	end
	return {0, 0, ttl}
`)

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := fixedWindowScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, ok1 := values[0].(int64)
	remaining, ok2 := values[1].(int64)
	resetIn, ok3 := values[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(resetIn) * time.Second,
		Limit:     limit,
	}, nil
}
