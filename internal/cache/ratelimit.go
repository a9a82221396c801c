package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// tokenBucketScript is a Lua script implementing the token bucket algorithm.
// It's atomic and handles token refill and consumption in a single operation.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- max tokens (bucket capacity)
	local now = tonumber(ARGV[3])       -- current time in seconds
	local ttl = tonumber(ARGV[4])       -- TTL in seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = now - last_update
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckRoleSwitchLimit consumes one manager password attempt for the user.
// maxAttempts attempts are allowed per window; the bucket refills gradually.
func (c *Cache) CheckRoleSwitchLimit(ctx context.Context, userID string, maxAttempts int, window time.Duration) (*RateLimitResult, error) {
	if maxAttempts <= 0 || window <= 0 {
		return &RateLimitResult{Allowed: true}, nil
	}

	rate := float64(maxAttempts) / window.Seconds()
	return c.checkRateLimit(ctx, c.roleSwitchKey(userID), rate, maxAttempts, int(window.Seconds()))
}

// ResetRoleSwitchLimit clears the attempt bucket after a successful switch.
func (c *Cache) ResetRoleSwitchLimit(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.roleSwitchKey(userID)).Err()
}

// CheckIPRateLimit consumes one credential attempt for the client address.
// perMinute is the sustained rate and burst the bucket capacity.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, perMinute, burst int) (*RateLimitResult, error) {
	if perMinute <= 0 {
		return &RateLimitResult{Allowed: true}, nil
	}
	if burst <= 0 {
		burst = perMinute
	}

	rate := float64(perMinute) / 60
	return c.checkRateLimit(ctx, c.key("ratelimit", "ip", hashKey(ip)), rate, burst, 120)
}

func (c *Cache) checkRateLimit(ctx context.Context, key string, rate float64, burst, ttl int) (*RateLimitResult, error) {
	now := time.Now().Unix()

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		rate, burst, now, ttl,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		RetryAfter: time.Duration(result[1]) * time.Second,
		Remaining:  result[2],
	}, nil
}

func (c *Cache) roleSwitchKey(userID string) string {
	return c.key("ratelimit", "role", hashKey(userID))
}

// hashKey creates a truncated SHA256 hash so raw identifiers never appear in key names.
func hashKey(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
