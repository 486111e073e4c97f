package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"

	"github.com/reelcut/api/pkg/response"
)

// RateLimiter is a fixed-window counter per caller stored in Redis
type RateLimiter struct {
	redis  *redis.Client
	logger hclog.Logger
}

func NewRateLimiter(redisClient *redis.Client, logger hclog.Logger) *RateLimiter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &RateLimiter{redis: redisClient, logger: logger}
}

// Limit allows maxRequests per window for each authenticated user, or per
// client IP when no user is set. Redis failures let the request through.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.redis == nil || maxRequests <= 0 {
			return c.Next()
		}

		caller := GetUserID(c)
		if caller == "" {
			caller = "ip:" + c.IP()
		}
		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, caller)
		ctx := c.UserContext()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			rl.logger.Warn("rate limit check failed", "key", key, "error", err)
			return c.Next()
		}

		// First hit opens the window
		if count == 1 {
			if err := rl.redis.Expire(ctx, key, window).Err(); err != nil {
				rl.logger.Warn("failed to set rate limit window", "key", key, "error", err)
			}
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(maxRequests-int(count)))

		return c.Next()
	}
}

// EditLimit limits timeline edits per minute
func (rl *RateLimiter) EditLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("edit", maxPerMin, time.Minute)
}

// RenderLimit limits render starts per hour
func (rl *RateLimiter) RenderLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("render", maxPerHour, time.Hour)
}

// ExportLimit limits exports per hour
func (rl *RateLimiter) ExportLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("export", maxPerHour, time.Hour)
}

// UploadLimit limits media uploads per hour
func (rl *RateLimiter) UploadLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("upload", maxPerHour, time.Hour)
}
