package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/kyc-flow/kyc_flow/internal/geo"
)

const rateLimitPrefix = "rl:v1:"

// localLimiter is the per-process token bucket used when Redis cannot answer.
type localLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newLocalLimiter(maxPerMin int) *localLimiter {
	return &localLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Every(time.Minute / time.Duration(maxPerMin)),
		burst:   maxPerMin,
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

// RateLimit caps requests per phone (taken from the JSON body) or, failing
// that, per client IP at maxPerMin within a fixed one-minute window shared
// through Redis. When Redis is absent or failing the limit is enforced per
// process instead.
func RateLimit(cache *redis.Client, scope string, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	local := newLocalLimiter(maxPerMin)
	return func(c *fiber.Ctx) error {
		var req struct {
			Phone string `json:"phone"`
		}
		_ = c.BodyParser(&req)
		subject := strings.TrimSpace(req.Phone)
		if subject == "" {
			subject = geo.ClientIP(c)
		}
		key := rateLimitPrefix + scope + ":" + subject

		if cache != nil {
			cnt, err := hit(c.UserContext(), cache, key)
			if err == nil {
				if cnt > int64(maxPerMin) {
					return tooManyRequests()
				}
				return c.Next()
			}
			if logger != nil {
				logger.Warn("rate limit store unavailable, using local limiter", slog.String("scope", scope), slog.Any("error", err))
			}
		}

		if !local.allow(key) {
			return tooManyRequests()
		}
		return c.Next()
	}
}

// hit counts one request against key. The window is created with its expiry
// in the same transaction, so a counter can never outlive it.
func hit(ctx context.Context, cache *redis.Client, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, time.Minute)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func tooManyRequests() error {
	return fiber.NewError(http.StatusTooManyRequests, "Too many requests, please try again later")
}
