package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per key. Authenticated requests are
// keyed by reader, anonymous ones by client IP.
type RateLimiter struct {
	name  string
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	lastGC   time.Time
}

func NewRateLimiter(name string, perMinute float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		name:     name,
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		now:      time.Now,
		visitors: map[string]*visitor{},
	}
}

func (l *RateLimiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > limiterIdleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	reservation := v.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "ip:" + c.IP()
		if readerID := logger.GetReaderIDFromContext(c); readerID != nil {
			key = "reader:" + *readerID
		}

		ok, retryAfter := l.allow(key)
		if ok {
			return c.Next()
		}

		seconds := int(retryAfter.Seconds())
		if retryAfter > time.Duration(seconds)*time.Second {
			seconds++
		}
		if seconds > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
		}
		logger.Warn("rate_limited", map[string]interface{}{
			"limiter": l.name,
			"key":     key,
			"path":    c.Path(),
		})
		return utils.Error(c, fiber.StatusTooManyRequests, "too many requests, slow down")
	}
}
