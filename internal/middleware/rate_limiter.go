package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"poscore/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ── Fixed-window rate limiter ─────────────────────────────────────────────────
// With Redis the counters are shared by every API replica; without it each
// process counts on its own.

type counter interface {
	// incr bumps the counter for key and returns the new count and the time
	// left in the current window.
	incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimiter allows limit requests per window and per client IP. name
// separates the counters of different limiters.
func RateLimiter(rdb *redis.Client, name string, limit int, window time.Duration, message string) gin.HandlerFunc {
	var store counter = newMemoryCounter()
	if rdb != nil {
		store = &redisCounter{rdb: rdb}
	}

	return func(c *gin.Context) {
		key := "ratelimit:" + name + ":" + c.ClientIP()
		n, ttl, err := store.incr(c.Request.Context(), key, window)
		if err != nil {
			// Fail open: a Redis outage must not lock cashiers out.
			log.Warn().Err(err).Str("limiter", name).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if n > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(message))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter(rdb *redis.Client) gin.HandlerFunc {
	return RateLimiter(rdb, "login", 20, time.Minute, "Demasiados intentos de login. Intente en 1 minuto.")
}

// APIRateLimiter is the general limit applied to every authenticated route.
func APIRateLimiter(rdb *redis.Client, limit int) gin.HandlerFunc {
	return RateLimiter(rdb, "api", limit, time.Minute, "Demasiadas solicitudes. Intente nuevamente en un momento.")
}

// ── Redis counter ─────────────────────────────────────────────────────────────

type redisCounter struct{ rdb *redis.Client }

func (r *redisCounter) incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return incr.Val(), ttl.Val(), nil
}

// ── In-memory counter ─────────────────────────────────────────────────────────

type window struct {
	count int64
	ends  time.Time
}

type memoryCounter struct {
	mu        sync.Mutex
	windows   map[string]*window
	lastPurge time.Time
	now       func() time.Time
}

const purgeInterval = 5 * time.Minute

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{windows: make(map[string]*window), now: time.Now}
}

func (m *memoryCounter) incr(_ context.Context, key string, d time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastPurge) > purgeInterval {
		m.purge(now)
	}

	w, ok := m.windows[key]
	if !ok || now.After(w.ends) {
		w = &window{ends: now.Add(d)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.ends.Sub(now), nil
}

// purge drops expired windows so IPs that never return do not accumulate.
func (m *memoryCounter) purge(now time.Time) {
	purged := 0
	for key, w := range m.windows {
		if now.After(w.ends) {
			delete(m.windows, key)
			purged++
		}
	}
	m.lastPurge = now
	if purged > 0 {
		log.Debug().Int("purged", purged).Int("remaining", len(m.windows)).Msg("rate limiter windows purged")
	}
}
