package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"lexie-server/api/internal/apierr"
	"lexie-server/api/internal/logger"
)

// Limiter решает, пропустить ли ещё один запрос с ключа (IP).
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit отвечает 429, когда лимитер отказал. Ошибка лимитера запрос не блокирует.
func RateLimit(l Limiter, window time.Duration, log *logger.Logger) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" || l == nil {
			c.Next()
			return
		}
		ok, err := l.Allow(c.Request.Context(), ip)
		if err != nil {
			if log != nil {
				log.Warn("rate limiter failed, letting request through", "error", err)
			}
			c.Next()
			return
		}
		if !ok {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": apierr.MsgRateLimited})
			return
		}
		c.Next()
	}
}

// MemoryLimiter - token bucket на IP: max запросов за window, всплеск до max.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*visitor
	every   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*visitor),
		every:   rate.Every(window / time.Duration(max)),
		burst:   max,
		idle:    window,
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.buckets[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(m.every, m.burst)}
		m.buckets[key] = v
		m.sweep(now)
	}
	v.seen = now
	return v.lim.AllowN(now, 1), nil
}

// sweep выкидывает IP, которых не было дольше окна: их ведро уже полное.
func (m *MemoryLimiter) sweep(now time.Time) {
	if len(m.buckets) < 1024 {
		return
	}
	for k, v := range m.buckets {
		if now.Sub(v.seen) > m.idle {
			delete(m.buckets, k)
		}
	}
}

// RedisLimiter - фиксированное окно на INCR, общее для всех инстансов.
type RedisLimiter struct {
	rdb    *redis.Client
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, max: int64(max), window: window, now: time.Now}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := r.now().UnixNano() / int64(r.window)
	k := fmt.Sprintf("lexie:rate_limit:%s:%d", key, slot)

	count, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		r.rdb.PExpire(ctx, k, r.window+time.Second)
	}
	return count <= r.max, nil
}
