package httpmiddleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a client key may proceed.
type Limiter interface {
	Allow(c *gin.Context, key string) bool
}

// RateLimit returns a gin handler enforcing per-IP limits with the given
// backend.
func RateLimit(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(c, ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

// RedisLimiter counts requests per key in fixed one-minute windows shared
// across instances. Fails open when redis is unavailable.
type RedisLimiter struct {
	client *redis.Client
	perMin int
}

// NewRedisLimiter creates a limiter allowing perMinute requests per key.
func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
	return &RedisLimiter{client: client, perMin: perMinute}
}

func (l *RedisLimiter) Allow(c *gin.Context, key string) bool {
	ctx := c.Request.Context()
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/60)
	count, err := l.client.Incr(ctx, bucket).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		l.client.Expire(ctx, bucket, 2*time.Minute)
	}
	return count <= int64(l.perMin)
}

// MemoryLimiter is a token bucket for single-instance and dev use.
type MemoryLimiter struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewMemoryLimiter creates a limiter with capacity tokens refilled at
// perMinute per minute.
func NewMemoryLimiter(capacity, perMinute int) *MemoryLimiter {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &MemoryLimiter{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Allow(_ *gin.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := time.Now()
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
