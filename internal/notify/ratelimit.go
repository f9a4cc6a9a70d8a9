package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter caps deliveries per key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// NoLimit allows everything
type NoLimit struct{}

// Allow always returns true
func (NoLimit) Allow(context.Context, string) (bool, error) { return true, nil }

// RedisRateLimiter counts sends in Redis so the limit holds across
// replicas.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// NewRedisRateLimiter creates a limiter allowing limit sends per key per window
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window, prefix: "medalert:ratelimit:"}
}

// Allow increments the key's counter and reports whether it is within the limit
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	k := l.prefix + key

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}

// MemoryRateLimiter is a process-local token bucket per key. Keys idle for
// longer than a full refill are evicted.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	now       func() time.Time
	limiters  map[string]*keyLimiter
	lastSweep time.Time
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryRateLimiter creates a limiter allowing a burst of limit sends per
// key, refilled at limit per window
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		limiters: make(map[string]*keyLimiter),
	}
}

// Allow takes a token for key and reports whether one was available
func (l *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictIdle(now)

	kl, ok := l.limiters[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)}
		l.limiters[key] = kl
	}
	kl.lastSeen = now
	return kl.limiter.AllowN(now, 1), nil
}

// evictIdle drops keys whose bucket has been full for at least a window.
// A fresh limiter for such a key behaves identically.
func (l *MemoryRateLimiter) evictIdle(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, kl := range l.limiters {
		if now.Sub(kl.lastSeen) >= l.window {
			delete(l.limiters, key)
		}
	}
}

// Len reports how many keys are tracked
func (l *MemoryRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
