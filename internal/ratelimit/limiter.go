package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/logger"
)

const (
	// redisRetryDelay is how long the local fallback is used after a Redis failure
	redisRetryDelay = 10 * time.Second

	// maxLocalKeys bounds the local limiter table, it is reset when full
	maxLocalKeys = 10000
)

// Config holds the rate of one key
type Config struct {
	RequestsPerSecond int
	Burst             int
	// KeyPrefix namespaces the Redis keys
	KeyPrefix string
}

// Result is the decision for one request
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a caller may perform one more request
//
//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit_limiter.go -package=mocks -mock_names=Limiter=MockRateLimiter
type Limiter interface {
	// Allow takes a token for key
	Allow(ctx context.Context, key string) (Result, error)
}

// limiter uses a shared Redis GCRA limiter when one is given and healthy,
// and a per-process token bucket per key otherwise
type limiter struct {
	config      Config
	distributed adapter.RedisRateLimiter
	clock       adapter.Clock

	redisDownUntil atomic.Int64 // unix nanos

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// NewLimiter creates a limiter, distributed may be nil
func NewLimiter(cfg Config, distributed adapter.RedisRateLimiter, clock adapter.Clock) (Limiter, error) {
	if cfg.RequestsPerSecond <= 0 {
		return nil, errors.New("requests per second must be positive")
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond
	}

	return &limiter{
		config:      cfg,
		distributed: distributed,
		clock:       clock,
		local:       make(map[string]*rate.Limiter),
	}, nil
}

func (l *limiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.clock.Now()

	if l.distributed != nil && now.UnixNano() >= l.redisDownUntil.Load() {
		res, err := l.distributed.Allow(ctx, l.config.KeyPrefix+key, redis_rate.Limit{
			Rate:   l.config.RequestsPerSecond,
			Burst:  l.config.Burst,
			Period: time.Second,
		})
		if err == nil {
			return Result{
				Allowed:    res.Allowed > 0,
				Remaining:  res.Remaining,
				RetryAfter: max(res.RetryAfter, 0),
			}, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		l.redisDownUntil.Store(now.Add(redisRetryDelay).UnixNano())
		logger.WarnCtx(ctx, "Redis rate limiter error, falling back to local", zap.Error(err))
	}

	return l.allowLocal(key, now), nil
}

func (l *limiter) allowLocal(key string, now time.Time) Result {
	l.mu.Lock()
	bucket, ok := l.local[key]
	if !ok {
		if len(l.local) >= maxLocalKeys {
			l.local = make(map[string]*rate.Limiter)
		}
		bucket = rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst)
		l.local[key] = bucket
	}
	l.mu.Unlock()

	if bucket.AllowN(now, 1) {
		return Result{Allowed: true, Remaining: int(bucket.TokensAt(now))}
	}

	r := bucket.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return Result{RetryAfter: delay}
}
