// Package ratelimit implements a fixed-window request limiter with pluggable counter storage.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/subsync/pkg/config"
)

// Store counts hits per key inside a fixed window.
type Store interface {
	// Incr adds one hit and returns the window total and the time until the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type Result struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func (r Result) Allowed() bool { return r.Remaining >= 0 }

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	n, ttl, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return Result{Limit: l.limit, Remaining: l.limit}, err
	}
	res := Result{Limit: l.limit, Remaining: l.limit - int(n)}
	if !res.Allowed() {
		res.RetryAfter = ttl
	}
	return res, nil
}

// New builds the limiter from config and ties its store to the app lifecycle.
// A nil limiter means rate limiting is disabled.
func New(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) *Limiter {
	rc := cfg.RateLimit
	if !rc.Enabled || rc.Limit <= 0 || rc.Window <= 0 {
		log.Infow("rate limiting disabled")
		return nil
	}
	if rc.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: rc.RedisAddr})
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warnw("rate limit redis unreachable, requests fail open", "addr", rc.RedisAddr, "error", err)
				}
				return nil
			},
			OnStop: func(context.Context) error { return client.Close() },
		})
		log.Infow("rate limiting enabled", "store", "redis", "limit", rc.Limit, "window", rc.Window)
		return NewLimiter(NewRedisStore(client, "subsync:ratelimit:"), rc.Limit, rc.Window)
	}

	store := NewMemoryStore()
	stop := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go store.Run(rc.SweepInterval, stop)
			return nil
		},
		OnStop: func(context.Context) error {
			close(stop)
			return nil
		},
	})
	log.Infow("rate limiting enabled", "store", "memory", "limit", rc.Limit, "window", rc.Window)
	return NewLimiter(store, rc.Limit, rc.Window)
}

var Module = fx.Options(
	fx.Provide(New),
)
