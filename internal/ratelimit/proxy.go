package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/config"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/metrics"
)

const (
	healthCheckInterval = 10 * time.Second
	defaultMaxQueueTime = 30 * time.Second
	pollInterval        = 100 * time.Millisecond
)

// ErrProxyClosed is returned for requests submitted after Close
var ErrProxyClosed = errors.New("pacing proxy is closed")

// RequestFunc performs one upstream call once a token is held
type RequestFunc func(ctx context.Context) (interface{}, error)

type outcome struct {
	value interface{}
	err   error
}

// Proxy paces outbound calls per upstream provider across every process
// sharing the same Redis
//
//go:generate mockgen -source=proxy.go -destination=../mocks/ratelimit_proxy.go -package=mocks -mock_names=Proxy=MockRateLimitProxy
type Proxy interface {
	// Request waits for a token of the provider and runs fn
	Request(ctx context.Context, provider string, fn RequestFunc) (interface{}, error)

	// Close stops accepting requests and drains in-flight ones
	Close() error
}

type proxy struct {
	cfg       config.RateLimiterConfig
	pool      pond.ResultPool[*outcome]
	providers map[string]*providerPacer
	redis     adapter.RedisClient
	clock     adapter.Clock
	stop      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	redisUp   atomic.Bool
}

// providerPacer holds the token sources of one provider
type providerPacer struct {
	name        string
	cfg         config.RateLimitConfig
	key         string
	distributed adapter.RedisRateLimiter
	local       *rate.Limiter
	preFilter   *rate.Limiter
}

// NewProxy creates a pacing proxy. Redis being unreachable at start is
// tolerated only when local fallback is enabled.
func NewProxy(cfg config.RateLimiterConfig, rc adapter.RedisClient, clock adapter.Clock) (Proxy, error) {
	if err := normalizeConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid rate limit configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisUp := true
	if err := rc.Ping(ctx); err != nil {
		if !cfg.EnableLocalFallback {
			return nil, fmt.Errorf("redis unavailable and fallback disabled: %w", err)
		}
		redisUp = false
		logger.Warn("Redis unavailable, pacing with local limiters", zap.Error(err))
	}

	distributed := rc.RateLimiter()
	providers := make(map[string]*providerPacer, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		localRate := max(float64(pc.RequestsPerSecond)*cfg.LocalFallbackMultiplier, 1.0)
		providers[name] = &providerPacer{
			name:        name,
			cfg:         pc,
			key:         cfg.RedisKeyPrefix + name,
			distributed: distributed,
			local:       rate.NewLimiter(rate.Limit(localRate), pc.Burst),
			preFilter:   rate.NewLimiter(rate.Limit(pc.RequestsPerSecond), pc.Burst),
		}
	}

	p := &proxy{
		cfg:       cfg,
		pool:      pond.NewResultPool[*outcome](cfg.MaxWorkers, pond.WithQueueSize(cfg.MaxQueueSize)),
		providers: providers,
		redis:     rc,
		clock:     clock,
		stop:      make(chan struct{}),
	}
	p.redisUp.Store(redisUp)
	metrics.SetLimiterRedisUp(redisUp)

	go p.watchRedis()

	logger.Info("Pacing proxy started",
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.Int("max_queue_size", cfg.MaxQueueSize),
		zap.Int("providers", len(providers)),
		zap.Bool("redis", redisUp),
	)
	return p, nil
}

// Request runs fn through p under the provider's pacing. A nil proxy runs fn directly.
func Request[T any](ctx context.Context, p Proxy, provider string, fn func(ctx context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}

	var zero T
	v, err := p.Request(ctx, provider, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, nil
	}
	return typed, nil
}

func (p *proxy) Request(ctx context.Context, provider string, fn RequestFunc) (interface{}, error) {
	if p.closed.Load() {
		return nil, ErrProxyClosed
	}

	pacer, ok := p.providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider '%s' not configured", provider)
	}

	task := p.pool.Submit(func() *outcome {
		waitCtx, cancel := context.WithTimeout(ctx, pacer.cfg.MaxQueueTime)
		err := p.acquire(waitCtx, pacer)
		cancel()
		if err != nil {
			return &outcome{err: fmt.Errorf("waiting for %s token: %w", provider, err)}
		}
		v, err := fn(ctx)
		return &outcome{value: v, err: err}
	})

	res, err := task.Wait()
	if err != nil {
		return nil, err
	}
	return res.value, res.err
}

// acquire blocks until a token is granted by Redis, or by the local limiter when Redis is down
func (p *proxy) acquire(ctx context.Context, pacer *providerPacer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !p.redisUp.Load() {
			if !p.cfg.EnableLocalFallback {
				if err := p.sleep(ctx, pollInterval); err != nil {
					return err
				}
				continue
			}
			return pacer.local.Wait(ctx)
		}

		allowed, retryAfter, err := p.tryRedis(ctx, pacer)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.redisUp.Store(false)
			metrics.SetLimiterRedisUp(false)
			if !p.cfg.EnableLocalFallback {
				return fmt.Errorf("redis rate limiter unavailable: %w", err)
			}
			logger.Warn("Redis rate limiter failed, pacing locally",
				zap.String("provider", pacer.name), zap.Error(err))
		case allowed:
			return nil
		default:
			// spread retries over 50-150% of the advertised wait
			jitter := time.Duration(float64(retryAfter) * (0.5 + rand.Float64())) //nolint:gosec,G404
			if err := p.sleep(ctx, jitter); err != nil {
				return err
			}
		}
	}
}

func (p *proxy) tryRedis(ctx context.Context, pacer *providerPacer) (bool, time.Duration, error) {
	if pacer.distributed == nil {
		return false, 0, errors.New("distributed limiter not available")
	}

	if err := pacer.preFilter.Wait(ctx); err != nil {
		return false, 0, err
	}

	res, err := pacer.distributed.Allow(ctx, pacer.key, redis_rate.PerSecond(pacer.cfg.RequestsPerSecond))
	if err != nil {
		return false, 0, err
	}
	if res.Allowed > 0 {
		return true, 0, nil
	}

	logger.Debug("Provider token unavailable",
		zap.String("provider", pacer.name),
		zap.Duration("retry_after", res.RetryAfter))

	retryAfter := res.RetryAfter
	if retryAfter <= 0 {
		retryAfter = pollInterval
	}
	return false, retryAfter, nil
}

func (p *proxy) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(d):
		return nil
	}
}

// watchRedis pings Redis periodically and flips the availability flag
func (p *proxy) watchRedis() {
	for {
		select {
		case <-p.stop:
			return
		case <-p.clock.After(healthCheckInterval):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := p.redis.Ping(ctx)
		cancel()

		up := err == nil
		metrics.SetLimiterRedisUp(up)
		if was := p.redisUp.Swap(up); !was && up {
			logger.Info("Redis connection restored, resuming distributed pacing")
		}
	}
}

func (p *proxy) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.stop)

		p.pool.StopAndWait()

		if closeErr := p.redis.Close(); closeErr != nil {
			logger.Warn("Failed to close Redis connection", zap.Error(closeErr))
			err = closeErr
		}
		logger.Info("Pacing proxy stopped")
	})
	return err
}

// normalizeConfig validates cfg and fills defaults in place
func normalizeConfig(cfg *config.RateLimiterConfig) error {
	if cfg.RedisAddr == "" {
		return errors.New("redis_addr is required")
	}
	if len(cfg.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	providers := make(map[string]config.RateLimitConfig, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		if pc.RequestsPerSecond <= 0 {
			return fmt.Errorf("provider %s: requests_per_second must be positive", name)
		}
		if pc.Burst <= 0 {
			pc.Burst = pc.RequestsPerSecond
		}
		if pc.MaxQueueTime <= 0 {
			pc.MaxQueueTime = defaultMaxQueueTime
		}
		providers[name] = pc
	}
	cfg.Providers = providers

	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = "ff:link-preview:limiter:"
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU() * 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1000
	}
	if cfg.LocalFallbackMultiplier <= 0 {
		cfg.LocalFallbackMultiplier = 0.5
	}
	return nil
}
