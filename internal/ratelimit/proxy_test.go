package ratelimit_test

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-link-preview/internal/config"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/mocks"
	"github.com/feral-file/ff-link-preview/internal/ratelimit"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testProxyMocks struct {
	ctrl             *gomock.Controller
	redisClient      *mocks.MockRedisClient
	redisRateLimiter *mocks.MockRedisRateLimiter
	clock            *mocks.MockClock
}

func setupTestProxy(t *testing.T) *testProxyMocks {
	ctrl := gomock.NewController(t)
	return &testProxyMocks{
		ctrl:             ctrl,
		redisClient:      mocks.NewMockRedisClient(ctrl),
		redisRateLimiter: mocks.NewMockRedisRateLimiter(ctrl),
		clock:            mocks.NewMockClock(ctrl),
	}
}

func firedAfter(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func neverFires(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

func testLimiterConfig() config.RateLimiterConfig {
	return config.RateLimiterConfig{
		RedisAddr:               "localhost:6379",
		RedisKeyPrefix:          "test:limiter:",
		MaxWorkers:              4,
		MaxQueueSize:            16,
		EnableLocalFallback:     true,
		LocalFallbackMultiplier: 0.5,
		Providers: map[string]config.RateLimitConfig{
			"github": {RequestsPerSecond: 100, Burst: 100, MaxQueueTime: time.Second},
		},
	}
}

// newTestProxy starts a proxy whose health watcher never ticks
func newTestProxy(t *testing.T, m *testProxyMocks, cfg config.RateLimiterConfig, pingErr error) ratelimit.Proxy {
	m.clock.EXPECT().After(10 * time.Second).DoAndReturn(neverFires).AnyTimes()
	m.redisClient.EXPECT().Ping(gomock.Any()).Return(pingErr)
	m.redisClient.EXPECT().RateLimiter().Return(m.redisRateLimiter)

	p, err := ratelimit.NewProxy(cfg, m.redisClient, m.clock)
	require.NoError(t, err)
	require.NotNil(t, p)

	t.Cleanup(func() {
		m.redisClient.EXPECT().Close().Return(nil).AnyTimes()
		_ = p.Close()
	})
	return p
}

func TestNewProxy(t *testing.T) {
	t.Run("redis available", func(t *testing.T) {
		m := setupTestProxy(t)
		newTestProxy(t, m, testLimiterConfig(), nil)
	})

	t.Run("redis unavailable with fallback", func(t *testing.T) {
		m := setupTestProxy(t)
		newTestProxy(t, m, testLimiterConfig(), errors.New("connection refused"))
	})

	t.Run("redis unavailable without fallback", func(t *testing.T) {
		m := setupTestProxy(t)
		cfg := testLimiterConfig()
		cfg.EnableLocalFallback = false
		m.redisClient.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

		p, err := ratelimit.NewProxy(cfg, m.redisClient, m.clock)
		assert.Nil(t, p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis unavailable and fallback disabled")
	})
}

func TestNewProxy_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.RateLimiterConfig)
		wantErr string
	}{
		{
			name:    "missing redis address",
			mutate:  func(cfg *config.RateLimiterConfig) { cfg.RedisAddr = "" },
			wantErr: "redis_addr is required",
		},
		{
			name:    "no providers",
			mutate:  func(cfg *config.RateLimiterConfig) { cfg.Providers = nil },
			wantErr: "at least one provider must be configured",
		},
		{
			name: "zero rate",
			mutate: func(cfg *config.RateLimiterConfig) {
				cfg.Providers = map[string]config.RateLimitConfig{"devto": {RequestsPerSecond: 0}}
			},
			wantErr: "provider devto: requests_per_second must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := setupTestProxy(t)
			cfg := testLimiterConfig()
			tt.mutate(&cfg)

			p, err := ratelimit.NewProxy(cfg, m.redisClient, m.clock)
			assert.Nil(t, p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProxy_Request(t *testing.T) {
	m := setupTestProxy(t)
	p := newTestProxy(t, m, testLimiterConfig(), nil)

	m.redisRateLimiter.EXPECT().
		Allow(gomock.Any(), "test:limiter:github", redis_rate.PerSecond(100)).
		Return(&redis_rate.Result{Allowed: 1, Remaining: 99}, nil)

	v, err := p.Request(context.Background(), "github", func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestProxy_Request_PropagatesFunctionError(t *testing.T) {
	m := setupTestProxy(t)
	p := newTestProxy(t, m, testLimiterConfig(), nil)

	m.redisRateLimiter.EXPECT().
		Allow(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&redis_rate.Result{Allowed: 1}, nil)

	upstreamErr := errors.New("upstream exploded")
	_, err := p.Request(context.Background(), "github", func(ctx context.Context) (interface{}, error) {
		return nil, upstreamErr
	})
	assert.ErrorIs(t, err, upstreamErr)
}

func TestProxy_Request_UnknownProvider(t *testing.T) {
	m := setupTestProxy(t)
	p := newTestProxy(t, m, testLimiterConfig(), nil)

	v, err := p.Request(context.Background(), "myspace", func(ctx context.Context) (interface{}, error) {
		t.Fatal("function must not run")
		return nil, nil
	})
	assert.Nil(t, v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider 'myspace' not configured")
}

func TestProxy_Request_ContextCanceled(t *testing.T) {
	m := setupTestProxy(t)
	p := newTestProxy(t, m, testLimiterConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	_, err := p.Request(ctx, "github", func(ctx context.Context) (interface{}, error) {
		ran.Store(true)
		return nil, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

func TestProxy_Request_WaitsForRetryAfter(t *testing.T) {
	m := setupTestProxy(t)
	p := newTestProxy(t, m, testLimiterConfig(), nil)

	gomock.InOrder(
		m.redisRateLimiter.EXPECT().
			Allow(gomock.Any(), "test:limiter:github", gomock.Any()).
			Return(&redis_rate.Result{Allowed: 0, RetryAfter: 50 * time.Millisecond}, nil),
		m.clock.EXPECT().
			After(gomock.Not(10*time.Second)).
			DoAndReturn(firedAfter),
		m.redisRateLimiter.EXPECT().
			Allow(gomock.Any(), "test:limiter:github", gomock.Any()).
			Return(&redis_rate.Result{Allowed: 1}, nil),
	)

	v, err := p.Request(context.Background(), "github", func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestProxy_Request_FallsBackToLocalLimiter(t *testing.T) {
	m := setupTestProxy(t)
	p := newTestProxy(t, m, testLimiterConfig(), nil)

	m.redisRateLimiter.EXPECT().
		Allow(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("redis: connection reset"))

	for i := 0; i < 2; i++ {
		v, err := p.Request(context.Background(), "github", func(ctx context.Context) (interface{}, error) {
			return "local", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "local", v)
	}
}

func TestProxy_Request_RedisDownAtStart(t *testing.T) {
	m := setupTestProxy(t)
	p := newTestProxy(t, m, testLimiterConfig(), errors.New("connection refused"))

	v, err := p.Request(context.Background(), "github", func(ctx context.Context) (interface{}, error) {
		return "local", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "local", v)
}

func TestProxy_Close(t *testing.T) {
	m := setupTestProxy(t)
	m.clock.EXPECT().After(10 * time.Second).DoAndReturn(neverFires).AnyTimes()
	m.redisClient.EXPECT().Ping(gomock.Any()).Return(nil)
	m.redisClient.EXPECT().RateLimiter().Return(m.redisRateLimiter)
	m.redisClient.EXPECT().Close().Return(nil).Times(1)

	p, err := ratelimit.NewProxy(testLimiterConfig(), m.redisClient, m.clock)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.Request(context.Background(), "github", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ratelimit.ErrProxyClosed)
}

func TestRequest_Generic(t *testing.T) {
	t.Run("nil proxy runs directly", func(t *testing.T) {
		v, err := ratelimit.Request(context.Background(), nil, "github", func(ctx context.Context) (string, error) {
			return "direct", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "direct", v)
	})

	t.Run("typed result through the proxy", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		p := mocks.NewMockRateLimitProxy(ctrl)
		p.EXPECT().
			Request(gomock.Any(), "devto", gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ string, fn ratelimit.RequestFunc) (interface{}, error) {
				return fn(ctx)
			})

		v, err := ratelimit.Request(context.Background(), p, "devto", func(ctx context.Context) (int, error) {
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})
}
