package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/mocks"
	"github.com/feral-file/ff-link-preview/internal/ratelimit"
)

type testBudgetMocks struct {
	ctrl  *gomock.Controller
	clock *mocks.MockClock
	store *mocks.MockSnapshotStore
}

func setupTestBudget(t *testing.T) *testBudgetMocks {
	ctrl := gomock.NewController(t)
	return &testBudgetMocks{
		ctrl:  ctrl,
		clock: mocks.NewMockClock(ctrl),
		store: mocks.NewMockSnapshotStore(ctrl),
	}
}

func rateLimitHeader(limit, remaining string, reset time.Time) http.Header {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", limit)
	h.Set("X-RateLimit-Remaining", remaining)
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	return h
}

func TestParseRateLimitHeaders(t *testing.T) {
	reset := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	snap, ok := ratelimit.ParseRateLimitHeaders(rateLimitHeader("5000", "4999", reset))
	require.True(t, ok)
	assert.Equal(t, 5000, snap.Limit)
	assert.Equal(t, 4999, snap.Remaining)
	assert.True(t, reset.Equal(snap.ResetAt))

	_, ok = ratelimit.ParseRateLimitHeaders(http.Header{})
	assert.False(t, ok)

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "many")
	_, ok = ratelimit.ParseRateLimitHeaders(h)
	assert.False(t, ok)
}

func TestBudget_Check(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(30 * time.Minute)

	t.Run("fresh budget with quota passes without verifying", func(t *testing.T) {
		m := setupTestBudget(t)
		m.clock.EXPECT().Now().Return(now).AnyTimes()

		b := ratelimit.NewBudget(ratelimit.GitHubBudgetKey, 5*time.Minute, m.clock, adapter.NewJSON(), nil)
		b.Observe(context.Background(), rateLimitHeader("60", "10", reset))

		err := b.Check(context.Background(), func(ctx context.Context) (*ratelimit.Snapshot, error) {
			t.Fatal("verify must not be called for a fresh snapshot")
			return nil, nil
		})
		assert.NoError(t, err)
	})

	t.Run("exhausted budget fails fast until reset", func(t *testing.T) {
		m := setupTestBudget(t)
		m.clock.EXPECT().Now().Return(now).AnyTimes()

		b := ratelimit.NewBudget(ratelimit.GitHubBudgetKey, 5*time.Minute, m.clock, adapter.NewJSON(), nil)
		b.Observe(context.Background(), rateLimitHeader("60", "0", reset))

		err := b.Check(context.Background(), nil)
		require.Error(t, err)

		pe := domain.AsPreviewError(err)
		assert.Equal(t, domain.ErrorKindRateLimited, pe.Kind)
		assert.True(t, pe.Retryable)
		require.NotNil(t, pe.ResetAt)
		assert.True(t, reset.Equal(*pe.ResetAt))
	})

	t.Run("exhausted budget past reset passes", func(t *testing.T) {
		m := setupTestBudget(t)
		gomock.InOrder(
			m.clock.EXPECT().Now().Return(now),
			m.clock.EXPECT().Now().Return(reset.Add(time.Second)).AnyTimes(),
		)

		b := ratelimit.NewBudget(ratelimit.GitHubBudgetKey, time.Hour, m.clock, adapter.NewJSON(), nil)
		b.Observe(context.Background(), rateLimitHeader("60", "0", reset))

		assert.NoError(t, b.Check(context.Background(), nil))
	})

	t.Run("stale snapshot is re-verified", func(t *testing.T) {
		m := setupTestBudget(t)
		gomock.InOrder(
			m.clock.EXPECT().Now().Return(now),
			m.clock.EXPECT().Now().Return(now.Add(6*time.Minute)).AnyTimes(),
		)

		b := ratelimit.NewBudget(ratelimit.GitHubBudgetKey, 5*time.Minute, m.clock, adapter.NewJSON(), nil)
		b.Observe(context.Background(), rateLimitHeader("60", "0", reset))

		calls := 0
		err := b.Check(context.Background(), func(ctx context.Context) (*ratelimit.Snapshot, error) {
			calls++
			return &ratelimit.Snapshot{Limit: 60, Remaining: 60, ResetAt: reset}, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 60, b.Snapshot().Remaining)
	})

	t.Run("verification failure keeps the last snapshot", func(t *testing.T) {
		m := setupTestBudget(t)
		gomock.InOrder(
			m.clock.EXPECT().Now().Return(now),
			m.clock.EXPECT().Now().Return(now.Add(6*time.Minute)).AnyTimes(),
		)

		b := ratelimit.NewBudget(ratelimit.GitHubBudgetKey, 5*time.Minute, m.clock, adapter.NewJSON(), nil)
		b.Observe(context.Background(), rateLimitHeader("60", "0", reset))

		err := b.Check(context.Background(), func(ctx context.Context) (*ratelimit.Snapshot, error) {
			return nil, errors.New("connection reset")
		})
		assert.Equal(t, domain.ErrorKindRateLimited, domain.KindOf(err))
	})

	t.Run("unknown budget passes after failed verification", func(t *testing.T) {
		m := setupTestBudget(t)
		m.clock.EXPECT().Now().Return(now).AnyTimes()

		b := ratelimit.NewBudget(ratelimit.GitHubBudgetKey, 5*time.Minute, m.clock, adapter.NewJSON(), nil)
		err := b.Check(context.Background(), func(ctx context.Context) (*ratelimit.Snapshot, error) {
			return nil, errors.New("unreachable")
		})
		assert.NoError(t, err)
	})
}

func TestBudget_SharedStore(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(10 * time.Minute)

	t.Run("observation is mirrored", func(t *testing.T) {
		m := setupTestBudget(t)
		m.clock.EXPECT().Now().Return(now).AnyTimes()
		m.store.EXPECT().
			SetKeyValue(gomock.Any(), "ratelimit:github", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, value string) error {
				assert.Contains(t, value, `"remaining":7`)
				return nil
			})

		b := ratelimit.NewBudget(ratelimit.GitHubBudgetKey, 5*time.Minute, m.clock, adapter.NewJSON(), m.store)
		b.Observe(context.Background(), rateLimitHeader("60", "7", reset))
	})

	t.Run("snapshot written by another process is adopted", func(t *testing.T) {
		m := setupTestBudget(t)
		m.clock.EXPECT().Now().Return(now).AnyTimes()
		m.store.EXPECT().
			GetKeyValue(gomock.Any(), "ratelimit:github").
			Return(`{"limit":60,"remaining":0,"reset_at":"2025-06-01T12:10:00Z","verified_at":"2025-06-01T11:59:00Z"}`, nil)

		b := ratelimit.NewBudget(ratelimit.GitHubBudgetKey, 5*time.Minute, m.clock, adapter.NewJSON(), m.store)
		err := b.Check(context.Background(), func(ctx context.Context) (*ratelimit.Snapshot, error) {
			t.Fatal("a fresh shared snapshot must not be re-verified")
			return nil, nil
		})
		assert.Equal(t, domain.ErrorKindRateLimited, domain.KindOf(err))
	})

	t.Run("store failures are tolerated", func(t *testing.T) {
		m := setupTestBudget(t)
		m.clock.EXPECT().Now().Return(now).AnyTimes()
		m.store.EXPECT().GetKeyValue(gomock.Any(), gomock.Any()).Return("", errors.New("db down"))
		m.store.EXPECT().SetKeyValue(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("db down"))

		b := ratelimit.NewBudget(ratelimit.GitHubBudgetKey, 5*time.Minute, m.clock, adapter.NewJSON(), m.store)
		err := b.Check(context.Background(), func(ctx context.Context) (*ratelimit.Snapshot, error) {
			return &ratelimit.Snapshot{Limit: 60, Remaining: 59, ResetAt: reset}, nil
		})
		assert.NoError(t, err)
	})
}
