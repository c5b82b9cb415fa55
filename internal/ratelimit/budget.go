package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/metrics"
)

const (
	// DefaultVerifyInterval is how long a budget snapshot is trusted before re-verification
	DefaultVerifyInterval = 5 * time.Minute

	// GitHubBudgetKey is the key-value store key the GitHub budget is mirrored under
	GitHubBudgetKey = "ratelimit:github"
)

// Snapshot is the last known state of an upstream quota
type Snapshot struct {
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	VerifiedAt time.Time `json:"verified_at"`
}

// Exhausted reports whether the quota is used up at the given time
func (s Snapshot) Exhausted(now time.Time) bool {
	return !s.VerifiedAt.IsZero() && s.Remaining <= 0 && now.Before(s.ResetAt)
}

// VerifyFunc asks the upstream for its current quota without consuming it
type VerifyFunc func(ctx context.Context) (*Snapshot, error)

// SnapshotStore persists snapshots so several processes share one view of the quota
//
//go:generate mockgen -source=budget.go -destination=../mocks/budget.go -package=mocks -mock_names=SnapshotStore=MockSnapshotStore,Budget=MockBudget
type SnapshotStore interface {
	GetKeyValue(ctx context.Context, key string) (string, error)
	SetKeyValue(ctx context.Context, key string, value string) error
}

// Budget tracks an upstream quota and fails fast once it is exhausted
type Budget interface {
	// Check returns a RATE_LIMITED error when the quota is exhausted until its reset.
	// A snapshot older than the verify interval is refreshed through verify first.
	Check(ctx context.Context, verify VerifyFunc) error

	// Observe updates the snapshot from X-RateLimit-* response headers
	Observe(ctx context.Context, header http.Header)

	// Snapshot returns a copy of the current snapshot
	Snapshot() Snapshot
}

type budget struct {
	mu             sync.Mutex
	snapshot       Snapshot
	key            string
	verifyInterval time.Duration
	clock          adapter.Clock
	json           adapter.JSON
	store          SnapshotStore
}

// NewBudget creates a quota budget. store may be nil, in which case the
// snapshot lives only in this process.
func NewBudget(key string, verifyInterval time.Duration, clock adapter.Clock, json adapter.JSON, store SnapshotStore) Budget {
	if verifyInterval <= 0 {
		verifyInterval = DefaultVerifyInterval
	}
	return &budget{
		key:            key,
		verifyInterval: verifyInterval,
		clock:          clock,
		json:           json,
		store:          store,
	}
}

func (b *budget) Check(ctx context.Context, verify VerifyFunc) error {
	now := b.clock.Now()
	if b.stale(now) {
		b.reload(ctx)
	}

	if b.stale(now) && verify != nil {
		fresh, err := verify(ctx)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to verify rate limit budget, using last snapshot",
				zap.String("key", b.key), zap.Error(err))
		} else if fresh != nil {
			fresh.VerifiedAt = b.clock.Now()
			b.set(ctx, *fresh)
		}
	}

	snap := b.Snapshot()
	if snap.Exhausted(now) {
		return domain.NewRateLimitedError(
			fmt.Sprintf("rate limit exhausted until %s", snap.ResetAt.UTC().Format(time.RFC3339)),
			snap.ResetAt)
	}
	return nil
}

func (b *budget) stale(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.snapshot.VerifiedAt) > b.verifyInterval
}

func (b *budget) Observe(ctx context.Context, header http.Header) {
	snap, ok := ParseRateLimitHeaders(header)
	if !ok {
		return
	}
	snap.VerifiedAt = b.clock.Now()
	b.set(ctx, snap)
}

func (b *budget) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot
}

// set replaces the snapshot and mirrors it to the shared store. Last writer wins.
func (b *budget) set(ctx context.Context, snap Snapshot) {
	b.mu.Lock()
	b.snapshot = snap
	b.mu.Unlock()

	metrics.SetUpstreamRemaining(b.key, snap.Remaining)

	if b.store == nil {
		return
	}
	data, err := b.json.Marshal(snap)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to encode rate limit snapshot", zap.Error(err))
		return
	}
	if err := b.store.SetKeyValue(ctx, b.key, string(data)); err != nil {
		logger.WarnCtx(ctx, "Failed to mirror rate limit snapshot", zap.String("key", b.key), zap.Error(err))
	}
}

// reload adopts the shared snapshot when another process verified more recently
func (b *budget) reload(ctx context.Context) {
	if b.store == nil {
		return
	}

	value, err := b.store.GetKeyValue(ctx, b.key)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to load rate limit snapshot", zap.String("key", b.key), zap.Error(err))
		return
	}
	if value == "" {
		return
	}

	var snap Snapshot
	if err := b.json.Unmarshal([]byte(value), &snap); err != nil {
		logger.WarnCtx(ctx, "Ignoring malformed rate limit snapshot", zap.String("key", b.key), zap.Error(err))
		return
	}

	b.mu.Lock()
	if b.snapshot.VerifiedAt.Before(snap.VerifiedAt) {
		b.snapshot = snap
	}
	b.mu.Unlock()
}

// ParseRateLimitHeaders reads X-RateLimit-Limit, -Remaining and -Reset (unix seconds).
// It reports false when the remaining count is absent or malformed.
func ParseRateLimitHeaders(header http.Header) (Snapshot, bool) {
	remaining, err := strconv.Atoi(header.Get("X-RateLimit-Remaining"))
	if err != nil {
		return Snapshot{}, false
	}

	snap := Snapshot{Remaining: remaining}
	if limit, err := strconv.Atoi(header.Get("X-RateLimit-Limit")); err == nil {
		snap.Limit = limit
	}
	if reset, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		snap.ResetAt = time.Unix(reset, 0).UTC()
	}
	return snap, true
}
