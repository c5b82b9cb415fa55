package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/metrics"
	"github.com/feral-file/ff-link-preview/internal/preview"
	"github.com/feral-file/ff-link-preview/internal/store"
)

const (
	DefaultSweepInterval    = 10 * time.Minute
	DefaultBatchSize        = 50
	DefaultWorkerPoolSize   = 5
	DefaultFailedRetryAfter = time.Hour
)

// PreviewRefreshSweeperConfig holds configuration for the preview refresh sweeper
type PreviewRefreshSweeperConfig struct {
	Interval         time.Duration // Pause between sweep cycles
	BatchSize        int           // Links refreshed per cycle
	WorkerPoolSize   int           // Concurrent refreshes
	FailedRetryAfter time.Duration // Minimum age of a retryable failure before it is refetched

	// ExpiryRetryMaxElapsedTime bounds retries of the expiry marking query
	ExpiryRetryMaxElapsedTime time.Duration
}

type previewRefreshSweeper struct {
	config    PreviewRefreshSweeperConfig
	store     store.Store
	service   preview.Service
	clock     adapter.Clock
	pool      pond.Pool
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewPreviewRefreshSweeper creates a sweeper that marks expired previews and refetches
// missing, stale and retryable-failed ones
func NewPreviewRefreshSweeper(
	config PreviewRefreshSweeperConfig,
	st store.Store,
	service preview.Service,
	clock adapter.Clock,
) Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = DefaultWorkerPoolSize
	}
	if config.FailedRetryAfter <= 0 {
		config.FailedRetryAfter = DefaultFailedRetryAfter
	}
	if config.ExpiryRetryMaxElapsedTime <= 0 {
		config.ExpiryRetryMaxElapsedTime = 2 * time.Minute
	}

	return &previewRefreshSweeper{
		config:    config,
		store:     st,
		service:   service,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (s *previewRefreshSweeper) Name() string {
	return "preview-refresh-sweeper"
}

func (s *previewRefreshSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting preview refresh sweeper",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
		zap.Duration("failed_retry_after", s.config.FailedRetryAfter),
	)

	s.pool = pond.NewPool(s.config.WorkerPoolSize, pond.WithContext(ctx))
	defer s.pool.StopAndWait()

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Preview refresh sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Preview refresh sweeper stop requested")
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorCtx(ctx, err)
			}
			s.sleep(ctx, s.config.Interval)
		}
	}
}

func (s *previewRefreshSweeper) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}

	logger.InfoCtx(ctx, "Stopping preview refresh sweeper")
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Preview refresh sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Preview refresh sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle marks expired previews, then refreshes one batch of candidates
func (s *previewRefreshSweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()
	cycleID := zap.String("cycle_id", ulid.Make().String())

	expired, err := s.markExpiredWithRetry(ctx, startTime)
	if err != nil {
		return fmt.Errorf("failed to mark expired previews: %w", err)
	}
	if expired > 0 {
		metrics.RecordSweep("expired", int(expired))
		logger.InfoCtx(ctx, "Marked expired previews", cycleID, zap.Int64("count", expired))
	}

	links, err := s.store.GetRefreshCandidates(ctx, store.RefreshCandidatesFilter{
		Now:              startTime,
		FailedRetryAfter: s.config.FailedRetryAfter,
		Limit:            s.config.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to get refresh candidates: %w", err)
	}
	if len(links) == 0 {
		logger.DebugCtx(ctx, "No previews need refreshing", cycleID)
		return nil
	}

	logger.InfoCtx(ctx, "Found previews to refresh", cycleID, zap.Int("count", len(links)))

	var refreshed, failed atomic.Int32
	group := s.pool.NewGroup()
	for _, link := range links {
		group.Submit(func() {
			res := s.service.RefreshLinkPreview(ctx, link.ID, link.URL)
			if res.Success {
				refreshed.Add(1)
				return
			}
			failed.Add(1)
			logger.WarnCtx(ctx, "Preview refresh failed",
				append(logger.Link(link.ID, link.URL),
					cycleID,
					zap.String("kind", string(res.Error.Kind)),
					zap.String("message", res.Error.Message))...)
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("refresh workers failed: %w", err)
	}

	metrics.RecordSweep("refreshed", int(refreshed.Load()))
	metrics.RecordSweep("failed", int(failed.Load()))
	logger.InfoCtx(ctx, "Sweep cycle completed",
		cycleID,
		zap.Duration("duration", s.clock.Since(startTime)),
		zap.Int("total", len(links)),
		zap.Int32("refreshed", refreshed.Load()),
		zap.Int32("failed", failed.Load()),
	)

	return nil
}

// markExpiredWithRetry retries the expiry marking query with exponential backoff
func (s *previewRefreshSweeper) markExpiredWithRetry(ctx context.Context, now time.Time) (int64, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = s.config.ExpiryRetryMaxElapsedTime

	var count int64
	operation := func() error {
		var err error
		count, err = s.store.MarkExpiredPreviews(ctx, now)
		return err
	}

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Marking expired previews failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError); err != nil {
		return 0, fmt.Errorf("failed after %d attempts: %w", attemptCount+1, err)
	}
	return count, nil
}

// sleep waits for the duration, cancellation or a stop request, whichever comes first
func (s *previewRefreshSweeper) sleep(ctx context.Context, duration time.Duration) {
	select {
	case <-s.clock.After(duration):
	case <-ctx.Done():
	case <-s.stopChan:
	}
}
