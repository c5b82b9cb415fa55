package preview

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/metrics"
)

// BatchFetchPreviews refreshes links in waves of cfg.WaveSize with cfg.WaveDelay between waves.
// Every link gets a result; a failing or panicking item never affects its siblings.
func (s *service) BatchFetchPreviews(ctx context.Context, links []domain.LinkRef) map[string]domain.Result {
	results := make(map[string]domain.Result, len(links))
	if len(links) == 0 {
		return results
	}

	batchID := zap.String("batch_id", ulid.Make().String())
	metrics.BatchSize.Observe(float64(len(links)))

	started := s.clock.Now()
	logger.InfoCtx(ctx, "Starting batch preview refresh",
		batchID,
		zap.Int("links", len(links)),
		zap.Int("wave_size", s.cfg.WaveSize))

	var mu sync.Mutex
	record := func(id string, r domain.Result) {
		mu.Lock()
		results[id] = r
		mu.Unlock()
	}

	for start := 0; start < len(links); start += s.cfg.WaveSize {
		if start > 0 && !s.sleep(ctx, s.cfg.WaveDelay) {
			// Canceled between waves; the remaining links are reported, not dropped
			for _, link := range links[start:] {
				record(link.ID, domain.FailureResult(ctx.Err()))
			}
			break
		}

		end := min(start+s.cfg.WaveSize, len(links))
		wave := s.pool.NewGroup()
		for _, link := range links[start:end] {
			wave.Submit(func() {
				record(link.ID, s.refreshItem(ctx, link))
			})
		}
		if err := wave.Wait(); err != nil {
			logger.WarnCtx(ctx, "Batch wave finished with errors", batchID, zap.Error(err))
		}
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	logger.InfoCtx(ctx, "Batch preview refresh completed",
		batchID,
		zap.Int("links", len(links)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded),
		zap.Duration("duration", s.clock.Since(started)))

	return results
}

// refreshItem refreshes one batch link under its own timeout
func (s *service) refreshItem(ctx context.Context, link domain.LinkRef) domain.Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
	defer cancel()

	return s.RefreshLinkPreview(ctx, link.ID, link.URL)
}

// sleep returns false when ctx is canceled before the duration elapses
func (s *service) sleep(ctx context.Context, duration time.Duration) bool {
	if duration <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	}
}
