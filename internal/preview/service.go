package preview

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/classifier"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/metrics"
	"github.com/feral-file/ff-link-preview/internal/scraper"
	"github.com/feral-file/ff-link-preview/internal/store"
	"github.com/feral-file/ff-link-preview/internal/store/schema"
)

const (
	DefaultWaveSize    = 5
	DefaultWaveDelay   = time.Second
	DefaultItemTimeout = 30 * time.Second

	defaultCommitRetryInitialInterval = 100 * time.Millisecond
	defaultCommitRetryMaxElapsedTime  = 5 * time.Second
)

// Config holds preview service configuration
type Config struct {
	// WaveSize is the number of links refreshed concurrently in one batch wave
	WaveSize int
	// WaveDelay is the pause between batch waves
	WaveDelay time.Duration
	// ItemTimeout bounds a single batch item
	ItemTimeout time.Duration

	CommitRetryInitialInterval time.Duration
	CommitRetryMaxElapsedTime  time.Duration
}

// Service is the preview facade used by the API and the sweeper
//
//go:generate mockgen -source=service.go -destination=../mocks/preview_service.go -package=mocks -mock_names=Service=MockPreviewService
type Service interface {
	// FetchPreviewMetadata fetches metadata for a URL without persisting it
	FetchPreviewMetadata(ctx context.Context, rawURL string) domain.Result

	// RefreshLinkPreview fetches metadata for the stored URL of a link and persists
	// the outcome; rawURL is only used for logging. Social links are rejected without
	// fetching. Concurrent calls for the same link share one fetch.
	RefreshLinkPreview(ctx context.Context, linkID string, rawURL string) domain.Result

	// BatchFetchPreviews refreshes links in waves and returns a result per link ID
	BatchFetchPreviews(ctx context.Context, links []domain.LinkRef) map[string]domain.Result

	// GetCachedPreview returns the stored metadata when it is successful and fresh, nil otherwise
	GetCachedPreview(ctx context.Context, linkID string) (*domain.Metadata, error)

	// NeedsPreviewRefresh reports whether the link's preview is missing, failed or stale
	NeedsPreviewRefresh(ctx context.Context, linkID string) (bool, error)

	// GetPreviewState returns the freshness view of a stored link, nil when the link does not exist
	GetPreviewState(ctx context.Context, linkID string) (*PreviewState, error)

	// ValidateURL reports whether a URL may be fetched
	ValidateURL(rawURL string) bool
}

// PreviewState is the freshness view of a stored link preview
type PreviewState struct {
	Link *schema.Link
	// Status is the stored status, reported as expired once a success is past its expiration
	Status       domain.PreviewStatus
	NeedsRefresh bool
	// Metadata is the last stored preview body. It survives failures and expiry.
	Metadata *domain.Metadata
}

type service struct {
	cfg          Config
	orchestrator Orchestrator
	classifier   classifier.Classifier
	store        store.Store
	json         adapter.JSON
	clock        adapter.Clock
	pool         pond.Pool
	inflight     singleflight.Group
}

// NewService creates a new preview service
func NewService(
	cfg Config,
	orchestrator Orchestrator,
	classifier classifier.Classifier,
	st store.Store,
	json adapter.JSON,
	clock adapter.Clock,
) Service {
	if cfg.WaveSize <= 0 {
		cfg.WaveSize = DefaultWaveSize
	}
	if cfg.WaveDelay < 0 {
		cfg.WaveDelay = 0
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultItemTimeout
	}
	if cfg.CommitRetryInitialInterval <= 0 {
		cfg.CommitRetryInitialInterval = defaultCommitRetryInitialInterval
	}
	if cfg.CommitRetryMaxElapsedTime <= 0 {
		cfg.CommitRetryMaxElapsedTime = defaultCommitRetryMaxElapsedTime
	}

	return &service{
		cfg:          cfg,
		orchestrator: orchestrator,
		classifier:   classifier,
		store:        st,
		json:         json,
		clock:        clock,
		pool:         pond.NewPool(cfg.WaveSize),
	}
}

func (s *service) ValidateURL(rawURL string) bool {
	return scraper.IsValidURL(rawURL)
}

func (s *service) FetchPreviewMetadata(ctx context.Context, rawURL string) domain.Result {
	md, err := s.orchestrator.Fetch(ctx, rawURL)
	if err != nil {
		return domain.FailureResult(err)
	}
	return domain.SuccessResult(md)
}

func (s *service) RefreshLinkPreview(ctx context.Context, linkID string, rawURL string) domain.Result {
	// The shared fetch outlives a canceled caller so the other waiters still get a result
	ch := s.inflight.DoChan(linkID, func() (interface{}, error) {
		return s.safeRefresh(context.WithoutCancel(ctx), linkID, rawURL), nil
	})

	select {
	case <-ctx.Done():
		return domain.FailureResult(ctx.Err())
	case res := <-ch:
		if res.Shared {
			logger.DebugCtx(ctx, "Joined in-flight preview refresh", logger.Link(linkID, rawURL)...)
		}
		return res.Val.(domain.Result)
	}
}

// safeRefresh converts a panic during refresh into a failure result
func (s *service) safeRefresh(ctx context.Context, linkID string, rawURL string) (result domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic refreshing link %s: %v", linkID, r)
			logger.ErrorCtx(ctx, err, logger.Link(linkID, rawURL)...)
			result = domain.FailureResult(domain.NewNetworkError("preview refresh crashed", err))
		}
	}()

	return s.refresh(ctx, linkID, rawURL)
}

// refresh always previews the stored link URL. A differing rawURL from the caller is
// only logged.
func (s *service) refresh(ctx context.Context, linkID string, rawURL string) domain.Result {
	link, err := s.store.GetLinkByID(ctx, linkID)
	if err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to load link: %w", err), logger.Link(linkID, rawURL)...)
		return domain.FailureResult(domain.NewNetworkError("failed to load link", err))
	}
	if link == nil {
		return domain.FailureResult(domain.NewNotFoundError(fmt.Sprintf("link %s not found", linkID)))
	}
	if rawURL != "" && strings.TrimSpace(rawURL) != link.URL {
		logger.WarnCtx(ctx, "Ignoring URL that differs from the stored link",
			append(logger.Link(linkID, link.URL), zap.String("requested_url", rawURL))...)
	}

	if s.classifier.IsSocial(link.Category, link.URL) {
		logger.DebugCtx(ctx, "Skipping preview for social link", logger.Link(linkID, link.URL)...)
		s.exclude(ctx, link)
		return domain.FailureResult(domain.ErrSocialLink)
	}

	md, err := s.orchestrator.Fetch(ctx, link.URL)
	if err != nil {
		pe := domain.AsPreviewError(err)
		logger.WarnCtx(ctx, "Preview fetch failed",
			append(logger.Link(linkID, link.URL),
				zap.String("kind", string(pe.Kind)),
				zap.Bool("retryable", pe.Retryable),
				zap.Error(err))...)
		s.commitFailure(ctx, link, pe)
		return domain.FailureResult(pe)
	}

	return s.commitSuccess(ctx, link, md)
}

// exclude persists the social exclusion unless it is already recorded
func (s *service) exclude(ctx context.Context, link *schema.Link) {
	reason := fmt.Sprintf("%s: %s", domain.ErrorKindInvalidURL, domain.ErrSocialLink)
	if link.PreviewStatus == domain.PreviewStatusFailed && !link.PreviewRetryable &&
		!link.HasPreviewMetadata() && link.PreviewError != nil && *link.PreviewError == reason {
		return
	}

	committed, err := s.commitWithRetry(ctx, link.ID, func() (bool, error) {
		return s.store.ExcludePreview(ctx, store.ExcludePreviewInput{
			LinkID: link.ID,
			Reason: reason,
			At:     s.clock.Now(),
		})
	})
	switch {
	case err != nil:
		metrics.RecordCommit(string(domain.PreviewStatusFailed), "error")
		logger.ErrorCtx(ctx, fmt.Errorf("failed to exclude social link: %w", err), logger.Link(link.ID, link.URL)...)
	case !committed:
		metrics.RecordCommit(string(domain.PreviewStatusFailed), "stale")
	default:
		metrics.RecordCommit(string(domain.PreviewStatusFailed), "committed")
	}
}

func (s *service) commitSuccess(ctx context.Context, link *schema.Link, md *domain.Metadata) domain.Result {
	data, err := s.json.Marshal(md)
	if err != nil {
		return domain.FailureResult(domain.NewParseError("failed to encode preview metadata", err))
	}

	hash, err := s.fingerprint(md)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to fingerprint preview metadata", zap.String("link_id", link.ID), zap.Error(err))
	}

	if link.PreviewHash != nil && hash != "" {
		logger.InfoCtx(ctx, "Preview refreshed",
			append(logger.Link(link.ID, link.URL), zap.Bool("changed", *link.PreviewHash != hash))...)
	}

	committed, err := s.commitWithRetry(ctx, link.ID, func() (bool, error) {
		return s.store.CommitPreviewSuccess(ctx, store.CommitPreviewSuccessInput{
			LinkID:    link.ID,
			Metadata:  data,
			Hash:      hash,
			FetchedAt: md.FetchedAt,
			ExpiresAt: md.ExpiresAt,
		})
	})
	switch {
	case err != nil:
		metrics.RecordCommit(string(domain.PreviewStatusSuccess), "error")
		logger.ErrorCtx(ctx, fmt.Errorf("failed to commit preview: %w", err), logger.Link(link.ID, link.URL)...)
	case !committed:
		metrics.RecordCommit(string(domain.PreviewStatusSuccess), "stale")
		// A newer fetch won; the stored preview is the source of truth
		if stored, err := s.GetCachedPreview(ctx, link.ID); err == nil && stored != nil {
			return domain.SuccessResult(stored)
		}
	default:
		metrics.RecordCommit(string(domain.PreviewStatusSuccess), "committed")
	}

	return domain.SuccessResult(md)
}

func (s *service) commitFailure(ctx context.Context, link *schema.Link, pe *domain.PreviewError) {
	input := store.CommitPreviewFailureInput{
		LinkID:    link.ID,
		Type:      s.orchestrator.Classify(link.URL).Type,
		Error:     fmt.Sprintf("%s: %s", pe.Kind, pe.Message),
		Retryable: pe.Retryable,
		FetchedAt: s.clock.Now(),
	}
	committed, err := s.commitWithRetry(ctx, link.ID, func() (bool, error) {
		return s.store.CommitPreviewFailure(ctx, input)
	})
	switch {
	case err != nil:
		metrics.RecordCommit(string(domain.PreviewStatusFailed), "error")
		logger.ErrorCtx(ctx, fmt.Errorf("failed to commit preview failure: %w", err), logger.Link(link.ID, link.URL)...)
	case !committed:
		metrics.RecordCommit(string(domain.PreviewStatusFailed), "stale")
	default:
		metrics.RecordCommit(string(domain.PreviewStatusFailed), "committed")
	}
}

// commitWithRetry retries a commit on database errors with exponential backoff
func (s *service) commitWithRetry(ctx context.Context, linkID string, commit func() (bool, error)) (bool, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.CommitRetryInitialInterval
	b.MaxElapsedTime = s.cfg.CommitRetryMaxElapsedTime

	var committed bool
	operation := func() error {
		var err error
		committed, err = commit()
		return err
	}

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Preview commit failed, retrying",
			zap.String("link_id", linkID),
			zap.Error(err),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError); err != nil {
		return false, fmt.Errorf("failed after %d attempts: %w", attemptCount+1, err)
	}
	return committed, nil
}

// fingerprint hashes the canonical JSON of the metadata body, ignoring fetch timestamps
func (s *service) fingerprint(md *domain.Metadata) (string, error) {
	body := *md
	body.FetchedAt = time.Time{}
	body.ExpiresAt = time.Time{}

	data, err := s.json.Marshal(body)
	if err != nil {
		return "", err
	}
	canonical, err := s.json.Canonicalize(data)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func (s *service) GetCachedPreview(ctx context.Context, linkID string) (*domain.Metadata, error) {
	link, err := s.store.GetLinkByID(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	if link == nil || link.PreviewStatus != domain.PreviewStatusSuccess || !link.HasPreviewMetadata() {
		return nil, nil
	}
	if link.PreviewExpiresAt == nil || !s.clock.Now().Before(*link.PreviewExpiresAt) {
		return nil, nil
	}

	var md domain.Metadata
	if err := s.json.Unmarshal(link.PreviewMetadata, &md); err != nil {
		return nil, fmt.Errorf("failed to decode preview metadata: %w", err)
	}
	return &md, nil
}

func (s *service) NeedsPreviewRefresh(ctx context.Context, linkID string) (bool, error) {
	link, err := s.store.GetLinkByID(ctx, linkID)
	if err != nil {
		return false, fmt.Errorf("failed to get link: %w", err)
	}
	return NeedsRefresh(link, s.classifier, s.clock.Now()), nil
}

// NeedsRefresh reports whether a stored link needs its preview refetched at now.
// Social links never do.
func NeedsRefresh(link *schema.Link, c classifier.Classifier, now time.Time) bool {
	if link == nil {
		return true
	}
	if c.IsSocial(link.Category, link.URL) {
		return false
	}
	if !link.HasPreviewMetadata() {
		return true
	}

	switch link.PreviewStatus {
	case domain.PreviewStatusPending, domain.PreviewStatusFailed, domain.PreviewStatusExpired:
		return true
	}

	return link.PreviewExpiresAt == nil || !now.Before(*link.PreviewExpiresAt)
}

func (s *service) GetPreviewState(ctx context.Context, linkID string) (*PreviewState, error) {
	link, err := s.store.GetLinkByID(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	if link == nil {
		return nil, nil
	}

	now := s.clock.Now()
	state := &PreviewState{
		Link:         link,
		Status:       EffectiveStatus(link, now),
		NeedsRefresh: NeedsRefresh(link, s.classifier, now),
	}

	if link.HasPreviewMetadata() {
		var md domain.Metadata
		if err := s.json.Unmarshal(link.PreviewMetadata, &md); err != nil {
			return nil, fmt.Errorf("failed to decode preview metadata: %w", err)
		}
		if md.Repo != nil || md.Blog != nil || md.Webpage != nil {
			md.Error = ""
			state.Metadata = &md
		}
	}

	return state, nil
}

// EffectiveStatus is the stored status of a link, with a success at or past its
// expiration reported as expired
func EffectiveStatus(link *schema.Link, now time.Time) domain.PreviewStatus {
	if link.PreviewStatus == domain.PreviewStatusSuccess &&
		(link.PreviewExpiresAt == nil || !now.Before(*link.PreviewExpiresAt)) {
		return domain.PreviewStatusExpired
	}
	return link.PreviewStatus
}
