package store

import (
	"context"
	"time"

	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/store/schema"
)

// CreateLinkInput represents the input for creating a link
type CreateLinkInput struct {
	ID         string
	ProfileID  string
	URL        string
	Title      string
	Category   string
	Position   int
	CustomIcon *string
	IconURL    *string
}

// CommitPreviewSuccessInput represents a successful preview fetch to persist
type CommitPreviewSuccessInput struct {
	LinkID string
	// Metadata is the JSON encoded preview envelope
	Metadata  []byte
	Hash      string
	FetchedAt time.Time
	ExpiresAt time.Time
}

// CommitPreviewFailureInput represents a failed preview fetch to persist
type CommitPreviewFailureInput struct {
	LinkID string
	// Type is the classified preview type, used when the link has no metadata yet
	Type      domain.PreviewType
	Error     string
	Retryable bool
	FetchedAt time.Time
}

// ExcludePreviewInput marks a link as never previewable
type ExcludePreviewInput struct {
	LinkID string
	Reason string
	At     time.Time
}

// RefreshCandidatesFilter selects links whose previews should be refetched
type RefreshCandidatesFilter struct {
	Now time.Time
	// FailedRetryAfter is the minimum age of a retryable failure before it is retried
	FailedRetryAfter time.Duration
	Limit            int
}

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// CreateLink inserts a link with a pending preview
	CreateLink(ctx context.Context, input CreateLinkInput) (*schema.Link, error)
	// GetLinkByID retrieves a link by ID, nil when it does not exist
	GetLinkByID(ctx context.Context, id string) (*schema.Link, error)
	// GetLinksByIDs retrieves the links that exist among ids
	GetLinksByIDs(ctx context.Context, ids []string) ([]*schema.Link, error)

	// CommitPreviewSuccess stores fetched metadata for a link. It reports false when the
	// link is gone or a newer fetch was already committed.
	CommitPreviewSuccess(ctx context.Context, input CommitPreviewSuccessInput) (bool, error)
	// CommitPreviewFailure records a failed fetch, keeping any existing metadata. It reports
	// false when the link is gone or a newer fetch was already committed.
	CommitPreviewFailure(ctx context.Context, input CommitPreviewFailureInput) (bool, error)
	// ExcludePreview drops any stored metadata and records a terminal failure so the
	// link is no longer a refresh candidate
	ExcludePreview(ctx context.Context, input ExcludePreviewInput) (bool, error)

	// MarkExpiredPreviews flips successful previews past their expiration to expired
	MarkExpiredPreviews(ctx context.Context, now time.Time) (int64, error)
	// GetRefreshCandidates lists non-social links whose previews are missing, stale or retryable
	GetRefreshCandidates(ctx context.Context, filter RefreshCandidatesFilter) ([]*schema.Link, error)

	// SetKeyValue sets a key-value pair in the key-value store
	SetKeyValue(ctx context.Context, key string, value string) error
	// GetKeyValue retrieves a value by key, empty when the key does not exist
	GetKeyValue(ctx context.Context, key string) (string, error)
}
