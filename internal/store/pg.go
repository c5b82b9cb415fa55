package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

func hasDBResolver(db *gorm.DB) bool {
	return db != nil && db.Callback().Query().Get("gorm:db_resolver") != nil
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool applies pool settings to the underlying *sql.DB.
// Zero values fall back to 20 open, 5 idle, 5m lifetime and 10m idle time.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	maxIdleConns = min(maxIdleConns, maxOpenConns)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// CreateLink inserts a link with a pending preview
func (s *pgStore) CreateLink(ctx context.Context, input CreateLinkInput) (*schema.Link, error) {
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	link := schema.Link{
		ID:            id,
		ProfileID:     input.ProfileID,
		URL:           input.URL,
		Title:         input.Title,
		Category:      input.Category,
		Position:      input.Position,
		CustomIcon:    input.CustomIcon,
		IconURL:       input.IconURL,
		PreviewStatus: domain.PreviewStatusPending,
	}

	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	return &link, nil
}

// GetLinkByID retrieves a link by ID
func (s *pgStore) GetLinkByID(ctx context.Context, id string) (*schema.Link, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var link schema.Link
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&link).Error
	if err == nil {
		return &link, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	if !hasDBResolver(s.db) {
		return nil, nil
	}

	// Replica can lag behind primary; retry on primary before returning not found.
	err = s.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("id = ?", id).
		First(&link).Error
	if err == nil {
		return &link, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to get link from primary: %w", err)
}

// GetLinksByIDs retrieves the links that exist among ids
func (s *pgStore) GetLinksByIDs(ctx context.Context, ids []string) ([]*schema.Link, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*schema.Link{}, nil
	}

	var links []*schema.Link
	if err := s.db.WithContext(ctx).Where("id IN ?", valid).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to get links by IDs: %w", err)
	}

	return links, nil
}

// lockLink selects the link row FOR UPDATE and applies the fetched-at guard.
// It returns nil when the link is missing or holds a newer fetch.
func lockLink(ctx context.Context, tx *gorm.DB, linkID string, fetchedAt time.Time) (*schema.Link, error) {
	if _, err := uuid.Parse(linkID); err != nil {
		return nil, nil
	}

	var link schema.Link
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", linkID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock link: %w", err)
	}

	if link.PreviewFetchedAt != nil && link.PreviewFetchedAt.After(fetchedAt) {
		logger.DebugCtx(ctx, "Dropping preview commit older than the stored fetch",
			zap.String("link_id", linkID),
			zap.Time("stored_fetched_at", *link.PreviewFetchedAt),
			zap.Time("incoming_fetched_at", fetchedAt))
		return nil, nil
	}

	return &link, nil
}

// CommitPreviewSuccess stores fetched metadata for a link.
// Only preview columns are written; icon overrides are left as they are.
func (s *pgStore) CommitPreviewSuccess(ctx context.Context, input CommitPreviewSuccessInput) (bool, error) {
	committed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link, err := lockLink(ctx, tx, input.LinkID, input.FetchedAt)
		if err != nil || link == nil {
			return err
		}

		err = tx.Model(&schema.Link{}).
			Where("id = ?", input.LinkID).
			Updates(map[string]interface{}{
				"preview_metadata":   datatypes.JSON(input.Metadata),
				"preview_status":     domain.PreviewStatusSuccess,
				"preview_fetched_at": input.FetchedAt,
				"preview_expires_at": input.ExpiresAt,
				"preview_error":      nil,
				"preview_retryable":  true,
				"preview_hash":       input.Hash,
				"updated_at":         time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update link preview: %w", err)
		}

		committed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return committed, nil
}

// CommitPreviewFailure records a failed fetch. Existing metadata is kept as it was so
// the last good preview stays renderable; a link without metadata gets a stub carrying
// its type and the error. The expiration time is left untouched.
func (s *pgStore) CommitPreviewFailure(ctx context.Context, input CommitPreviewFailureInput) (bool, error) {
	committed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link, err := lockLink(ctx, tx, input.LinkID, input.FetchedAt)
		if err != nil || link == nil {
			return err
		}

		metadata, err := failureEnvelope(link, input.Type, input.Error)
		if err != nil {
			return err
		}

		err = tx.Model(&schema.Link{}).
			Where("id = ?", input.LinkID).
			Updates(map[string]interface{}{
				"preview_metadata":   metadata,
				"preview_status":     domain.PreviewStatusFailed,
				"preview_fetched_at": input.FetchedAt,
				"preview_error":      input.Error,
				"preview_retryable":  input.Retryable,
				"updated_at":         time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update link preview failure: %w", err)
		}

		committed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return committed, nil
}

// failureEnvelope returns the envelope to store after a failed fetch. An envelope
// holding a preview body is returned without any error field.
func failureEnvelope(link *schema.Link, previewType domain.PreviewType, message string) (datatypes.JSON, error) {
	envelope := map[string]interface{}{}
	if link.HasPreviewMetadata() {
		if err := json.Unmarshal(link.PreviewMetadata, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode stored preview metadata: %w", err)
		}
	}

	if hasPreviewBody(envelope) {
		if _, ok := envelope["error"]; !ok {
			return link.PreviewMetadata, nil
		}
		delete(envelope, "error")
	} else {
		if _, ok := envelope["type"]; !ok {
			envelope["type"] = previewType
		}
		envelope["error"] = message
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview metadata: %w", err)
	}
	return datatypes.JSON(data), nil
}

func hasPreviewBody(envelope map[string]interface{}) bool {
	for _, key := range []string{"repo", "blog", "webpage"} {
		if v, ok := envelope[key]; ok && v != nil {
			return true
		}
	}
	return false
}

// ExcludePreview clears the preview of a link that must never be fetched and stores a
// non-retryable failure stamped at input.At
func (s *pgStore) ExcludePreview(ctx context.Context, input ExcludePreviewInput) (bool, error) {
	committed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link, err := lockLink(ctx, tx, input.LinkID, input.At)
		if err != nil || link == nil {
			return err
		}

		err = tx.Model(&schema.Link{}).
			Where("id = ?", input.LinkID).
			Updates(map[string]interface{}{
				"preview_metadata":   nil,
				"preview_status":     domain.PreviewStatusFailed,
				"preview_fetched_at": input.At,
				"preview_expires_at": nil,
				"preview_error":      input.Reason,
				"preview_retryable":  false,
				"preview_hash":       nil,
				"updated_at":         time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to exclude link preview: %w", err)
		}

		committed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return committed, nil
}

// MarkExpiredPreviews flips successful previews past their expiration to expired
func (s *pgStore) MarkExpiredPreviews(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.Link{}).
		Where("preview_status = ? AND preview_expires_at <= ?", domain.PreviewStatusSuccess, now).
		Updates(map[string]interface{}{
			"preview_status": domain.PreviewStatusExpired,
			"updated_at":     now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark expired previews: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// GetRefreshCandidates lists non-social links whose previews are missing, stale or
// retryable, least recently fetched first
func (s *pgStore) GetRefreshCandidates(ctx context.Context, filter RefreshCandidatesFilter) ([]*schema.Link, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var links []*schema.Link
	err := s.db.WithContext(ctx).
		Where("LOWER(TRIM(category)) <> ?", domain.CategorySocial).
		Where(s.db.
			Where("preview_status IN ?", []domain.PreviewStatus{domain.PreviewStatusPending, domain.PreviewStatusExpired}).
			Or("preview_status = ? AND (preview_expires_at IS NULL OR preview_expires_at <= ?)", domain.PreviewStatusSuccess, filter.Now).
			Or("preview_status = ? AND preview_retryable AND (preview_fetched_at IS NULL OR preview_fetched_at <= ?)",
				domain.PreviewStatusFailed, filter.Now.Add(-filter.FailedRetryAfter))).
		Order("preview_fetched_at ASC NULLS FIRST").
		Order("created_at ASC").
		Limit(limit).
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh candidates: %w", err)
	}

	return links, nil
}

// SetKeyValue sets a key-value pair in the key-value store
func (s *pgStore) SetKeyValue(ctx context.Context, key string, value string) error {
	kv := schema.KeyValueStore{
		Key:   key,
		Value: value,
	}

	err := s.db.WithContext(ctx).Save(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set key-value: %w", err)
	}

	return nil
}

// GetKeyValue retrieves a value by key from the key-value store
func (s *pgStore) GetKeyValue(ctx context.Context, key string) (string, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get key-value: %w", err)
	}

	return kv.Value, nil
}
