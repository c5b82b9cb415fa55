package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/feral-file/ff-link-preview/internal/domain"
)

// Link represents the links table - a profile link and its rich preview state
type Link struct {
	// ID is the link identifier (UUID)
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// ProfileID is the owning profile
	ProfileID string `gorm:"column:profile_id;not null;type:varchar(64)"`
	// URL is the user submitted link target
	URL string `gorm:"column:url;not null;type:text"`
	// Title is the user supplied display title
	Title string `gorm:"column:title;not null;default:'';type:text"`
	// Category is a free-form label; "social" links never get previews
	Category string `gorm:"column:category;not null;default:'';type:varchar(64)"`
	// Position orders links within a profile
	Position int `gorm:"column:position;not null;default:0"`
	// CustomIcon and IconURL are user icon overrides, never written by preview commits
	CustomIcon *string `gorm:"column:custom_icon;type:text"`
	IconURL    *string `gorm:"column:icon_url;type:text"`

	// PreviewMetadata is the type-tagged preview envelope
	PreviewMetadata datatypes.JSON `gorm:"column:preview_metadata;type:jsonb"`
	// PreviewStatus is the lifecycle state of the preview
	PreviewStatus domain.PreviewStatus `gorm:"column:preview_status;not null;default:'pending';type:varchar(16)"`
	// PreviewFetchedAt is the time of the last fetch attempt that was committed
	PreviewFetchedAt *time.Time `gorm:"column:preview_fetched_at;type:timestamptz"`
	// PreviewExpiresAt is when the last successful metadata goes stale
	PreviewExpiresAt *time.Time `gorm:"column:preview_expires_at;type:timestamptz"`
	// PreviewError is the message of the last failed fetch
	PreviewError *string `gorm:"column:preview_error;type:text"`
	// PreviewRetryable is false when the last failure cannot succeed on a later attempt
	PreviewRetryable bool `gorm:"column:preview_retryable;not null;default:true"`
	// PreviewHash is the SHA-256 of the canonical JSON of the metadata
	PreviewHash *string `gorm:"column:preview_hash;type:varchar(64)"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Link model
func (Link) TableName() string {
	return "links"
}

// HasPreviewMetadata reports whether a preview envelope is stored. A NULL column
// scans as the JSON literal null.
func (l *Link) HasPreviewMetadata() bool {
	return len(l.PreviewMetadata) > 0 && string(l.PreviewMetadata) != "null"
}
