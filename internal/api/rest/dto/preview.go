package dto

import (
	"time"

	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/preview"
	"github.com/feral-file/ff-link-preview/internal/store/schema"
)

// URLRequest is the body of the URL based preview endpoints
type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

// ValidateURLResponse reports whether a URL may be previewed
type ValidateURLResponse struct {
	Valid bool `json:"valid"`
}

// BatchLink identifies one link of a batch request. A URL, when given, must match the stored link URL.
type BatchLink struct {
	ID  string `json:"id" binding:"required"`
	URL string `json:"url"`
}

// BatchRequest is the body of the batch refresh endpoint
type BatchRequest struct {
	Links []BatchLink `json:"links" binding:"required"`
}

// BatchResponse maps each requested link ID to its result
type BatchResponse struct {
	Results map[string]domain.Result `json:"results"`
}

// CreateLinkRequest is the body of the link creation endpoint
type CreateLinkRequest struct {
	ProfileID  string  `json:"profile_id" binding:"required"`
	URL        string  `json:"url" binding:"required"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Position   int     `json:"position"`
	CustomIcon *string `json:"custom_icon"`
	IconURL    *string `json:"icon_url"`
}

// LinkResponse represents a stored link with its preview state
type LinkResponse struct {
	ID               string               `json:"id"`
	ProfileID        string               `json:"profile_id"`
	URL              string               `json:"url"`
	Title            string               `json:"title"`
	Category         string               `json:"category"`
	Position         int                  `json:"position"`
	CustomIcon       *string              `json:"custom_icon,omitempty"`
	IconURL          *string              `json:"icon_url,omitempty"`
	PreviewStatus    domain.PreviewStatus `json:"preview_status"`
	PreviewFetchedAt *time.Time           `json:"preview_fetched_at,omitempty"`
	PreviewExpiresAt *time.Time           `json:"preview_expires_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// NewLinkResponse converts a stored link
func NewLinkResponse(link *schema.Link) LinkResponse {
	return LinkResponse{
		ID:               link.ID,
		ProfileID:        link.ProfileID,
		URL:              link.URL,
		Title:            link.Title,
		Category:         link.Category,
		Position:         link.Position,
		CustomIcon:       link.CustomIcon,
		IconURL:          link.IconURL,
		PreviewStatus:    link.PreviewStatus,
		PreviewFetchedAt: link.PreviewFetchedAt,
		PreviewExpiresAt: link.PreviewExpiresAt,
		CreatedAt:        link.CreatedAt,
		UpdatedAt:        link.UpdatedAt,
	}
}

// PreviewStatusResponse describes the freshness of a link preview.
// Metadata is the last stored preview and is kept while a refresh is failing.
type PreviewStatusResponse struct {
	LinkID       string               `json:"link_id"`
	NeedsRefresh bool                 `json:"needs_refresh"`
	Status       domain.PreviewStatus `json:"status"`
	Error        *string              `json:"error,omitempty"`
	FetchedAt    *time.Time           `json:"fetched_at,omitempty"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"`
	Metadata     *domain.Metadata     `json:"metadata,omitempty"`
}

// NewPreviewStatusResponse converts a preview state
func NewPreviewStatusResponse(state *preview.PreviewState) PreviewStatusResponse {
	return PreviewStatusResponse{
		LinkID:       state.Link.ID,
		NeedsRefresh: state.NeedsRefresh,
		Status:       state.Status,
		Error:        state.Link.PreviewError,
		FetchedAt:    state.Link.PreviewFetchedAt,
		ExpiresAt:    state.Link.PreviewExpiresAt,
		Metadata:     state.Metadata,
	}
}

// HealthResponse is the body of the health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
