package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/api/rest/dto"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/preview"
	"github.com/feral-file/ff-link-preview/internal/store"
)

// MaxBatchLinks is the largest batch accepted by the batch refresh endpoint
const MaxBatchLinks = 100

// Handler defines the interface for REST API handlers
type Handler interface {
	// FetchPreview fetches preview metadata for a URL without persisting it
	// POST /api/v1/previews
	FetchPreview(c *gin.Context)

	// ValidateURL reports whether a URL may be previewed
	// POST /api/v1/previews/validate
	ValidateURL(c *gin.Context)

	// BatchFetchPreviews refreshes and persists previews of up to MaxBatchLinks links
	// POST /api/v1/previews/batch
	BatchFetchPreviews(c *gin.Context)

	// CreateLink stores a link with a pending preview
	// POST /api/v1/links
	CreateLink(c *gin.Context)

	// GetLinkPreview returns the fresh cached preview of a link
	// GET /api/v1/links/:id/preview
	GetLinkPreview(c *gin.Context)

	// GetLinkPreviewStatus returns the freshness state of a link preview
	// GET /api/v1/links/:id/preview/status
	GetLinkPreviewStatus(c *gin.Context)

	// RefreshLinkPreview refetches and persists the preview of a stored link
	// POST /api/v1/links/:id/preview/refresh
	RefreshLinkPreview(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

type handler struct {
	service preview.Service
	store   store.Store
	clock   adapter.Clock
}

// NewHandler creates a new REST API handler
func NewHandler(service preview.Service, st store.Store, clock adapter.Clock) Handler {
	return &handler{
		service: service,
		store:   st,
		clock:   clock,
	}
}

func (h *handler) FetchPreview(c *gin.Context) {
	var req dto.URLRequest
	if !bindJSON(c, &req) {
		return
	}

	c.JSON(http.StatusOK, h.service.FetchPreviewMetadata(c.Request.Context(), req.URL))
}

func (h *handler) ValidateURL(c *gin.Context) {
	var req dto.URLRequest
	if !bindJSON(c, &req) {
		return
	}

	c.JSON(http.StatusOK, dto.ValidateURLResponse{Valid: h.service.ValidateURL(req.URL)})
}

func (h *handler) BatchFetchPreviews(c *gin.Context) {
	var req dto.BatchRequest
	if !bindJSON(c, &req) {
		return
	}

	switch {
	case len(req.Links) == 0:
		respondValidationError(c, "links must not be empty")
		return
	case len(req.Links) > MaxBatchLinks:
		respondValidationError(c, fmt.Sprintf("at most %d links per batch", MaxBatchLinks))
		return
	}

	ids := make([]string, 0, len(req.Links))
	seen := make(map[string]bool, len(req.Links))
	for _, link := range req.Links {
		if strings.TrimSpace(link.ID) == "" {
			respondValidationError(c, "link id is required")
			return
		}
		if seen[link.ID] {
			respondValidationError(c, fmt.Sprintf("duplicate link id %s", link.ID))
			return
		}
		seen[link.ID] = true
		ids = append(ids, link.ID)
	}

	// Links are always refreshed against their stored URL
	links, err := h.store.GetLinksByIDs(c.Request.Context(), ids)
	if err != nil {
		respondDatabaseError(c, err, "Failed to load links", zap.Int("count", len(ids)))
		return
	}
	storedURLs := make(map[string]string, len(links))
	for _, link := range links {
		storedURLs[link.ID] = link.URL
	}

	results := make(map[string]domain.Result, len(req.Links))
	refs := make([]domain.LinkRef, 0, len(req.Links))
	for _, link := range req.Links {
		url, ok := storedURLs[link.ID]
		switch {
		case !ok:
			results[link.ID] = domain.FailureResult(domain.NewNotFoundError(fmt.Sprintf("link %s not found", link.ID)))
		case link.URL != "" && strings.TrimSpace(link.URL) != url:
			results[link.ID] = domain.FailureResult(domain.NewInvalidURLError("url does not match the stored link"))
		default:
			refs = append(refs, domain.LinkRef{ID: link.ID, URL: url})
		}
	}

	for id, res := range h.service.BatchFetchPreviews(c.Request.Context(), refs) {
		results[id] = res
	}

	c.JSON(http.StatusOK, dto.BatchResponse{Results: results})
}

func (h *handler) CreateLink(c *gin.Context) {
	var req dto.CreateLinkRequest
	if !bindJSON(c, &req) {
		return
	}
	if !h.service.ValidateURL(req.URL) {
		respondValidationError(c, "url must be a public http(s) URL")
		return
	}

	link, err := h.store.CreateLink(c.Request.Context(), store.CreateLinkInput{
		ProfileID:  req.ProfileID,
		URL:        strings.TrimSpace(req.URL),
		Title:      req.Title,
		Category:   req.Category,
		Position:   req.Position,
		CustomIcon: req.CustomIcon,
		IconURL:    req.IconURL,
	})
	if err != nil {
		respondDatabaseError(c, err, "Failed to create link", zap.String("profile_id", req.ProfileID))
		return
	}

	c.JSON(http.StatusCreated, dto.NewLinkResponse(link))
}

func (h *handler) GetLinkPreview(c *gin.Context) {
	linkID := c.Param("id")

	md, err := h.service.GetCachedPreview(c.Request.Context(), linkID)
	if err != nil {
		respondDatabaseError(c, err, "Failed to get link preview", zap.String("link_id", linkID))
		return
	}
	if md == nil {
		respondNotFound(c, "Preview not found", "no fresh preview is stored for this link")
		return
	}

	c.JSON(http.StatusOK, md)
}

func (h *handler) GetLinkPreviewStatus(c *gin.Context) {
	linkID := c.Param("id")

	state, err := h.service.GetPreviewState(c.Request.Context(), linkID)
	if err != nil {
		respondDatabaseError(c, err, "Failed to get link preview status", zap.String("link_id", linkID))
		return
	}
	if state == nil {
		respondNotFound(c, "Link not found")
		return
	}

	c.JSON(http.StatusOK, dto.NewPreviewStatusResponse(state))
}

func (h *handler) RefreshLinkPreview(c *gin.Context) {
	linkID := c.Param("id")

	link, err := h.store.GetLinkByID(c.Request.Context(), linkID)
	if err != nil {
		respondDatabaseError(c, err, "Failed to get link", zap.String("link_id", linkID))
		return
	}
	if link == nil {
		respondNotFound(c, "Link not found")
		return
	}

	c.JSON(http.StatusOK, h.service.RefreshLinkPreview(c.Request.Context(), link.ID, link.URL))
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:    "ok",
		Timestamp: h.clock.Now(),
	})
}

// bindJSON decodes the request body, responding with bad_request for malformed JSON
// and validation_failed for missing or invalid fields
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondValidationError(c, err.Error())
		return false
	}
	respondBadRequest(c, "Invalid request body", err.Error())
	return false
}
