package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes. Write endpoints are wrapped with auth
// when it is non-nil.
func SetupRoutes(router *gin.Engine, handler Handler, auth gin.HandlerFunc) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	protected := []gin.HandlerFunc{}
	if auth != nil {
		protected = append(protected, auth)
	}

	v1 := router.Group("/api/v1")
	{
		// Stateless preview endpoints
		v1.POST("/previews", handler.FetchPreview)
		v1.POST("/previews/validate", handler.ValidateURL)

		// Link reads
		v1.GET("/links/:id/preview", handler.GetLinkPreview)
		v1.GET("/links/:id/preview/status", handler.GetLinkPreviewStatus)

		// Endpoints that persist
		writes := v1.Group("", protected...)
		writes.POST("/previews/batch", handler.BatchFetchPreviews)
		writes.POST("/links", handler.CreateLink)
		writes.POST("/links/:id/preview/refresh", handler.RefreshLinkPreview)
	}
}
