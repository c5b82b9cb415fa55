package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/api/middleware"
	"github.com/feral-file/ff-link-preview/internal/api/rest"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/preview"
	"github.com/feral-file/ff-link-preview/internal/store"
)

// Config holds the server configuration
type Config struct {
	Debug          bool
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	Auth           middleware.AuthConfig
}

// Server wraps the HTTP server
type Server struct {
	config     Config
	service    preview.Service
	store      store.Store
	clock      adapter.Clock
	httpServer *http.Server
}

// New creates a new API server
func New(cfg Config, service preview.Service, st store.Store, clock adapter.Clock) *Server {
	return &Server{
		config:  cfg,
		service: service,
		store:   st,
		clock:   clock,
	}
}

// Handler builds the router with every middleware and route registered
func (s *Server) Handler() (http.Handler, error) {
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())
	router.Use(middleware.SetupCORS(s.config.AllowedOrigins))

	var auth gin.HandlerFunc
	if s.config.Auth.Enabled() {
		authenticator, err := middleware.NewAuthenticator(s.config.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to create authenticator: %w", err)
		}
		auth = middleware.Auth(authenticator)
	} else {
		logger.Warn("No API credentials configured, write endpoints are unauthenticated")
	}

	rest.SetupRoutes(router, rest.NewHandler(s.service, s.store, s.clock), auth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router, nil
}

// Start initializes and starts the HTTP server
func (s *Server) Start() error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	logger.Info("Starting API server", zap.String("address", addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down API server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	return nil
}
