// Package bootstrap builds the database connection and the preview pipeline
// shared by the API server and the sweeper.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/classifier"
	"github.com/feral-file/ff-link-preview/internal/config"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/preview"
	"github.com/feral-file/ff-link-preview/internal/providers/blogs"
	"github.com/feral-file/ff-link-preview/internal/providers/github"
	"github.com/feral-file/ff-link-preview/internal/ratelimit"
	"github.com/feral-file/ff-link-preview/internal/registry"
	"github.com/feral-file/ff-link-preview/internal/scraper"
	"github.com/feral-file/ff-link-preview/internal/store"
)

// githubMaxRetries is the number of retries on 502/503/504 from the GitHub API
const githubMaxRetries = 2

// OpenDatabase connects to PostgreSQL, registers the read replica when one is
// configured and applies the connection pool settings
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.ReadHost != "" {
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{postgres.Open(cfg.ReadDSN())},
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to register read replica: %w", err)
		}
		logger.InfoCtx(ctx, "Registered read replica", zap.String("read_host", cfg.ReadHost))
	}

	if err := store.ConfigureConnectionPool(db, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime); err != nil {
		return nil, fmt.Errorf("failed to configure connection pool: %w", err)
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return db, nil
}

// Pipeline holds the assembled preview service and the resources it owns
type Pipeline struct {
	Service preview.Service
	Clock   adapter.Clock

	proxy ratelimit.Proxy
	redis adapter.RedisClient
}

// NewPipeline wires the classifier, the upstream clients and the preview service
func NewPipeline(ctx context.Context, cfg config.PipelineConfig, dataStore store.Store) (*Pipeline, error) {
	p := &Pipeline{Clock: adapter.NewClock()}
	fs := adapter.NewFileSystem()
	jsonAdapter := adapter.NewJSON()

	loader := registry.NewPlatformRegistryLoader(fs, jsonAdapter)
	platforms, err := loader.Load(cfg.PlatformRegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load platform registry: %w", err)
	}
	if cfg.PlatformRegistryPath != "" {
		logger.InfoCtx(ctx, "Loaded platform registry", zap.String("path", cfg.PlatformRegistryPath))
	}
	urlClassifier := classifier.New(platforms)

	if cfg.RateLimit.Enabled() {
		p.redis = adapter.NewRedisClient(cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPassword, cfg.RateLimit.RedisDB)
		p.proxy, err = ratelimit.NewProxy(cfg.RateLimit, p.redis, p.Clock)
		if err != nil {
			_ = p.redis.Close()
			return nil, fmt.Errorf("failed to create pacing proxy: %w", err)
		}
	} else {
		logger.WarnCtx(ctx, "Rate limit redis not configured, outbound requests are not paced")
	}

	// Page fetches follow user-supplied URLs and are held to public addresses
	pageClient := adapter.NewHTTPClient(adapter.HTTPClientConfig{
		Timeout:      cfg.Scraper.Timeout,
		UserAgent:    cfg.Scraper.UserAgent,
		MaxRedirects: cfg.Scraper.MaxRedirects,
		DialGuard:    scraper.CheckIP,
	})
	apiClient := adapter.NewHTTPClient(adapter.HTTPClientConfig{
		Timeout:    cfg.GitHub.Timeout,
		UserAgent:  cfg.Blogs.UserAgent,
		MaxRetries: githubMaxRetries,
	})

	budget := ratelimit.NewBudget(ratelimit.GitHubBudgetKey, cfg.GitHub.BudgetVerifyInterval, p.Clock, jsonAdapter, dataStore)
	githubClient := github.NewClient(apiClient, p.proxy, budget, jsonAdapter, github.Config{
		APIURL:     cfg.GitHub.APIURL,
		Token:      cfg.GitHub.Token,
		APIVersion: cfg.GitHub.APIVersion,
		Timeout:    cfg.GitHub.Timeout,
	})
	if cfg.GitHub.Token == "" {
		logger.WarnCtx(ctx, "GitHub token not configured, repository previews use the anonymous quota")
	}

	blogFetcher := blogs.NewDefaultFetcher(pageClient, p.proxy, jsonAdapter, blogs.Config{
		DevToAPIURL:  cfg.Blogs.DevToAPIURL,
		UserAgent:    cfg.Blogs.UserAgent,
		Timeout:      cfg.Blogs.Timeout,
		MaxBodyBytes: cfg.Blogs.MaxBodyBytes,
	})
	webScraper := scraper.New(pageClient, scraper.Config{
		Timeout:      cfg.Scraper.Timeout,
		MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
	})

	orchestrator := preview.NewOrchestrator(urlClassifier, githubClient, blogFetcher, webScraper, p.Clock)
	p.Service = preview.NewService(preview.Config{
		WaveSize:    cfg.Batch.WaveSize,
		WaveDelay:   cfg.Batch.WaveDelay,
		ItemTimeout: cfg.Batch.ItemTimeout,
	}, orchestrator, urlClassifier, dataStore, jsonAdapter, p.Clock)

	return p, nil
}

// Close drains the pacing proxy and closes the redis connection
func (p *Pipeline) Close() error {
	if p.proxy != nil {
		if err := p.proxy.Close(); err != nil {
			return fmt.Errorf("failed to close pacing proxy: %w", err)
		}
	}
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
	}
	return nil
}
