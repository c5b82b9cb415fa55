package preview

import (
	"context"

	"go.uber.org/zap"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/classifier"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/metrics"
	"github.com/feral-file/ff-link-preview/internal/providers/blogs"
	"github.com/feral-file/ff-link-preview/internal/providers/github"
	"github.com/feral-file/ff-link-preview/internal/scraper"
)

// Orchestrator routes a URL to the fetcher for its type and stamps the result
//
//go:generate mockgen -source=orchestrator.go -destination=../mocks/orchestrator.go -package=mocks -mock_names=Orchestrator=MockOrchestrator
type Orchestrator interface {
	// Fetch classifies the URL and returns its stamped, type-tagged metadata.
	// Repository failures propagate; blog failures fall back to the webpage scraper.
	Fetch(ctx context.Context, rawURL string) (*domain.Metadata, error)

	// Classify returns the preview type and platform the URL would be fetched as
	Classify(rawURL string) classifier.Classification
}

type orchestrator struct {
	classifier classifier.Classifier
	github     github.Client
	blogs      blogs.Fetcher
	scraper    scraper.Scraper
	clock      adapter.Clock
}

// NewOrchestrator creates a new preview orchestrator
func NewOrchestrator(
	classifier classifier.Classifier,
	githubClient github.Client,
	blogFetcher blogs.Fetcher,
	webScraper scraper.Scraper,
	clock adapter.Clock,
) Orchestrator {
	return &orchestrator{
		classifier: classifier,
		github:     githubClient,
		blogs:      blogFetcher,
		scraper:    webScraper,
		clock:      clock,
	}
}

func (o *orchestrator) Classify(rawURL string) classifier.Classification {
	return o.classifier.Classify(rawURL)
}

func (o *orchestrator) Fetch(ctx context.Context, rawURL string) (*domain.Metadata, error) {
	// No request is ever issued for a URL that fails validation
	if _, err := scraper.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	started := o.clock.Now()
	c := o.classifier.Classify(rawURL)

	md, err := o.fetch(ctx, rawURL, c)
	if err != nil {
		metrics.RecordFetch(string(c.Type), "failure", o.clock.Since(started))
		return nil, err
	}

	md.Stamp(o.clock.Now())
	metrics.RecordFetch(string(md.Type), "success", o.clock.Since(started))
	return md, nil
}

func (o *orchestrator) fetch(ctx context.Context, rawURL string, c classifier.Classification) (*domain.Metadata, error) {
	switch c.Type {
	case domain.PreviewTypeRepo:
		repo, err := o.github.GetRepository(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return domain.NewRepoMetadata(repo), nil

	case domain.PreviewTypeBlog:
		blog, err := o.blogs.Fetch(ctx, c.Platform, rawURL)
		if err == nil {
			return domain.NewBlogMetadata(blog), nil
		}

		logger.WarnCtx(ctx, "Blog adapter failed, falling back to webpage scraping",
			zap.String("url", rawURL),
			zap.String("platform", string(c.Platform)),
			zap.Error(err))
		metrics.RecordFallback(string(c.Platform))
		return o.scrape(ctx, rawURL)

	default:
		return o.scrape(ctx, rawURL)
	}
}

func (o *orchestrator) scrape(ctx context.Context, rawURL string) (*domain.Metadata, error) {
	page, err := o.scraper.Scrape(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return domain.NewWebpageMetadata(page), nil
}
