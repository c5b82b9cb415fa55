package blogs

import (
	"context"
	"fmt"
	"time"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/ratelimit"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 5 * 1024 * 1024
)

// Config holds blog adapter configuration
type Config struct {
	DevToAPIURL  string
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// Fetcher defines the interface for blog post metadata retrieval
//
//go:generate mockgen -source=fetcher.go -destination=../../mocks/blog_fetcher.go -package=mocks -mock_names=Fetcher=MockBlogFetcher,Adapter=MockBlogAdapter
type Fetcher interface {
	// Fetch extracts post metadata with the adapter of the given platform
	Fetch(ctx context.Context, platform domain.Platform, rawURL string) (*domain.BlogMetadata, error)
}

// Adapter extracts post metadata for a single platform
type Adapter interface {
	Fetch(ctx context.Context, rawURL string) (*domain.BlogMetadata, error)
}

type fetcher struct {
	adapters map[domain.Platform]Adapter
}

// NewFetcher creates a fetcher that dispatches to the given adapters
func NewFetcher(adapters map[domain.Platform]Adapter) Fetcher {
	return &fetcher{adapters: adapters}
}

// NewDefaultFetcher creates a fetcher with an adapter for every supported platform
func NewDefaultFetcher(httpClient adapter.HTTPClient, rateLimitProxy ratelimit.Proxy, json adapter.JSON, cfg Config) Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.DevToAPIURL == "" {
		cfg.DevToAPIURL = domain.DEVTO_API_URL
	}

	pages := &pageLoader{
		httpClient:     httpClient,
		rateLimitProxy: rateLimitProxy,
		userAgent:      cfg.UserAgent,
		timeout:        cfg.Timeout,
		maxBodyBytes:   cfg.MaxBodyBytes,
	}

	return NewFetcher(map[domain.Platform]Adapter{
		domain.PlatformDevTo:    newDevToAdapter(pages, json, cfg.DevToAPIURL),
		domain.PlatformMedium:   newMediumAdapter(pages, json),
		domain.PlatformHashnode: newHashnodeAdapter(pages, json),
		domain.PlatformSubstack: newSubstackAdapter(pages, json),
	})
}

func (f *fetcher) Fetch(ctx context.Context, platform domain.Platform, rawURL string) (*domain.BlogMetadata, error) {
	a, ok := f.adapters[platform]
	if !ok {
		return nil, domain.NewParseError(fmt.Sprintf("no adapter for platform %q", platform), nil)
	}

	md, err := a.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	md.Platform = platform
	if md.Tags == nil {
		md.Tags = []string{}
	}
	return md, nil
}
