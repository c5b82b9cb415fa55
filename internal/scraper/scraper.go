package scraper

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/htmlmeta"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/registry"
)

const (
	// DefaultTimeout bounds a single webpage fetch
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodyBytes is the largest page accepted
	DefaultMaxBodyBytes int64 = 5 * 1024 * 1024

	maxDescriptionLength = 500
)

var acceptedContentTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
}

// Scraper defines the interface for generic webpage metadata extraction
//
//go:generate mockgen -source=scraper.go -destination=../mocks/scraper.go -package=mocks -mock_names=Scraper=MockScraper
type Scraper interface {
	// Scrape fetches an http(s) page and extracts its Open Graph and meta tag metadata
	Scrape(ctx context.Context, rawURL string) (*domain.WebpageMetadata, error)
}

// Config holds scraper configuration
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
}

type scraper struct {
	httpClient   adapter.HTTPClient
	timeout      time.Duration
	maxBodyBytes int64
}

// New creates a new webpage scraper
func New(httpClient adapter.HTTPClient, cfg Config) Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &scraper{
		httpClient:   httpClient,
		timeout:      cfg.Timeout,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Scrape fetches an http(s) page and extracts its Open Graph and meta tag metadata
func (s *scraper) Scrape(ctx context.Context, rawURL string) (*domain.WebpageMetadata, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.httpClient.Get(ctx, u.String(), map[string]string{
		"Accept":          "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5",
		"Accept-Language": "en-US,en;q=0.8",
	}, s.maxBodyBytes)
	if err != nil {
		return nil, classifyFetchError(ctx, err)
	}

	if pe := domain.ErrorFromStatus(resp.StatusCode, "page"); pe != nil {
		return nil, pe
	}

	if resp.Truncated {
		return nil, domain.NewInvalidURLError(fmt.Sprintf("page exceeds the %d byte limit", s.maxBodyBytes))
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType, resp.Body) {
		return nil, domain.NewInvalidURLError(fmt.Sprintf("unsupported content type %q", contentType))
	}

	body, err := htmlmeta.DecodeUTF8(resp.Body, contentType)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to decode page charset, using raw body", zap.String("url", rawURL), zap.Error(err))
		body = resp.Body
	}

	pageURL := resp.FinalURL
	if pageURL == "" {
		pageURL = u.String()
	}

	page, err := htmlmeta.Extract(body, pageURL)
	if err != nil {
		return nil, domain.NewParseError("failed to parse page", err)
	}

	return toWebpageMetadata(page, pageURL), nil
}

// classifyFetchError maps transport failures to preview errors
func classifyFetchError(ctx context.Context, err error) error {
	if errors.Is(err, adapter.ErrRedirectBlocked) {
		return domain.NewInvalidURLError("redirect to a disallowed destination")
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewNetworkError("request timed out", err)
	}
	return domain.NewNetworkError("failed to fetch page", err)
}

// isHTML checks the declared content type, sniffing the body when none is declared
func isHTML(contentType string, body []byte) bool {
	if strings.TrimSpace(contentType) == "" {
		detected := mimetype.Detect(body)
		return detected.Is("text/html") || detected.Is("application/xhtml+xml")
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return acceptedContentTypes[strings.ToLower(mediaType)]
}

func toWebpageMetadata(page *htmlmeta.Page, pageURL string) *domain.WebpageMetadata {
	var host string
	if u, err := url.Parse(pageURL); err == nil {
		host = registry.NormalizeHost(u.Hostname())
	}

	title := page.Title
	if title == "" {
		title = host
	}
	siteName := page.SiteName
	if siteName == "" {
		siteName = host
	}

	canonical := page.Canonical
	if canonical == "" {
		canonical = page.URL
	}
	if canonical == "" {
		canonical = pageURL
	}

	return &domain.WebpageMetadata{
		Title:        title,
		Description:  htmlmeta.Truncate(page.Description, maxDescriptionLength),
		Image:        page.Image,
		Favicon:      page.Favicon,
		SiteName:     siteName,
		Domain:       host,
		CanonicalURL: canonical,
		OGType:       page.Type,
	}
}
