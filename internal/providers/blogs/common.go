package blogs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/htmlmeta"
	"github.com/feral-file/ff-link-preview/internal/ratelimit"
)

const (
	// wordsPerMinute converts a word count into an estimated reading time
	wordsPerMinute = 265

	maxExcerptLength     = 300
	maxDescriptionLength = 500
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02",
}

// pageLoader issues paced GET requests on behalf of the adapters
type pageLoader struct {
	httpClient     adapter.HTTPClient
	rateLimitProxy ratelimit.Proxy
	userAgent      string
	timeout        time.Duration
	maxBodyBytes   int64
}

// get fetches url under the platform's pacing and maps failures to preview errors.
// Non-2xx statuses are returned as errors.
func (l *pageLoader) get(ctx context.Context, platform domain.Platform, url string, accept string) (*adapter.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	headers := map[string]string{"Accept": accept}
	if l.userAgent != "" {
		headers["User-Agent"] = l.userAgent
	}

	resp, err := ratelimit.Request(ctx, l.rateLimitProxy, string(platform), func(ctx context.Context) (*adapter.Response, error) {
		return l.httpClient.Get(ctx, url, headers, l.maxBodyBytes)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, domain.NewNetworkError(fmt.Sprintf("%s request timed out", platform), err)
		}
		return nil, domain.NewNetworkError(fmt.Sprintf("failed to fetch %s", platform), err)
	}
	if resp == nil {
		return nil, domain.NewNetworkError(fmt.Sprintf("empty %s response", platform), nil)
	}

	if pe := mapStatus(resp.StatusCode, string(platform)); pe != nil {
		return nil, pe
	}
	if resp.Truncated {
		return nil, domain.NewParseError(fmt.Sprintf("%s response exceeds the size limit", platform), nil)
	}
	return resp, nil
}

// getHTML fetches and parses an HTML page
func (l *pageLoader) getHTML(ctx context.Context, platform domain.Platform, url string) (*htmlmeta.Document, error) {
	resp, err := l.get(ctx, platform, url, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	if err != nil {
		return nil, err
	}

	body, err := htmlmeta.DecodeUTF8(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		body = resp.Body
	}

	pageURL := resp.FinalURL
	if pageURL == "" {
		pageURL = url
	}

	doc, err := htmlmeta.Parse(body, pageURL)
	if err != nil {
		return nil, domain.NewParseError(fmt.Sprintf("failed to parse %s page", platform), err)
	}
	return doc, nil
}

// mapStatus maps an upstream HTTP status to a preview error, nil for 2xx
func mapStatus(status int, subject string) *domain.PreviewError {
	return domain.ErrorFromStatus(status, subject)
}

// parseTime parses the timestamp formats blog platforms emit
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func intPtr(n int) *int {
	return &n
}

// readingTimeFromWords estimates whole reading minutes, at least one
func readingTimeFromWords(words int) *int {
	if words <= 0 {
		return nil
	}
	return intPtr(max(1, words/wordsPerMinute))
}

// fillFromPage fills the fields the embedded data left empty from page meta tags
func fillFromPage(md *domain.BlogMetadata, doc *htmlmeta.Document) {
	page := doc.Page()

	if md.Title == "" {
		md.Title = page.Title
	}
	if md.Title == "" {
		md.Title = htmlmeta.CleanText(doc.Title())
	}
	if md.Description == "" {
		md.Description = page.Description
	}
	if md.CoverImage == "" {
		md.CoverImage = page.Image
	}
	if md.Author.Name == "" {
		md.Author.Name = page.Author
	}
	if md.PublishedAt == nil {
		md.PublishedAt = parseTime(page.PublishedTime)
	}
	if len(md.Tags) == 0 {
		md.Tags = page.Tags
	}
	if md.CanonicalURL == "" {
		md.CanonicalURL = firstNonEmpty(page.Canonical, page.URL)
	}
}

// fillFromRegex is the last resort for markup the parser could not use
func fillFromRegex(md *domain.BlogMetadata, raw string) {
	if md.Title == "" {
		md.Title = firstNonEmpty(htmlmeta.RegexMeta(raw, "og:title"), htmlmeta.RegexTitle(raw))
	}
	if md.Description == "" {
		md.Description = firstNonEmpty(htmlmeta.RegexMeta(raw, "og:description"), htmlmeta.RegexMeta(raw, "description"))
	}
	if md.Author.Name == "" {
		md.Author.Name = htmlmeta.RegexAuthor(raw)
	}
	if md.PublishedAt == nil {
		md.PublishedAt = parseTime(htmlmeta.RegexPublished(raw))
	}
	if md.ReadingTimeMinutes == nil {
		if minutes, ok := htmlmeta.RegexReadingTime(raw); ok {
			md.ReadingTimeMinutes = intPtr(minutes)
		}
	}
}

// finish cleans text fields and checks that something usable was extracted
func finish(md *domain.BlogMetadata, platform domain.Platform, pageURL string) (*domain.BlogMetadata, error) {
	md.Title = htmlmeta.CleanText(md.Title)
	md.Description = htmlmeta.Truncate(htmlmeta.CleanText(md.Description), maxDescriptionLength)
	md.Excerpt = htmlmeta.CleanText(md.Excerpt)
	if md.Excerpt == "" {
		md.Excerpt = md.Description
	}
	md.Excerpt = htmlmeta.Truncate(md.Excerpt, maxExcerptLength)
	md.Author.Name = htmlmeta.CleanText(md.Author.Name)

	var tags []string
	seen := map[string]bool{}
	for _, tag := range md.Tags {
		tag = htmlmeta.CleanText(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
	}
	md.Tags = tags

	if md.CanonicalURL == "" {
		md.CanonicalURL = pageURL
	}
	md.Platform = platform

	if md.Title == "" {
		return nil, domain.NewParseError(fmt.Sprintf("no post metadata found on %s page", platform), nil)
	}
	return md, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
