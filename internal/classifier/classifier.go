package classifier

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/registry"
)

// Classification is the outcome of classifying a URL
type Classification struct {
	Type     domain.PreviewType
	Platform domain.Platform
	// Owner and Repo are set for repository URLs
	Owner string
	Repo  string
}

// Classifier defines the interface for URL classification
//
//go:generate mockgen -source=classifier.go -destination=../mocks/classifier.go -package=mocks -mock_names=Classifier=MockClassifier
type Classifier interface {
	// Classify maps a URL to a repository, a blog post on a known platform, or a generic webpage
	Classify(rawURL string) Classification

	// IsSocial reports whether a link is excluded from previews.
	// The category is authoritative; the host table is a secondary filter.
	IsSocial(category string, rawURL string) bool
}

var errUnsupportedScheme = errors.New("unsupported scheme")

var (
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	repoPattern  = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

	// Medium post slugs end with a 12 hex digit post id
	mediumPostIDPattern = regexp.MustCompile(`-[0-9a-f]{12}$`)
)

// reservedOwners are site routes on the code host that look like an owner segment
var reservedOwners = map[string]bool{
	"about":         true,
	"apps":          true,
	"collections":   true,
	"contact":       true,
	"enterprise":    true,
	"events":        true,
	"explore":       true,
	"features":      true,
	"issues":        true,
	"join":          true,
	"login":         true,
	"logout":        true,
	"marketplace":   true,
	"new":           true,
	"notifications": true,
	"orgs":          true,
	"organizations": true,
	"pricing":       true,
	"pulls":         true,
	"search":        true,
	"security":      true,
	"settings":      true,
	"signup":        true,
	"site":          true,
	"sponsors":      true,
	"topics":        true,
	"trending":      true,
}

type classifier struct {
	registry registry.PlatformRegistry
}

// New creates a classifier backed by the given platform registry
func New(reg registry.PlatformRegistry) Classifier {
	if reg == nil {
		reg = registry.NewPlatformRegistry()
	}
	return &classifier{registry: reg}
}

// Classify maps a URL to a repository, a blog post on a known platform, or a generic webpage
func (c *classifier) Classify(rawURL string) Classification {
	if owner, repo, ok := ParseRepo(rawURL); ok {
		return Classification{
			Type:     domain.PreviewTypeRepo,
			Platform: domain.PlatformUnknown,
			Owner:    owner,
			Repo:     repo,
		}
	}

	u, err := parse(rawURL)
	if err != nil {
		return Classification{Type: domain.PreviewTypeWebpage, Platform: domain.PlatformUnknown}
	}

	if p, ok := c.registry.LookupBlogPlatform(u.Hostname()); ok {
		return Classification{Type: domain.PreviewTypeBlog, Platform: p}
	}

	if looksLikeMediumPost(u.Path) {
		return Classification{Type: domain.PreviewTypeBlog, Platform: domain.PlatformMedium}
	}

	return Classification{Type: domain.PreviewTypeWebpage, Platform: domain.PlatformUnknown}
}

// IsSocial reports whether a link is excluded from previews
func (c *classifier) IsSocial(category string, rawURL string) bool {
	if domain.IsSocialCategory(category) {
		return true
	}

	u, err := parse(rawURL)
	if err != nil {
		return false
	}
	return c.registry.IsSocialHost(u.Hostname())
}

// ParseRepo extracts owner/repo coordinates from a repository URL.
// Accepted path shapes: /{owner}/{repo}, /{owner}/{repo}.git and
// /{owner}/{repo}/tree/{ref...} or /{owner}/{repo}/blob/{ref...}.
func ParseRepo(rawURL string) (owner string, repo string, ok bool) {
	u, err := parse(rawURL)
	if err != nil {
		return "", "", false
	}

	if registry.NormalizeHost(u.Hostname()) != domain.GITHUB_HOST {
		return "", "", false
	}

	segments := splitPath(u.Path)
	if len(segments) < 2 {
		return "", "", false
	}

	owner = segments[0]
	repo = strings.TrimSuffix(segments[1], ".git")

	if reservedOwners[strings.ToLower(owner)] {
		return "", "", false
	}
	if !ownerPattern.MatchString(owner) || !repoPattern.MatchString(repo) || repo == "." || repo == ".." {
		return "", "", false
	}

	switch len(segments) {
	case 2:
		return owner, repo, true
	case 3:
		return "", "", false
	default:
		if segments[2] != "tree" && segments[2] != "blob" {
			return "", "", false
		}
		return owner, repo, true
	}
}

// looksLikeMediumPost is a best-effort heuristic for Medium posts on custom domains
func looksLikeMediumPost(path string) bool {
	segments := splitPath(path)
	if len(segments) == 0 {
		return false
	}

	if strings.HasPrefix(segments[0], "@") && len(segments[0]) > 1 && len(segments) >= 2 {
		return true
	}

	return mediumPostIDPattern.MatchString(segments[len(segments)-1])
}

// parse parses an absolute http(s) URL; a bare host/path gets an https scheme
func parse(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &url.Error{Op: "parse", URL: rawURL, Err: errUnsupportedScheme}
	}
	return u, nil
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
