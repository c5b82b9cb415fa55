package registry

import (
	"fmt"
	"strings"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/domain"
)

// PlatformRegistry defines the interface for host lookups used by the URL classifier
//
//go:generate mockgen -source=platform.go -destination=../mocks/platform_registry.go -package=mocks -mock_names=PlatformRegistry=MockPlatformRegistry
type PlatformRegistry interface {
	// LookupBlogPlatform returns the blog platform hosting the given hostname, if any
	LookupBlogPlatform(host string) (domain.Platform, bool)

	// IsSocialHost checks if a hostname belongs to a social network
	IsSocialHost(host string) bool
}

// PlatformRegistryData represents the structure of the platform registry JSON file.
// Entries extend the built-in tables; they never remove a built-in entry.
type PlatformRegistryData struct {
	// BlogDomains maps an exact hostname to a platform name, e.g. "dev.to": "devto"
	BlogDomains map[string]string `json:"blog_domains"`
	// BlogSuffixes maps a hostname suffix to a platform name, e.g. ".substack.com": "substack"
	BlogSuffixes map[string]string `json:"blog_suffixes"`
	// SocialHosts lists social network hostnames; subdomains match too
	SocialHosts []string `json:"social_hosts"`
}

var defaultBlogDomains = map[string]domain.Platform{
	"dev.to":       domain.PlatformDevTo,
	"medium.com":   domain.PlatformMedium,
	"hashnode.dev": domain.PlatformHashnode,
	"hashnode.com": domain.PlatformHashnode,
}

var defaultBlogSuffixes = map[string]domain.Platform{
	".medium.com":   domain.PlatformMedium,
	".hashnode.dev": domain.PlatformHashnode,
	".substack.com": domain.PlatformSubstack,
}

var defaultSocialHosts = []string{
	"twitter.com",
	"x.com",
	"linkedin.com",
	"facebook.com",
	"fb.com",
	"instagram.com",
	"tiktok.com",
	"threads.net",
	"bsky.app",
	"mastodon.social",
	"youtube.com",
	"youtu.be",
	"twitch.tv",
	"discord.gg",
	"discord.com",
	"reddit.com",
	"pinterest.com",
	"snapchat.com",
	"t.me",
	"telegram.me",
}

// platformRegistry is the internal implementation of PlatformRegistry interface
type platformRegistry struct {
	blogDomains  map[string]domain.Platform
	blogSuffixes map[string]domain.Platform
	socialHosts  map[string]bool
}

// NewPlatformRegistry returns a registry holding only the built-in tables
func NewPlatformRegistry() PlatformRegistry {
	return newPlatformRegistry()
}

func newPlatformRegistry() *platformRegistry {
	r := &platformRegistry{
		blogDomains:  make(map[string]domain.Platform, len(defaultBlogDomains)),
		blogSuffixes: make(map[string]domain.Platform, len(defaultBlogSuffixes)),
		socialHosts:  make(map[string]bool, len(defaultSocialHosts)),
	}
	for host, p := range defaultBlogDomains {
		r.blogDomains[host] = p
	}
	for suffix, p := range defaultBlogSuffixes {
		r.blogSuffixes[suffix] = p
	}
	for _, host := range defaultSocialHosts {
		r.socialHosts[host] = true
	}
	return r
}

// NormalizeHost lowercases a hostname and strips a trailing dot and a leading "www."
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	return strings.TrimPrefix(host, "www.")
}

// LookupBlogPlatform returns the blog platform hosting the given hostname, if any
func (r *platformRegistry) LookupBlogPlatform(host string) (domain.Platform, bool) {
	host = NormalizeHost(host)
	if host == "" {
		return domain.PlatformUnknown, false
	}

	if p, ok := r.blogDomains[host]; ok {
		return p, true
	}

	// Longest suffix wins so a more specific entry shadows a broader one
	best := ""
	for suffix := range r.blogSuffixes {
		if strings.HasSuffix(host, suffix) && len(suffix) > len(best) {
			best = suffix
		}
	}
	if best != "" {
		return r.blogSuffixes[best], true
	}

	return domain.PlatformUnknown, false
}

// IsSocialHost checks if a hostname or any of its parent domains is a social network
func (r *platformRegistry) IsSocialHost(host string) bool {
	host = NormalizeHost(host)
	for host != "" {
		if r.socialHosts[host] {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
	return false
}

// PlatformRegistryLoader loads a platform registry from a JSON file
type PlatformRegistryLoader interface {
	Load(filePath string) (PlatformRegistry, error)
}

type platformRegistryLoader struct {
	fs   adapter.FileSystem
	json adapter.JSON
}

// NewPlatformRegistryLoader creates a new platform registry loader
func NewPlatformRegistryLoader(fs adapter.FileSystem, json adapter.JSON) PlatformRegistryLoader {
	return &platformRegistryLoader{fs: fs, json: json}
}

// Load reads the registry file and merges it over the built-in tables.
// An empty path yields the built-in tables.
func (l *platformRegistryLoader) Load(filePath string) (PlatformRegistry, error) {
	r := newPlatformRegistry()
	if filePath == "" {
		return r, nil
	}

	data, err := l.fs.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform registry file: %w", err)
	}

	var registryData PlatformRegistryData
	if err := l.json.Unmarshal(data, &registryData); err != nil {
		return nil, fmt.Errorf("failed to parse platform registry JSON: %w", err)
	}

	for host, name := range registryData.BlogDomains {
		p, err := parseRegistryPlatform(name)
		if err != nil {
			return nil, fmt.Errorf("blog domain %s: %w", host, err)
		}
		r.blogDomains[NormalizeHost(host)] = p
	}

	for suffix, name := range registryData.BlogSuffixes {
		p, err := parseRegistryPlatform(name)
		if err != nil {
			return nil, fmt.Errorf("blog suffix %s: %w", suffix, err)
		}
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		r.blogSuffixes[suffix] = p
	}

	for _, host := range registryData.SocialHosts {
		if host = NormalizeHost(host); host != "" {
			r.socialHosts[host] = true
		}
	}

	return r, nil
}

func parseRegistryPlatform(name string) (domain.Platform, error) {
	p := domain.ParsePlatform(name)
	if !p.Valid() {
		return domain.PlatformUnknown, fmt.Errorf("unsupported platform %q", name)
	}
	return p, nil
}
