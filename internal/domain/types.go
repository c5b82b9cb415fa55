package domain

import (
	"strings"
	"time"
)

// PreviewType represents the semantic type of a previewed link
type PreviewType string

const (
	PreviewTypeRepo    PreviewType = "repo"
	PreviewTypeBlog    PreviewType = "blog"
	PreviewTypeWebpage PreviewType = "webpage"
)

// IsValidPreviewType checks if a preview type is valid
func IsValidPreviewType(t PreviewType) bool {
	return t == PreviewTypeRepo ||
		t == PreviewTypeBlog ||
		t == PreviewTypeWebpage
}

// PreviewStatus represents the lifecycle state of a link preview
type PreviewStatus string

const (
	PreviewStatusPending PreviewStatus = "pending"
	PreviewStatusSuccess PreviewStatus = "success"
	PreviewStatusFailed  PreviewStatus = "failed"
	PreviewStatusExpired PreviewStatus = "expired"
)

// CategorySocial is the link category excluded from the preview pipeline
const CategorySocial = "social"

// IsSocialCategory reports whether a link category is the social exclusion category
func IsSocialCategory(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), CategorySocial)
}

const (
	// RepoTTL is how long repository metadata stays fresh
	RepoTTL = 24 * time.Hour
	// BlogTTL is how long blog post metadata stays fresh
	BlogTTL = 7 * 24 * time.Hour
	// WebpageTTL is how long generic webpage metadata stays fresh
	WebpageTTL = 7 * 24 * time.Hour
)

// TTL returns the freshness window for a preview type
func TTL(t PreviewType) time.Duration {
	switch t {
	case PreviewTypeRepo:
		return RepoTTL
	case PreviewTypeBlog:
		return BlogTTL
	default:
		return WebpageTTL
	}
}

// RepoLicense is the license of a source repository
type RepoLicense struct {
	Name   string `json:"name"`
	SPDXID string `json:"spdx_id"`
}

// RepoOwner is the owner account of a source repository
type RepoOwner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type"` // "User" or "Organization"
}

// RepoMetadata holds source repository details
type RepoMetadata struct {
	RepoName      string       `json:"repo_name"`
	Description   string       `json:"description"`
	Language      string       `json:"language"`
	Topics        []string     `json:"topics"`
	Stars         int          `json:"stars"`
	Forks         int          `json:"forks"`
	UpdatedAt     time.Time    `json:"updated_at"`
	DefaultBranch string       `json:"default_branch"`
	IsPrivate     bool         `json:"is_private"`
	License       *RepoLicense `json:"license,omitempty"`
	Owner         RepoOwner    `json:"owner"`
	HTMLURL       string       `json:"html_url"`
}

// BlogAuthor is the author of a blog post
type BlogAuthor struct {
	Name       string `json:"name"`
	Username   string `json:"username,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
}

// BlogMetadata holds blog post details
type BlogMetadata struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Excerpt            string     `json:"excerpt"`
	CoverImage         string     `json:"cover_image"`
	Author             BlogAuthor `json:"author"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	ReadingTimeMinutes *int       `json:"reading_time_minutes,omitempty"`
	Tags               []string   `json:"tags"`
	Platform           Platform   `json:"platform"`
	Reactions          *int       `json:"reactions,omitempty"`
	Comments           *int       `json:"comments,omitempty"`
	CanonicalURL       string     `json:"canonical_url"`
}

// WebpageMetadata holds generic webpage details
type WebpageMetadata struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Image        string `json:"image"`
	Favicon      string `json:"favicon"`
	SiteName     string `json:"site_name"`
	Domain       string `json:"domain"`
	CanonicalURL string `json:"canonical_url"`
	OGType       string `json:"og_type,omitempty"`
}

// Metadata is the type-tagged preview envelope. Exactly one of Repo, Blog or
// Webpage is set, matching Type.
type Metadata struct {
	Type      PreviewType      `json:"type"`
	Repo      *RepoMetadata    `json:"repo,omitempty"`
	Blog      *BlogMetadata    `json:"blog,omitempty"`
	Webpage   *WebpageMetadata `json:"webpage,omitempty"`
	FetchedAt time.Time        `json:"fetched_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Error     string           `json:"error,omitempty"`
}

// NewRepoMetadata wraps repository details into a preview envelope
func NewRepoMetadata(repo *RepoMetadata) *Metadata {
	return &Metadata{Type: PreviewTypeRepo, Repo: repo}
}

// NewBlogMetadata wraps blog details into a preview envelope
func NewBlogMetadata(blog *BlogMetadata) *Metadata {
	return &Metadata{Type: PreviewTypeBlog, Blog: blog}
}

// NewWebpageMetadata wraps webpage details into a preview envelope
func NewWebpageMetadata(page *WebpageMetadata) *Metadata {
	return &Metadata{Type: PreviewTypeWebpage, Webpage: page}
}

// Stamp sets the fetch time and the type-dependent expiration time
func (m *Metadata) Stamp(now time.Time) {
	m.FetchedAt = now
	m.ExpiresAt = now.Add(TTL(m.Type))
}

// IsExpired reports whether the metadata is stale at the given time
func (m *Metadata) IsExpired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// HasBody reports whether the variant matching Type is present
func (m *Metadata) HasBody() bool {
	switch m.Type {
	case PreviewTypeRepo:
		return m.Repo != nil
	case PreviewTypeBlog:
		return m.Blog != nil
	case PreviewTypeWebpage:
		return m.Webpage != nil
	default:
		return false
	}
}

// Title returns the display title of whichever variant is set
func (m *Metadata) Title() string {
	switch {
	case m.Repo != nil:
		return m.Repo.RepoName
	case m.Blog != nil:
		return m.Blog.Title
	case m.Webpage != nil:
		return m.Webpage.Title
	default:
		return ""
	}
}

// Result is the uniform envelope returned to callers of the preview pipeline
type Result struct {
	Success  bool          `json:"success"`
	Metadata *Metadata     `json:"metadata,omitempty"`
	Error    *PreviewError `json:"error,omitempty"`
}

// SuccessResult builds a successful result
func SuccessResult(m *Metadata) Result {
	return Result{Success: true, Metadata: m}
}

// FailureResult builds a failed result from any error
func FailureResult(err error) Result {
	return Result{Success: false, Error: AsPreviewError(err)}
}

// LinkRef identifies a link to preview
type LinkRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
