package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/classifier"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/logger"
	"github.com/feral-file/ff-link-preview/internal/ratelimit"
)

const PROVIDER_NAME = "github"

const (
	// maxResponseBytes caps API response bodies
	maxResponseBytes = 2 * 1024 * 1024
	defaultTimeout   = 10 * time.Second
)

// Repository is the subset of the repository API response that previews use
type Repository struct {
	FullName      string    `json:"full_name"`
	Description   *string   `json:"description"`
	Language      *string   `json:"language"`
	Topics        []string  `json:"topics"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	UpdatedAt     time.Time `json:"updated_at"`
	DefaultBranch string    `json:"default_branch"`
	Private       bool      `json:"private"`
	License       *License  `json:"license"`
	Owner         Owner     `json:"owner"`
	HTMLURL       string    `json:"html_url"`
}

// License is a repository license
type License struct {
	Name   string `json:"name"`
	SPDXID string `json:"spdx_id"`
}

// Owner is a repository owner account
type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type"`
}

// RateLimitResponse is the body of the rate limit endpoint
type RateLimitResponse struct {
	Resources struct {
		Core RateLimitResource `json:"core"`
	} `json:"resources"`
	Rate RateLimitResource `json:"rate"`
}

// RateLimitResource is one quota bucket
type RateLimitResource struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

// Config holds client configuration
type Config struct {
	APIURL     string
	Token      string
	APIVersion string
	Timeout    time.Duration
}

// Client defines the interface for source repository metadata retrieval
//
//go:generate mockgen -source=client.go -destination=../../mocks/github_client.go -package=mocks -mock_names=Client=MockGitHubClient
type Client interface {
	// GetRepository fetches metadata of the repository a URL points at
	GetRepository(ctx context.Context, rawURL string) (*domain.RepoMetadata, error)
}

// GitHubClient implements Client against the GitHub REST API
type GitHubClient struct {
	httpClient     adapter.HTTPClient
	rateLimitProxy ratelimit.Proxy
	budget         ratelimit.Budget
	json           adapter.JSON
	cfg            Config
}

// NewClient creates a new GitHub client
func NewClient(httpClient adapter.HTTPClient, rateLimitProxy ratelimit.Proxy, budget ratelimit.Budget, json adapter.JSON, cfg Config) Client {
	if cfg.APIURL == "" {
		cfg.APIURL = domain.GITHUB_API_URL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &GitHubClient{
		httpClient:     httpClient,
		rateLimitProxy: rateLimitProxy,
		budget:         budget,
		json:           json,
		cfg:            cfg,
	}
}

// GetRepository fetches repository metadata.
// An exhausted quota fails fast with RATE_LIMITED before any request is made.
func (c *GitHubClient) GetRepository(ctx context.Context, rawURL string) (*domain.RepoMetadata, error) {
	owner, repo, ok := classifier.ParseRepo(rawURL)
	if !ok {
		return nil, domain.NewInvalidURLError("not a repository URL")
	}

	if c.budget != nil {
		if err := c.budget.Check(ctx, c.verifyRateLimit); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/%s", c.cfg.APIURL, owner, repo)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	if c.budget != nil {
		c.budget.Observe(ctx, resp.Header)
	}

	if pe := mapStatus(resp); pe != nil {
		return nil, pe
	}

	var r Repository
	if err := c.json.Unmarshal(resp.Body, &r); err != nil {
		return nil, domain.NewParseError("failed to decode repository response", err)
	}
	if r.FullName == "" {
		return nil, domain.NewParseError("repository response has no name", nil)
	}

	return r.toMetadata(), nil
}

func (c *GitHubClient) get(ctx context.Context, url string) (*adapter.Response, error) {
	resp, err := ratelimit.Request(ctx, c.rateLimitProxy, PROVIDER_NAME, func(ctx context.Context) (*adapter.Response, error) {
		return c.httpClient.Get(ctx, url, c.headers(), maxResponseBytes)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, domain.NewNetworkError("repository request timed out", err)
		}
		return nil, domain.NewNetworkError("failed to call repository API", err)
	}
	if resp == nil {
		return nil, domain.NewNetworkError("empty repository API response", nil)
	}
	return resp, nil
}

// verifyRateLimit reads the quota from the rate limit endpoint, which does not consume it
func (c *GitHubClient) verifyRateLimit(ctx context.Context) (*ratelimit.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.httpClient.Get(ctx, c.cfg.APIURL+"/rate_limit", c.headers(), maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to call rate limit endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate limit endpoint returned status %d", resp.StatusCode)
	}

	var body RateLimitResponse
	if err := c.json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode rate limit response: %w", err)
	}

	core := body.Resources.Core
	if core.Limit == 0 {
		core = body.Rate
	}

	logger.DebugCtx(ctx, "Verified repository API quota",
		zap.Int("limit", core.Limit),
		zap.Int("remaining", core.Remaining))

	return &ratelimit.Snapshot{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		ResetAt:   time.Unix(core.Reset, 0).UTC(),
	}, nil
}

func (c *GitHubClient) headers() map[string]string {
	h := map[string]string{
		"Accept": "application/vnd.github+json",
	}
	if c.cfg.APIVersion != "" {
		h["X-GitHub-Api-Version"] = c.cfg.APIVersion
	}
	if c.cfg.Token != "" {
		h["Authorization"] = "Bearer " + c.cfg.Token
	}
	return h
}

// mapStatus maps a non-200 repository response to a preview error
func mapStatus(resp *adapter.Response) *domain.PreviewError {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return domain.NewNotFoundError("repository not found")
	case http.StatusUnauthorized:
		return domain.NewPrivateRepoError("repository requires authentication")
	case http.StatusForbidden, http.StatusTooManyRequests:
		if snap, ok := ratelimit.ParseRateLimitHeaders(resp.Header); ok && snap.Remaining == 0 {
			return domain.NewRateLimitedError("repository API rate limit exceeded", snap.ResetAt)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return domain.NewRateLimitedError("repository API rate limit exceeded", time.Time{})
		}
		return domain.NewPrivateRepoError("repository is private or access is forbidden")
	default:
		return domain.NewNetworkError(fmt.Sprintf("repository API returned status %d", resp.StatusCode), nil)
	}
}

func (r *Repository) toMetadata() *domain.RepoMetadata {
	md := &domain.RepoMetadata{
		RepoName:      r.FullName,
		Topics:        r.Topics,
		Stars:         r.Stars,
		Forks:         r.Forks,
		UpdatedAt:     r.UpdatedAt,
		DefaultBranch: r.DefaultBranch,
		IsPrivate:     r.Private,
		Owner: domain.RepoOwner{
			Login:     r.Owner.Login,
			AvatarURL: r.Owner.AvatarURL,
			Type:      r.Owner.Type,
		},
		HTMLURL: r.HTMLURL,
	}
	if md.Topics == nil {
		md.Topics = []string{}
	}
	if r.Description != nil {
		md.Description = *r.Description
	}
	if r.Language != nil {
		md.Language = *r.Language
	}
	if r.License != nil {
		md.License = &domain.RepoLicense{Name: r.License.Name, SPDXID: r.License.SPDXID}
	}
	return md
}
