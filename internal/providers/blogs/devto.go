package blogs

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/htmlmeta"
	"github.com/feral-file/ff-link-preview/internal/logger"
)

// listPageSize is the largest page the article list endpoint serves
const listPageSize = 1000

// DevToArticle is an article as returned by the DEV API. The single article
// endpoint sends tag_list as a string and tags as a list; the list endpoint
// does the opposite, so both are decoded loosely.
type DevToArticle struct {
	Title                  string      `json:"title"`
	Description            string      `json:"description"`
	Slug                   string      `json:"slug"`
	URL                    string      `json:"url"`
	CanonicalURL           string      `json:"canonical_url"`
	CoverImage             *string     `json:"cover_image"`
	SocialImage            *string     `json:"social_image"`
	PublishedAt            string      `json:"published_at"`
	PublishedTimestamp     string      `json:"published_timestamp"`
	ReadingTimeMinutes     *int        `json:"reading_time_minutes"`
	PublicReactionsCount   *int        `json:"public_reactions_count"`
	PositiveReactionsCount *int        `json:"positive_reactions_count"`
	CommentsCount          *int        `json:"comments_count"`
	TagList                interface{} `json:"tag_list"`
	Tags                   interface{} `json:"tags"`
	User                   DevToUser   `json:"user"`
}

// DevToUser is the author of a DEV article
type DevToUser struct {
	Name           string `json:"name"`
	Username       string `json:"username"`
	ProfileImage   string `json:"profile_image"`
	ProfileImage90 string `json:"profile_image_90"`
}

type devToAdapter struct {
	pages  *pageLoader
	json   adapter.JSON
	apiURL string
}

// newDevToAdapter creates the DEV adapter, which reads the public article API
func newDevToAdapter(pages *pageLoader, json adapter.JSON, apiURL string) Adapter {
	return &devToAdapter{
		pages:  pages,
		json:   json,
		apiURL: strings.TrimRight(apiURL, "/"),
	}
}

func (a *devToAdapter) Fetch(ctx context.Context, rawURL string) (*domain.BlogMetadata, error) {
	username, slug, err := devToCoordinates(rawURL)
	if err != nil {
		return nil, err
	}

	article, err := a.getArticle(ctx, username, slug)
	if domain.KindOf(err) == domain.ErrorKindNotFound {
		logger.DebugCtx(ctx, "Article path lookup missed, searching the author's article list",
			zap.String("username", username), zap.String("slug", slug))
		article, err = a.findInList(ctx, username, slug)
	}
	if err != nil {
		return nil, err
	}

	return finish(article.toMetadata(), domain.PlatformDevTo, rawURL)
}

func (a *devToAdapter) getArticle(ctx context.Context, username, slug string) (*DevToArticle, error) {
	endpoint := fmt.Sprintf("%s/articles/%s/%s", a.apiURL, url.PathEscape(username), url.PathEscape(slug))
	resp, err := a.pages.get(ctx, domain.PlatformDevTo, endpoint, "application/json")
	if err != nil {
		return nil, err
	}

	var article DevToArticle
	if err := a.json.Unmarshal(resp.Body, &article); err != nil {
		return nil, domain.NewParseError("failed to decode article response", err)
	}
	return &article, nil
}

// findInList scans the author's published articles for the slug
func (a *devToAdapter) findInList(ctx context.Context, username, slug string) (*DevToArticle, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("per_page", fmt.Sprintf("%d", listPageSize))
	endpoint := fmt.Sprintf("%s/articles?%s", a.apiURL, q.Encode())

	resp, err := a.pages.get(ctx, domain.PlatformDevTo, endpoint, "application/json")
	if err != nil {
		return nil, err
	}

	var articles []DevToArticle
	if err := a.json.Unmarshal(resp.Body, &articles); err != nil {
		return nil, domain.NewParseError("failed to decode article list response", err)
	}

	for i := range articles {
		if articles[i].Slug == slug || strings.HasSuffix(strings.TrimRight(articles[i].URL, "/"), "/"+slug) {
			return &articles[i], nil
		}
	}
	return nil, domain.NewNotFoundError(fmt.Sprintf("article %s not found for %s", slug, username))
}

// devToCoordinates extracts username and slug from https://dev.to/{username}/{slug}
func devToCoordinates(rawURL string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", domain.NewInvalidURLError("article URL is malformed")
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return "", "", domain.NewInvalidURLError("article URL must have a username and a slug")
	}
	return segments[0], segments[1], nil
}

func (a *DevToArticle) toMetadata() *domain.BlogMetadata {
	md := &domain.BlogMetadata{
		Title:              a.Title,
		Description:        a.Description,
		ReadingTimeMinutes: a.ReadingTimeMinutes,
		Comments:           a.CommentsCount,
		CanonicalURL:       firstNonEmpty(a.CanonicalURL, a.URL),
		Author: domain.BlogAuthor{
			Name:      firstNonEmpty(a.User.Name, a.User.Username),
			Username:  a.User.Username,
			AvatarURL: firstNonEmpty(a.User.ProfileImage, a.User.ProfileImage90),
		},
	}

	if a.User.Username != "" {
		md.Author.ProfileURL = "https://dev.to/" + a.User.Username
	}
	if a.CoverImage != nil && *a.CoverImage != "" {
		md.CoverImage = *a.CoverImage
	} else if a.SocialImage != nil {
		md.CoverImage = *a.SocialImage
	}

	md.PublishedAt = parseTime(firstNonEmpty(a.PublishedAt, a.PublishedTimestamp))

	if a.PublicReactionsCount != nil {
		md.Reactions = a.PublicReactionsCount
	} else {
		md.Reactions = a.PositiveReactionsCount
	}

	md.Tags = htmlmeta.Strings(a.Tags)
	if len(md.Tags) == 0 {
		md.Tags = htmlmeta.Strings(a.TagList)
	}
	return md
}
