package blogs

import (
	"context"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/htmlmeta"
)

var mediumArticleTypes = []string{"NewsArticle", "Article", "BlogPosting", "SocialMediaPosting"}

type mediumAdapter struct {
	pages *pageLoader
	json  adapter.JSON
}

// newMediumAdapter creates the Medium adapter, which reads the post page's JSON-LD
func newMediumAdapter(pages *pageLoader, json adapter.JSON) Adapter {
	return &mediumAdapter{pages: pages, json: json}
}

func (a *mediumAdapter) Fetch(ctx context.Context, rawURL string) (*domain.BlogMetadata, error) {
	doc, err := a.pages.getHTML(ctx, domain.PlatformMedium, rawURL)
	if err != nil {
		return nil, err
	}

	md := &domain.BlogMetadata{}
	for _, obj := range doc.LinkedData(a.json) {
		if htmlmeta.HasType(obj, mediumArticleTypes...) {
			fillFromLinkedData(md, obj)
			break
		}
	}

	// Medium puts "N min read" into the twitter:data1 card label
	if md.ReadingTimeMinutes == nil {
		if minutes, ok := htmlmeta.RegexReadingTime(doc.Meta("twitter:data1", "twitter:label1")); ok {
			md.ReadingTimeMinutes = intPtr(minutes)
		}
	}

	fillFromPage(md, doc)
	fillFromRegex(md, doc.Raw())

	return finish(md, domain.PlatformMedium, rawURL)
}

func fillFromLinkedData(md *domain.BlogMetadata, obj map[string]any) {
	md.Title = htmlmeta.String(firstValue(obj, "headline", "name"))
	md.Description = htmlmeta.String(obj["description"])
	md.CoverImage = htmlmeta.String(obj["image"])
	md.CanonicalURL = htmlmeta.String(firstValue(obj, "mainEntityOfPage", "url"))
	md.PublishedAt = parseTime(htmlmeta.String(firstValue(obj, "datePublished", "dateCreated")))
	md.Tags = htmlmeta.Strings(obj["keywords"])

	author := obj["author"]
	if list, ok := author.([]any); ok && len(list) > 0 {
		author = list[0]
	}
	md.Author.Name = htmlmeta.String(author)
	if url := htmlmeta.String(htmlmeta.Lookup(author, "url")); url != "" {
		md.Author.ProfileURL = url
	}
	md.Author.AvatarURL = htmlmeta.String(htmlmeta.Lookup(author, "image"))

	if words, ok := htmlmeta.Int(obj["wordCount"]); ok {
		md.ReadingTimeMinutes = readingTimeFromWords(words)
	}
	if comments, ok := htmlmeta.Int(firstValue(obj, "commentCount")); ok {
		md.Comments = intPtr(comments)
	}
}

// firstValue returns the first non-nil value among keys
func firstValue(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
