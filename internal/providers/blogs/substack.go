package blogs

import (
	"context"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/htmlmeta"
)

type substackAdapter struct {
	pages *pageLoader
	json  adapter.JSON
}

// newSubstackAdapter creates the Substack adapter, which reads the window._preloads state
func newSubstackAdapter(pages *pageLoader, json adapter.JSON) Adapter {
	return &substackAdapter{pages: pages, json: json}
}

func (a *substackAdapter) Fetch(ctx context.Context, rawURL string) (*domain.BlogMetadata, error) {
	doc, err := a.pages.getHTML(ctx, domain.PlatformSubstack, rawURL)
	if err != nil {
		return nil, err
	}

	md := &domain.BlogMetadata{}
	if post := a.preloadedPost(doc); post != nil {
		fillFromSubstackPost(md, post)
	}

	fillFromPage(md, doc)
	fillFromRegex(md, doc.Raw())

	return finish(md, domain.PlatformSubstack, rawURL)
}

func (a *substackAdapter) preloadedPost(doc *htmlmeta.Document) map[string]any {
	data, ok := htmlmeta.JSONParseAssignment(a.json, doc.Raw(), "window._preloads")
	if !ok {
		return nil
	}

	var preloads map[string]any
	if err := a.json.Unmarshal(data, &preloads); err != nil {
		return nil
	}
	post, _ := preloads["post"].(map[string]any)
	return post
}

func fillFromSubstackPost(md *domain.BlogMetadata, post map[string]any) {
	md.Title = htmlmeta.String(post["title"])
	md.Description = htmlmeta.String(firstValue(post, "subtitle", "description"))
	md.Excerpt = htmlmeta.String(firstValue(post, "description", "truncated_body_text"))
	md.CoverImage = htmlmeta.String(post["cover_image"])
	md.CanonicalURL = htmlmeta.String(post["canonical_url"])
	md.PublishedAt = parseTime(htmlmeta.String(post["post_date"]))

	if bylines, ok := post["publishedBylines"].([]any); ok && len(bylines) > 0 {
		byline := bylines[0]
		md.Author.Name = htmlmeta.String(htmlmeta.Lookup(byline, "name"))
		md.Author.Username = htmlmeta.String(htmlmeta.Lookup(byline, "handle"))
		md.Author.AvatarURL = htmlmeta.String(htmlmeta.Lookup(byline, "photo_url"))
		if md.Author.Username != "" {
			md.Author.ProfileURL = "https://substack.com/@" + md.Author.Username
		}
	}

	if tags, ok := post["postTags"]; ok {
		md.Tags = htmlmeta.Strings(tags)
	}

	if words, ok := htmlmeta.Int(post["wordcount"]); ok {
		md.ReadingTimeMinutes = readingTimeFromWords(words)
	}

	if n, ok := htmlmeta.Int(post["reaction_count"]); ok {
		md.Reactions = intPtr(n)
	} else if reactions, ok := post["reactions"].(map[string]any); ok {
		total := 0
		for _, v := range reactions {
			if n, ok := htmlmeta.Int(v); ok {
				total += n
			}
		}
		md.Reactions = intPtr(total)
	}
	if n, ok := htmlmeta.Int(post["comment_count"]); ok {
		md.Comments = intPtr(n)
	}
}
