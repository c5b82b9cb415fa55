package blogs

import (
	"context"

	"github.com/feral-file/ff-link-preview/internal/adapter"
	"github.com/feral-file/ff-link-preview/internal/domain"
	"github.com/feral-file/ff-link-preview/internal/htmlmeta"
)

type hashnodeAdapter struct {
	pages *pageLoader
	json  adapter.JSON
}

// newHashnodeAdapter creates the Hashnode adapter, which reads the Next.js page data
func newHashnodeAdapter(pages *pageLoader, json adapter.JSON) Adapter {
	return &hashnodeAdapter{pages: pages, json: json}
}

func (a *hashnodeAdapter) Fetch(ctx context.Context, rawURL string) (*domain.BlogMetadata, error) {
	doc, err := a.pages.getHTML(ctx, domain.PlatformHashnode, rawURL)
	if err != nil {
		return nil, err
	}

	md := &domain.BlogMetadata{}
	if post := a.nextDataPost(doc); post != nil {
		fillFromHashnodePost(md, post)
	}

	fillFromPage(md, doc)
	fillFromRegex(md, doc.Raw())

	return finish(md, domain.PlatformHashnode, rawURL)
}

// nextDataPost returns props.pageProps.post, or the publication's post on custom domains
func (a *hashnodeAdapter) nextDataPost(doc *htmlmeta.Document) map[string]any {
	scripts := doc.ScriptTexts(`script#__NEXT_DATA__`)
	if len(scripts) == 0 {
		return nil
	}

	var data map[string]any
	if err := a.json.Unmarshal([]byte(scripts[0]), &data); err != nil {
		return nil
	}

	for _, path := range [][]string{
		{"props", "pageProps", "post"},
		{"props", "pageProps", "publication", "post"},
	} {
		if post, ok := htmlmeta.Lookup(data, path...).(map[string]any); ok {
			return post
		}
	}
	return nil
}

func fillFromHashnodePost(md *domain.BlogMetadata, post map[string]any) {
	md.Title = htmlmeta.String(post["title"])
	md.Description = htmlmeta.String(firstValue(post, "subtitle", "brief"))
	md.Excerpt = htmlmeta.String(post["brief"])
	md.CoverImage = htmlmeta.String(firstValue(post, "coverImage", "ogImage"))
	md.CanonicalURL = htmlmeta.String(firstValue(post, "canonicalUrl", "url"))
	md.PublishedAt = parseTime(htmlmeta.String(firstValue(post, "publishedAt", "dateAdded")))
	md.Tags = htmlmeta.Strings(post["tags"])

	if author, ok := post["author"].(map[string]any); ok {
		md.Author.Name = htmlmeta.String(author["name"])
		md.Author.Username = htmlmeta.String(author["username"])
		md.Author.AvatarURL = htmlmeta.String(firstValue(author, "profilePicture", "photo"))
		if md.Author.Username != "" {
			md.Author.ProfileURL = "https://hashnode.com/@" + md.Author.Username
		}
	}

	if minutes, ok := htmlmeta.Int(firstValue(post, "readTimeInMinutes", "readTime")); ok && minutes > 0 {
		md.ReadingTimeMinutes = intPtr(minutes)
	}
	if reactions, ok := htmlmeta.Int(firstValue(post, "reactionCount", "totalReactions")); ok {
		md.Reactions = intPtr(reactions)
	}
	if comments, ok := htmlmeta.Int(firstValue(post, "responseCount", "replyCount")); ok {
		md.Comments = intPtr(comments)
	}
}
