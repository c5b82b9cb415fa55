package htmlmeta

import (
	"strings"
)

// Page holds the metadata found in an HTML document.
// URLs are absolute; text fields are cleaned.
type Page struct {
	Title         string
	Description   string
	Image         string
	URL           string
	SiteName      string
	Type          string
	Favicon       string
	Canonical     string
	Author        string
	PublishedTime string
	Tags          []string
}

// Extract parses an HTML body and extracts Open Graph, Twitter card and
// standard meta tags, falling back to regex matching on the raw markup
func Extract(body []byte, pageURL string) (*Page, error) {
	doc, err := Parse(body, pageURL)
	if err != nil {
		return nil, err
	}
	return doc.Page(), nil
}

// Page extracts the page metadata from the document
func (d *Document) Page() *Page {
	p := &Page{
		Title:         CleanText(d.Meta("og:title", "twitter:title")),
		Description:   CleanText(d.Meta("og:description", "twitter:description", "description")),
		Image:         d.Resolve(d.Meta("og:image", "og:image:url", "og:image:secure_url", "twitter:image", "twitter:image:src", "image")),
		URL:           d.Resolve(d.Meta("og:url")),
		SiteName:      CleanText(d.Meta("og:site_name", "application-name")),
		Type:          strings.ToLower(d.Meta("og:type")),
		Canonical:     d.Resolve(d.Link("canonical")),
		Author:        CleanText(d.Meta("author", "article:author", "twitter:creator")),
		PublishedTime: d.Meta("article:published_time", "og:published_time", "datepublished", "date"),
	}

	if p.Title == "" {
		p.Title = d.Title()
	}
	if p.Title == "" {
		p.Title = RegexTitle(d.raw)
	}
	if p.Description == "" {
		p.Description = RegexMeta(d.raw, "description")
	}

	p.Favicon = d.Resolve(d.Link("icon", "shortcut icon", "apple-touch-icon", "apple-touch-icon-precomposed"))
	if p.Favicon == "" {
		p.Favicon = FaviconFallback(d.page)
	}

	for _, tag := range d.MetaAll("article:tag") {
		if tag = CleanText(tag); tag != "" {
			p.Tags = append(p.Tags, tag)
		}
	}
	if len(p.Tags) == 0 {
		p.Tags = SplitKeywords(d.Meta("keywords"))
	}

	return p
}

// SplitKeywords splits a comma separated keyword list, dropping empty entries
func SplitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = CleanText(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
