package htmlmeta

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed HTML page with its meta tags indexed by key
type Document struct {
	doc  *goquery.Document
	page *url.URL
	base *url.URL
	raw  string
	// metas maps a lowercased property/name/itemprop to its contents in document order
	metas map[string][]string
}

// Parse parses a UTF-8 HTML body. pageURL is the final URL of the page and is
// used to resolve relative references.
func Parse(body []byte, pageURL string) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	d := &Document{
		doc:   doc,
		page:  base,
		base:  base,
		raw:   string(body),
		metas: make(map[string][]string),
	}

	// <base href> overrides the page URL for relative references
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil && isHTTP(b) {
			d.base = b
		}
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		for _, attr := range []string{"property", "name", "itemprop"} {
			if key, ok := s.Attr(attr); ok {
				key = strings.ToLower(strings.TrimSpace(key))
				if key != "" {
					d.metas[key] = append(d.metas[key], content)
				}
			}
		}
	})

	return d, nil
}

// Raw returns the unparsed HTML body
func (d *Document) Raw() string {
	return d.raw
}

// Base returns the URL relative references are resolved against
func (d *Document) Base() *url.URL {
	return d.base
}

// Meta returns the first non-empty meta content for the first key that has one
func (d *Document) Meta(keys ...string) string {
	for _, key := range keys {
		if values := d.metas[strings.ToLower(key)]; len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// MetaAll returns every meta content for the key in document order
func (d *Document) MetaAll(key string) []string {
	return d.metas[strings.ToLower(key)]
}

// Title returns the text of the first <title> element
func (d *Document) Title() string {
	return CleanText(d.doc.Find("title").First().Text())
}

// Link returns the href of the first <link> whose rel contains any of the given tokens
func (d *Document) Link(rels ...string) string {
	var href string
	d.doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		tokens := strings.Fields(strings.ToLower(rel))
		for _, want := range rels {
			if matchesRel(tokens, want) {
				href, _ = s.Attr("href")
				href = strings.TrimSpace(href)
				if href != "" {
					return false
				}
			}
		}
		return true
	})
	return href
}

// matchesRel reports whether the rel tokens contain want, which may itself be multi-token ("shortcut icon")
func matchesRel(tokens []string, want string) bool {
	wantTokens := strings.Fields(want)
	if len(wantTokens) == 0 {
		return false
	}
	for _, w := range wantTokens {
		found := false
		for _, t := range tokens {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ScriptTexts returns the raw contents of every <script> matching selector
func (d *Document) ScriptTexts(selector string) []string {
	var out []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// Find exposes goquery selection for adapter-specific lookups
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Resolve resolves a reference against the document base.
// Only http(s) results are returned; anything else yields "".
func (d *Document) Resolve(ref string) string {
	return ResolveURL(d.base, ref)
}

// ResolveURL resolves ref against base and keeps only http(s) results
func ResolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	var (
		u   *url.URL
		err error
	)
	if base != nil {
		u, err = base.Parse(ref)
	} else {
		u, err = url.Parse(ref)
	}
	if err != nil || !isHTTP(u) {
		return ""
	}
	return u.String()
}

func isHTTP(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FaviconFallback returns the conventional favicon location at the origin of u
func FaviconFallback(u *url.URL) string {
	if u == nil || !isHTTP(u) {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/favicon.ico"}).String()
}
