package htmlmeta

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
)

// Narrow regex fallbacks for pages whose markup the parser could not use

var (
	titlePattern       = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	readingTimePattern = regexp.MustCompile(`(?i)(\d{1,3})\s*min(?:ute)?s?\s+read`)
	jsonAuthorPattern  = regexp.MustCompile(`"author"\s*:\s*(?:\[\s*)?\{[^{}]*?"name"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	jsonDatePattern    = regexp.MustCompile(`"(?:datePublished|publishedAt|post_date)"\s*:\s*"([^"]+)"`)

	metaPatterns sync.Map // key -> [2]*regexp.Regexp
)

// RegexTitle returns the cleaned text of the first <title> element
func RegexTitle(raw string) string {
	return MatchFirst(raw, titlePattern)
}

// RegexMeta returns the cleaned content of the first meta tag whose
// property or name equals key, in either attribute order
func RegexMeta(raw string, key string) string {
	for _, re := range metaPatternsFor(key) {
		if v := MatchFirst(raw, re); v != "" {
			return v
		}
	}
	return ""
}

// RegexReadingTime returns the "N min read" figure found in the page, if any
func RegexReadingTime(raw string) (int, bool) {
	m := readingTimePattern.FindStringSubmatch(raw)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// RegexAuthor returns an author name found in inline JSON
func RegexAuthor(raw string) string {
	return MatchFirst(raw, jsonAuthorPattern)
}

// RegexPublished returns a publication date string found in inline JSON
func RegexPublished(raw string) string {
	m := jsonDatePattern.FindStringSubmatch(raw)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// MatchFirst returns the cleaned first capture group of re in raw
func MatchFirst(raw string, re *regexp.Regexp) string {
	m := re.FindStringSubmatch(raw)
	if len(m) < 2 {
		return ""
	}
	return CleanText(m[1])
}

func metaPatternsFor(key string) [2]*regexp.Regexp {
	if cached, ok := metaPatterns.Load(key); ok {
		return cached.([2]*regexp.Regexp)
	}
	quoted := regexp.QuoteMeta(key)
	patterns := [2]*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`(?is)<meta[^>]+(?:property|name)\s*=\s*["']%s["'][^>]*?content\s*=\s*["']([^"']*)["']`, quoted)),
		regexp.MustCompile(fmt.Sprintf(`(?is)<meta[^>]+content\s*=\s*["']([^"']*)["'][^>]*?(?:property|name)\s*=\s*["']%s["']`, quoted)),
	}
	metaPatterns.Store(key, patterns)
	return patterns
}
