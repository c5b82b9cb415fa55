package htmlmeta

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/feral-file/ff-link-preview/internal/adapter"
)

var jsonParsePatterns sync.Map // variable name -> *regexp.Regexp

// JSONParseAssignment finds `<name> = JSON.parse("...")` in inline script and
// returns the decoded JSON document carried by the string literal
func JSONParseAssignment(json adapter.JSON, raw string, name string) ([]byte, bool) {
	re := jsonParsePatternFor(name)
	m := re.FindStringSubmatch(raw)
	if len(m) < 2 {
		return nil, false
	}

	var decoded string
	if err := json.Unmarshal([]byte(m[1]), &decoded); err != nil {
		return nil, false
	}
	return []byte(decoded), true
}

func jsonParsePatternFor(name string) *regexp.Regexp {
	if cached, ok := jsonParsePatterns.Load(name); ok {
		return cached.(*regexp.Regexp)
	}
	re := regexp.MustCompile(fmt.Sprintf(`%s\s*=\s*JSON\.parse\(\s*("(?:[^"\\]|\\.)*")\s*\)`, regexp.QuoteMeta(name)))
	jsonParsePatterns.Store(name, re)
	return re
}

// LinkedData returns every JSON-LD object embedded in the document.
// Top-level arrays and @graph containers are flattened.
func (d *Document) LinkedData(json adapter.JSON) []map[string]any {
	var out []map[string]any
	for _, text := range d.ScriptTexts(`script[type="application/ld+json"]`) {
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			continue
		}
		out = appendLinkedData(out, v)
	}
	return out
}

func appendLinkedData(out []map[string]any, v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = appendLinkedData(out, item)
		}
	case map[string]any:
		if graph, ok := t["@graph"]; ok {
			out = appendLinkedData(out, graph)
		}
		out = append(out, t)
	}
	return out
}

// HasType reports whether a JSON-LD object's @type is one of types
func HasType(obj map[string]any, types ...string) bool {
	var declared []string
	switch t := obj["@type"].(type) {
	case string:
		declared = []string{t}
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				declared = append(declared, s)
			}
		}
	}
	for _, have := range declared {
		for _, want := range types {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

// Lookup walks nested objects by key and returns the value found, or nil
func Lookup(v any, keys ...string) any {
	for _, key := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

// String returns v as a string. JSON-LD objects yield their "name", "url" or "@id" field
// and arrays yield their first convertible element.
func String(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		for _, key := range []string{"name", "url", "@id"} {
			if s := String(t[key]); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range t {
			if s := String(item); s != "" {
				return s
			}
		}
	}
	return ""
}

// Strings returns v as a string list, accepting a list or a comma separated string
func Strings(v any) []string {
	switch t := v.(type) {
	case string:
		return SplitKeywords(t)
	case []any:
		var out []string
		for _, item := range t {
			if s := CleanText(String(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Int returns v as an int when it is a JSON number or a numeric string
func Int(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}
