// Package jsonstate locates client-state JSON embedded in third-party pages
// by front-end frameworks, and walks the decoded payloads for domain
// objects. Decoded JSON is handled as its generic tagged form
// (map[string]any / []any / scalars); all traversal is explicit depth-first
// walking, never dynamic field access.
package jsonstate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// statePatterns are known global-variable assignment conventions for
// hydration state, most specific first. Each captures the JSON object text.
var statePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.__NUXT__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)window\.__APP_INITIAL_STATE__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)self\.__NUXT__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)<script[^>]*id=["']__NEXT_DATA__["'][^>]*type=["']application/json["'][^>]*>(.*?)</script>`),
	regexp.MustCompile(`(?s)window\.__NEXT_DATA__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)window\.__RELAY_STORE__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)window\.__APOLLO_STATE__\s*=\s*(\{.*?\});`),
}

// stateMarkers flag script blocks worth brace-scanning when no assignment
// pattern matches anywhere.
var stateMarkers = []string{
	"__RELAY_STORE__",
	"__APOLLO_STATE__",
	"__INITIAL_STATE__",
	"__NEXT_DATA__",
}

// ExtractPayloads returns candidate state-JSON strings from the page, in
// discovery order. The assignment patterns are tried against the whole page
// first, then per script block, and finally marker-bearing script blocks
// are scanned for balanced-brace objects. Callers must tolerate payloads
// that fail to parse.
func ExtractPayloads(rawHTML string) []string {
	var payloads []string

	for _, pattern := range statePatterns {
		for _, match := range pattern.FindAllStringSubmatch(rawHTML, -1) {
			payloads = append(payloads, match[1])
		}
	}
	if len(payloads) > 0 {
		return payloads
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if text == "" {
			return
		}

		matched := false
		for _, pattern := range statePatterns {
			if m := pattern.FindStringSubmatch(text); m != nil {
				payloads = append(payloads, m[1])
				matched = true
			}
		}
		if matched {
			return
		}

		for _, marker := range stateMarkers {
			if strings.Contains(text, marker) {
				payloads = append(payloads, BalancedObjects(text)...)
				return
			}
		}
	})

	return payloads
}

// BalancedObjects extracts every top-level {...} span from the script text
// by bracket-depth tracking. No string-literal awareness; the caller's JSON
// parse rejects false positives.
func BalancedObjects(text string) []string {
	var objects []string
	depth := 0
	start := -1
	for i, ch := range text {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					objects = append(objects, text[start:i+1])
					start = -1
				}
			}
		}
	}
	return objects
}

// Walk performs a depth-first traversal of decoded JSON, invoking visit for
// every object node with the nearest enclosing category name. The category
// accumulator is carried by value down each branch: a node tagged as a
// category/section (by type tag, or reached under a category-like key
// whose value carries a title) sets the category for its subtree only.
func Walk(payload any, visit func(node map[string]any, category string)) {
	walk(payload, "", visit)
}

// categoryTypes tag nodes whose own name becomes the category for their
// descendants.
var categoryTypes = map[string]bool{
	"category":        true,
	"section":         true,
	"menuitemsection": true,
}

// categoryKeys introduce a category scope when their value is an object
// with a title.
var categoryKeys = map[string]bool{
	"category":           true,
	"section":            true,
	"menu_items_section": true,
}

func walk(node any, category string, visit func(map[string]any, string)) {
	switch v := node.(type) {
	case map[string]any:
		next := category
		if name := NameField(v); name != "" {
			if typeTag, ok := stringField(v, "type", "__typename"); ok && categoryTypes[strings.ToLower(typeTag)] {
				next = name
			}
		}

		visit(v, category)

		// Sorted keys keep traversal (and therefore first-occurrence
		// dedup downstream) deterministic.
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := v[key]
			childCategory := next
			if categoryKeys[strings.ToLower(key)] {
				if child, ok := value.(map[string]any); ok {
					if title, ok := stringField(child, "title", "name"); ok {
						childCategory = title
					}
				}
			}
			walk(value, childCategory, visit)
		}

	case []any:
		for _, item := range v {
			walk(item, category, visit)
		}
	}
}

// NameField returns the node's display name under the common name-like
// keys, or "".
func NameField(node map[string]any) string {
	if s, ok := stringField(node, "title", "name", "displayName"); ok {
		return s
	}
	return ""
}

func stringField(node map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := node[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
