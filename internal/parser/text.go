package parser

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var cdataPattern = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

// tagPattern builds a case-insensitive matcher for the text content of a
// single tag. The opening tag may carry attributes but must not continue the
// tag name, so <image> never matches <image_link>. Self-closing tags carry no
// content and are skipped.
func tagPattern(tag string) *regexp.Regexp {
	name := regexp.QuoteMeta(tag)
	return regexp.MustCompile(`(?is)<` + name + `(?:\s[^>]*[^/>])?\s*>(.*?)</` + name + `\s*>`)
}

// attrPattern matches the value of attr on a given tag.
func attrPattern(tag, attr string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(tag) + `\s[^>]*?\b` + regexp.QuoteMeta(attr) + `\s*=\s*["']([^"']+)["']`)
}

func unwrapCDATA(value string) string {
	return cdataPattern.ReplaceAllString(value, "$1")
}

// cleanText normalizes a scalar tag value: CDATA is unwrapped, XML entities
// are decoded and surrounding whitespace is trimmed.
func cleanText(value string) string {
	return strings.TrimSpace(html.UnescapeString(unwrapCDATA(value)))
}

// cleanURL decodes a captured image value as a URI component. Values with
// malformed escapes are kept as-is.
func cleanURL(value string) string {
	value = cleanText(value)
	if decoded, err := url.PathUnescape(value); err == nil {
		value = decoded
	}
	return strings.TrimSpace(value)
}

func firstMatch(patterns []*regexp.Regexp, segment string) string {
	for _, pattern := range patterns {
		matches := pattern.FindStringSubmatch(segment)
		if len(matches) < 2 {
			continue
		}
		if value := cleanText(matches[1]); value != "" {
			return value
		}
	}
	return ""
}
