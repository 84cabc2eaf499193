package feed

import (
	"regexp"
	"strings"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

var (
	itemPattern  = regexp.MustCompile(`(?is)<item(?:\s[^>]*)?/?>(.*?)</item\s*>`)
	entryPattern = regexp.MustCompile(`(?is)<entry(?:\s[^>]*)?/?>(.*?)</entry\s*>`)

	itemOpenPattern = regexp.MustCompile(`(?i)<item[\s>/]`)
)

var scopeImageTags = []string{
	"<g:image_link",
	"<g:additional_image_link",
	"<image_link",
	"<additional_image_link",
	"<main_image_url",
	"<other_image_url",
	"<pictureurl",
	"<galleryurl",
	"<image_url",
	"<image>",
	"<picture>",
	"<img ",
	"<media:content",
	"<media:thumbnail",
	"<enclosure",
}

// Segment splits feed text into item bodies without parsing the document.
// Malformed fragments simply fail to match. Atom <entry> records are used
// when the feed has no <item> records. The preamble is the text before the
// first record.
func Segment(text string) (preamble string, segments []string) {
	matches := itemPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		matches = entryPattern.FindAllStringSubmatchIndex(text, -1)
	}
	if len(matches) == 0 {
		return text, nil
	}

	segments = make([]string, 0, len(matches))
	for _, m := range matches {
		segments = append(segments, text[m[2]:m[3]])
	}

	return text[:matches[0][0]], segments
}

// InitialScope estimates product and image counts from raw tag occurrences.
// Plain <item> tags are counted by both the literal and the generic opening
// matcher, so the product figure can exceed the real item count. Callers
// must treat it as provisional.
func InitialScope(text string) models.Scope {
	lower := strings.ToLower(text)

	products := strings.Count(lower, "<item>") + len(itemOpenPattern.FindAllStringIndex(lower, -1))
	if products == 0 {
		products = strings.Count(lower, "<entry>") + strings.Count(lower, "<entry ")
	}

	images := 0
	for _, tag := range scopeImageTags {
		images += strings.Count(lower, tag)
	}

	return models.Scope{Products: products, Images: images}
}
