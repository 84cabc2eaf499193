package parser

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseFeedMeta reads the channel (RSS) or feed (Atom) title and description
// from the markup that precedes the first record. Values are empty when the
// preamble does not carry them.
func (p *FeedParser) ParseFeedMeta(preamble string) (title, description string) {
	if strings.TrimSpace(preamble) == "" {
		return "", ""
	}

	// CDATA sections would otherwise be dropped as comments by the HTML parser.
	escaped := cdataPattern.ReplaceAllStringFunc(preamble, func(section string) string {
		return html.EscapeString(unwrapCDATA(section))
	})

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(escaped))
	if err != nil {
		return "", ""
	}

	title = selectionText(doc, "channel > title", "feed > title", "title")
	description = selectionText(doc, "channel > description", "feed > subtitle", "description")
	return title, description
}

func selectionText(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if value := cleanText(doc.Find(selector).First().Text()); value != "" {
			return value
		}
	}
	return ""
}
