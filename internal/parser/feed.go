package parser

import (
	"regexp"
	"strings"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

// FeedParser extracts product records from item-sized chunks of feed markup
// with ordered regular expressions. It holds no per-call state and is safe
// for concurrent use.
type FeedParser struct {
	titlePatterns        []*regexp.Regexp
	descriptionPatterns  []*regexp.Regexp
	brandPatterns        []*regexp.Regexp
	pricePatterns        []*regexp.Regexp
	availabilityPatterns []*regexp.Regexp
	conditionPatterns    []*regexp.Regexp
	sizePatterns         []*regexp.Regexp
	colorPatterns        []*regexp.Regexp
	categoryPatterns     []*regexp.Regexp
	linkPatterns         []*regexp.Regexp
	imagePatterns        []*regexp.Regexp
}

var _ Parser = (*FeedParser)(nil)

func NewFeedParser() *FeedParser {
	return &FeedParser{
		titlePatterns: []*regexp.Regexp{
			tagPattern("title"),
		},
		descriptionPatterns: []*regexp.Regexp{
			tagPattern("description"),
			tagPattern("g:description"),
			tagPattern("summary"),
		},
		brandPatterns: []*regexp.Regexp{
			tagPattern("g:brand"),
			tagPattern("brand"),
		},
		pricePatterns: []*regexp.Regexp{
			tagPattern("g:price"),
			tagPattern("price"),
		},
		availabilityPatterns: []*regexp.Regexp{
			tagPattern("g:availability"),
			tagPattern("availability"),
		},
		conditionPatterns: []*regexp.Regexp{
			tagPattern("g:condition"),
			tagPattern("condition"),
		},
		sizePatterns: []*regexp.Regexp{
			tagPattern("g:size"),
			tagPattern("size"),
		},
		colorPatterns: []*regexp.Regexp{
			tagPattern("g:color"),
			tagPattern("color"),
		},
		categoryPatterns: []*regexp.Regexp{
			tagPattern("g:google_product_category"),
			tagPattern("g:product_type"),
			tagPattern("category"),
		},
		linkPatterns: []*regexp.Regexp{
			tagPattern("link"),
			tagPattern("g:link"),
			attrPattern("link", "href"),
		},
		imagePatterns: defaultImagePatterns(),
	}
}

// ExtractProduct builds one product from an item segment. Segments without a
// title yield nil. Absent scalar fields are empty strings.
func (p *FeedParser) ExtractProduct(segment string) *models.Product {
	title := firstMatch(p.titlePatterns, segment)
	if title == "" {
		return nil
	}

	product := models.NewProduct(title)
	product.Description = firstMatch(p.descriptionPatterns, segment)
	product.Brand = firstMatch(p.brandPatterns, segment)
	product.Price = NormalizePrice(firstMatch(p.pricePatterns, segment))
	product.Size = firstMatch(p.sizePatterns, segment)
	product.Color = firstMatch(p.colorPatterns, segment)
	product.Category = firstMatch(p.categoryPatterns, segment)
	product.ProductURL = firstMatch(p.linkPatterns, segment)

	if availability := normalizeToken(firstMatch(p.availabilityPatterns, segment)); availability != "" {
		product.Availability = availability
	}
	if condition := normalizeToken(firstMatch(p.conditionPatterns, segment)); condition != "" {
		product.Condition = condition
	}

	product.Images = p.ExtractImages(segment)

	return product
}

// normalizeToken maps "In Stock" and "in-stock" to "in_stock".
func normalizeToken(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	value = strings.NewReplacer(" ", "_", "-", "_").Replace(value)
	return strings.Trim(value, "_")
}
