package parser

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

var imageExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp", ".tiff", ".tif",
}

var imageKeywords = []string{"image", "photo", "picture", "img", "media"}

var imageHostFragments = []string{
	"imgur.com",
	"cloudinary.com",
	"cdn.",
	"static.",
	"images.",
	"amazonaws.com",
	"media-amazon.com",
	"ssl-images-amazon.com",
	"ebayimg.com",
	"fbcdn.net",
	"shopify.com",
	"googleusercontent.com",
	"wp-content/uploads",
}

// Ordered by precedence: vendor tags first, then generic tags, then
// attribute-based tags and finally <url>/<link> values that look like images.
func defaultImagePatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Google Shopping / Facebook catalog
		tagPattern("g:image_link"),
		tagPattern("g:additional_image_link"),
		// generic and Facebook without namespace
		tagPattern("image_link"),
		tagPattern("additional_image_link"),
		// Amazon inventory feeds
		tagPattern("main_image_url"),
		regexp.MustCompile(`(?is)<other_image_url\d*(?:\s[^>]*[^/>])?\s*>(.*?)</other_image_url\d*\s*>`),
		// eBay
		tagPattern("PictureURL"),
		tagPattern("GalleryURL"),
		// Shopify / WooCommerce / custom
		tagPattern("image_url"),
		tagPattern("image"),
		tagPattern("picture"),
		attrPattern("img", "src"),
		attrPattern("media:content", "url"),
		attrPattern("media:thumbnail", "url"),
		attrPattern("enclosure", "url"),
		regexp.MustCompile(`(?is)<(?:url|link)(?:\s[^>]*[^/>])?\s*>\s*(?:<!\[CDATA\[)?\s*(https?://[^<\s]+?\.(?:jpe?g|png|gif|webp|svg|bmp|tiff?)(?:\?[^<\s\]]*)?)\s*(?:\]\]>)?\s*</(?:url|link)\s*>`),
	}
}

var bareImageURLPattern = regexp.MustCompile(`(?i)https?://[^\s<>"']+\.(?:jpe?g|png|gif|webp|svg|bmp|tiff?)(?:\?[^\s<>"']*)?`)

// IsValidImageURL is a permissive heuristic: the value must be an absolute
// http(s) URL that carries an image extension, an image keyword or a known
// image host fragment.
func IsValidImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	lower := strings.ToLower(raw)
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	for _, keyword := range imageKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	for _, host := range imageHostFragments {
		if strings.Contains(lower, host) {
			return true
		}
	}

	return false
}

// ExtractImages applies the image patterns in order and then scans the whole
// segment for bare image URLs. The first occurrence of a URL wins.
func (p *FeedParser) ExtractImages(segment string) []models.ProductImage {
	images := make([]models.ProductImage, 0)
	seen := make(map[string]struct{})

	add := func(raw string) {
		value := cleanURL(raw)
		if value == "" || !IsValidImageURL(value) {
			return
		}
		if _, ok := seen[value]; ok {
			return
		}
		seen[value] = struct{}{}
		images = append(images, models.ProductImage{
			URL: value,
			Alt: fmt.Sprintf("Image %d", len(images)+1),
		})
	}

	for _, pattern := range p.imagePatterns {
		for _, match := range pattern.FindAllStringSubmatch(segment, -1) {
			if len(match) > 1 {
				add(match[1])
			}
		}
	}

	for _, match := range bareImageURLPattern.FindAllString(html.UnescapeString(segment), -1) {
		add(match)
	}

	return images
}
