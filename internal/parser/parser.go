package parser

import (
	"github.com/maltedev/feed-image-extractor/internal/models"
)

type Parser interface {
	// ExtractProduct returns nil when the segment has no usable title.
	ExtractProduct(segment string) *models.Product
	ExtractImages(segment string) []models.ProductImage
	ParseFeedMeta(preamble string) (title, description string)
}
