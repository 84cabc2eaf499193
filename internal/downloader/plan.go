package downloader

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

const defaultExtension = ".jpg"

var knownExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".svg": true, ".bmp": true, ".tiff": true, ".tif": true, ".avif": true,
}

// Selection narrows a parsed feed to the products and images to download.
// Empty lists select everything.
type Selection struct {
	ProductIDs []string
	ImageURLs  []string
}

// PlanDownloads builds download descriptors for the selected images. Names
// are "<title>_<n><ext>" where n is the image position within its product.
func PlanDownloads(products []models.Product, sel Selection) []models.DownloadItem {
	productSet := toSet(sel.ProductIDs)
	imageSet := toSet(sel.ImageURLs)

	items := make([]models.DownloadItem, 0)
	for _, product := range products {
		if len(productSet) > 0 && !productSet[product.ID] {
			continue
		}

		base := SanitizeFilename(product.Title, MaxFolderNameLength)
		for i, img := range product.Images {
			if len(imageSet) > 0 && !imageSet[img.URL] {
				continue
			}
			items = append(items, models.DownloadItem{
				URL:          img.URL,
				Filename:     fmt.Sprintf("%s_%d%s", base, i+1, ExtensionFromURL(img.URL)),
				ProductTitle: product.Title,
			})
		}
	}

	return items
}

// ExtensionFromURL returns the lowercased image extension of the URL path,
// or .jpg when the path has none.
func ExtensionFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return defaultExtension
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if knownExtensions[ext] {
		return ext
	}
	return defaultExtension
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
