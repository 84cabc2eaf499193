package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

func TestPlanDownloads(t *testing.T) {
	products := []models.Product{
		{ID: "product-1", Title: "Red Shoe", Images: []models.ProductImage{
			{URL: "https://cdn.example.com/a.PNG"},
			{URL: "https://cdn.example.com/pic?id=2"},
		}},
		{ID: "product-2", Title: "Hat", Images: []models.ProductImage{
			{URL: "https://cdn.example.com/hat.webp"},
		}},
	}

	tests := []struct {
		name     string
		sel      Selection
		expected []models.DownloadItem
	}{
		{
			name: "everything",
			sel:  Selection{},
			expected: []models.DownloadItem{
				{URL: "https://cdn.example.com/a.PNG", Filename: "Red_Shoe_1.png", ProductTitle: "Red Shoe"},
				{URL: "https://cdn.example.com/pic?id=2", Filename: "Red_Shoe_2.jpg", ProductTitle: "Red Shoe"},
				{URL: "https://cdn.example.com/hat.webp", Filename: "Hat_1.webp", ProductTitle: "Hat"},
			},
		},
		{
			name: "selected product",
			sel:  Selection{ProductIDs: []string{"product-2"}},
			expected: []models.DownloadItem{
				{URL: "https://cdn.example.com/hat.webp", Filename: "Hat_1.webp", ProductTitle: "Hat"},
			},
		},
		{
			name: "selected image keeps its position",
			sel:  Selection{ImageURLs: []string{"https://cdn.example.com/pic?id=2"}},
			expected: []models.DownloadItem{
				{URL: "https://cdn.example.com/pic?id=2", Filename: "Red_Shoe_2.jpg", ProductTitle: "Red Shoe"},
			},
		},
		{
			name:     "unknown product",
			sel:      Selection{ProductIDs: []string{"product-9"}},
			expected: []models.DownloadItem{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PlanDownloads(products, tt.sel))
		})
	}
}

func TestExtensionFromURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://x.com/a.jpeg", ".jpeg"},
		{"https://x.com/a.GIF?w=100", ".gif"},
		{"https://x.com/a", ".jpg"},
		{"https://x.com/a.php?img=1.png", ".jpg"},
		{"%%%", ".jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtensionFromURL(tt.url))
		})
	}
}
