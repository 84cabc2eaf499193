package models

import (
	"fmt"
	"strings"
)

const (
	AvailabilityInStock = "in_stock"
	ConditionNew        = "new"
)

type ProductImage struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Product is one distinct merchandise entry recovered from a feed. Scalar
// fields are never nil-like: absent values are empty strings so merge logic
// can test them uniformly.
type Product struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Brand        string         `json:"brand"`
	Price        string         `json:"price"`
	Availability string         `json:"availability"`
	Condition    string         `json:"condition"`
	Size         string         `json:"size"`
	Color        string         `json:"color"`
	Category     string         `json:"category"`
	ProductURL   string         `json:"product_url"`
	Images       []ProductImage `json:"images"`
}

type ParsedFeed struct {
	Products        []Product `json:"products"`
	TotalCount      int       `json:"total_count"`
	FeedTitle       string    `json:"feed_title,omitempty"`
	FeedDescription string    `json:"feed_description,omitempty"`
}

// Scope is a cheap upfront estimate used only for progress framing.
type Scope struct {
	Products int `json:"products"`
	Images   int `json:"images"`
}

type DownloadItem struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	ProductTitle string `json:"product_title,omitempty"`
}

type BundleEntry struct {
	Name        string `json:"name"`
	Folder      string `json:"folder,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

func NewProduct(title string) *Product {
	return &Product{
		Title:        strings.TrimSpace(title),
		Availability: AvailabilityInStock,
		Condition:    ConditionNew,
		Images:       make([]ProductImage, 0),
	}
}

// MergeKey is the normalized title used to consolidate variants.
func (p *Product) MergeKey() string {
	return strings.ToLower(strings.TrimSpace(p.Title))
}

func (p *Product) HasImage(url string) bool {
	for _, img := range p.Images {
		if img.URL == url {
			return true
		}
	}
	return false
}

// AddImage appends img unless an image with the same URL is already present.
func (p *Product) AddImage(img ProductImage) bool {
	if img.URL == "" || p.HasImage(img.URL) {
		return false
	}
	p.Images = append(p.Images, img)
	return true
}

// Merge folds a variant record into p and returns the number of images added.
// Appended images are relabelled with their position in the merged list.
// Populated scalar fields are never overwritten.
func (p *Product) Merge(other *Product) int {
	added := 0
	for _, img := range other.Images {
		img.Alt = fmt.Sprintf("Image %d", len(p.Images)+1)
		if p.AddImage(img) {
			added++
		}
	}

	if p.Brand == "" {
		p.Brand = other.Brand
	}
	if p.Description == "" {
		p.Description = other.Description
	}
	if p.ProductURL == "" {
		p.ProductURL = other.ProductURL
	}
	if p.Price == "" {
		p.Price = other.Price
	}
	if other.Availability == AvailabilityInStock {
		p.Availability = AvailabilityInStock
	}

	return added
}

func (f *ParsedFeed) ImageCount() int {
	total := 0
	for _, p := range f.Products {
		total += len(p.Images)
	}
	return total
}

// FindProduct returns the product with the given id.
func (f *ParsedFeed) FindProduct(id string) (*Product, bool) {
	for i := range f.Products {
		if f.Products[i].ID == id {
			return &f.Products[i], true
		}
	}
	return nil, false
}
