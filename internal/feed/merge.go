package feed

import (
	"fmt"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

// merger consolidates variant records by normalized title. It lives for one
// parse call only.
type merger struct {
	byKey  map[string]*models.Product
	order  []*models.Product
	images int
}

func newMerger() *merger {
	return &merger{
		byKey: make(map[string]*models.Product),
	}
}

func (m *merger) add(p *models.Product) {
	key := p.MergeKey()

	if existing, ok := m.byKey[key]; ok {
		m.images += existing.Merge(p)
		return
	}

	p.ID = fmt.Sprintf("product-%d", len(m.order)+1)
	m.byKey[key] = p
	m.order = append(m.order, p)

	images := p.Images
	p.Images = make([]models.ProductImage, 0, len(images))
	for _, img := range images {
		if p.AddImage(img) {
			m.images++
		}
	}
}

func (m *merger) products() []models.Product {
	out := make([]models.Product, 0, len(m.order))
	for _, p := range m.order {
		out = append(out, *p)
	}
	return out
}
