package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/feed-image-extractor/internal/models"
	"github.com/maltedev/feed-image-extractor/internal/parser"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(fetcher Fetcher, opts Options) *Service {
	return NewService(parser.NewFeedParser(), fetcher, opts, testLogger())
}

func buildFeed(n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss><channel><title>Bulk</title>`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<item><title>Item %d</title><g:image_link>https://x.com/%d.jpg</g:image_link></item>`, i, i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

const shirtFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss xmlns:g="http://base.google.com/ns/1.0"><channel>
<title>Shirt Shop</title>
<description>Everything shirts</description>
<item><title>Shirt</title><g:image_link>https://x.com/a.jpg</g:image_link></item>
<item><title>Shirt</title><g:additional_image_link>https://x.com/b.jpg</g:image_link></item>
</channel></rss>`

func TestParseContentMergesVariants(t *testing.T) {
	svc := newTestService(nil, Options{})

	result := svc.ParseContent(shirtFeed)

	require.Len(t, result.Products, 1)
	assert.Equal(t, 1, result.TotalCount)
	assert.Equal(t, "Shirt Shop", result.FeedTitle)
	assert.Equal(t, "Everything shirts", result.FeedDescription)

	product := result.Products[0]
	assert.Equal(t, "product-1", product.ID)
	assert.Equal(t, "Shirt", product.Title)

	urls, alts := []string{}, []string{}
	for _, img := range product.Images {
		urls = append(urls, img.URL)
		alts = append(alts, img.Alt)
	}
	assert.Equal(t, []string{"https://x.com/a.jpg", "https://x.com/b.jpg"}, urls)
	assert.Equal(t, []string{"Image 1", "Image 2"}, alts)
}

func TestParseMergeIsCaseAndWhitespaceInsensitive(t *testing.T) {
	svc := newTestService(nil, Options{})

	text := `<item><title>Red Shoe</title><g:brand></g:brand><g:image_link>https://x.com/1.jpg</g:image_link></item>
<item><title>red shoe </title><g:brand>Acme</g:brand><g:image_link>https://x.com/1.jpg</g:image_link><image>https://x.com/2.jpg</image></item>`

	result, err := svc.ParseText(context.Background(), text, nil)
	require.NoError(t, err)

	require.Len(t, result.Products, 1)
	assert.Equal(t, "Red Shoe", result.Products[0].Title)
	assert.Equal(t, "Acme", result.Products[0].Brand)
	assert.Len(t, result.Products[0].Images, 2)
}

func TestParseSkipsItemsWithoutTitle(t *testing.T) {
	svc := newTestService(nil, Options{})

	text := `<item><g:image_link>https://x.com/a.jpg</g:image_link></item>
<item><title>Hat</title></item>`

	result := svc.ParseContent(text)

	require.Len(t, result.Products, 1)
	assert.Equal(t, "Hat", result.Products[0].Title)
	assert.Equal(t, 1, result.TotalCount)
}

func TestParseIsRepeatable(t *testing.T) {
	svc := newTestService(nil, Options{})
	text := buildFeed(25) + shirtFeed

	first, err := svc.ParseText(context.Background(), text, nil)
	require.NoError(t, err)
	second, err := svc.ParseText(context.Background(), text, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, svc.ParseContent(text))
}

func TestParseImagesAreUniquePerProduct(t *testing.T) {
	svc := newTestService(nil, Options{})

	text := `<item><title>A</title><g:image_link>https://x.com/a.jpg</g:image_link><image>https://x.com/a.jpg</image><description>https://x.com/a.jpg</description></item>
<item><title>a</title><image_link>https://x.com/a.jpg</image_link><picture>https://x.com/b.png</picture></item>`

	result := svc.ParseContent(text)

	for _, product := range result.Products {
		seen := map[string]bool{}
		for _, img := range product.Images {
			assert.False(t, seen[img.URL], "duplicate image %s", img.URL)
			seen[img.URL] = true
		}
	}
	require.Len(t, result.Products, 1)
	assert.Len(t, result.Products[0].Images, 2)
}

func TestParseTextProgress(t *testing.T) {
	tests := []struct {
		name      string
		items     int
		batchSize int
	}{
		{name: "several batches", items: 250, batchSize: 100},
		{name: "single partial batch", items: 7, batchSize: 100},
		{name: "exact batch", items: 20, batchSize: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(nil, Options{BatchSize: tt.batchSize, ProgressInterval: 10})

			var currents []int
			var lastImages int
			result, err := svc.ParseText(context.Background(), buildFeed(tt.items), func(current, total, images int) {
				assert.Equal(t, tt.items, total)
				currents = append(currents, current)
				lastImages = images
			})
			require.NoError(t, err)

			require.NotEmpty(t, currents)
			for i := 1; i < len(currents); i++ {
				assert.GreaterOrEqual(t, currents[i], currents[i-1])
			}
			assert.Equal(t, tt.items, currents[len(currents)-1])
			assert.Equal(t, tt.items, lastImages)
			assert.Equal(t, tt.items, result.TotalCount)
		})
	}
}

func TestParseTextEmptyFeed(t *testing.T) {
	svc := newTestService(nil, Options{})

	var calls [][3]int
	result, err := svc.ParseText(context.Background(), "<rss><channel></channel></rss>", func(current, total, images int) {
		calls = append(calls, [3]int{current, total, images})
	})
	require.NoError(t, err)

	assert.Empty(t, result.Products)
	assert.Equal(t, 0, result.TotalCount)
	assert.Equal(t, [][3]int{{0, 0, 0}}, calls)
}

func TestParseTextCancelled(t *testing.T) {
	svc := newTestService(nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ParseText(ctx, buildFeed(3), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type panickyParser struct {
	*parser.FeedParser
}

func (p panickyParser) ExtractProduct(segment string) *models.Product {
	if strings.Contains(segment, "boom") {
		panic("malformed")
	}
	return p.FeedParser.ExtractProduct(segment)
}

func TestParseRecoversFromItemPanic(t *testing.T) {
	svc := NewService(panickyParser{parser.NewFeedParser()}, nil, Options{}, testLogger())

	text := `<item><title>boom</title></item><item><title>Ok</title></item>`

	result := svc.ParseContent(text)

	require.Len(t, result.Products, 1)
	assert.Equal(t, "Ok", result.Products[0].Title)
}

func TestParseURL(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://shop.example.com/feed.xml").Return(shirtFeed, nil)

	svc := newTestService(fetcher, Options{})

	var scope models.Scope
	result, err := svc.ParseURL(context.Background(), "https://shop.example.com/feed.xml", func(s models.Scope) {
		scope = s
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalCount)
	assert.GreaterOrEqual(t, scope.Products, 2)
	assert.Equal(t, 2, scope.Images)
	fetcher.AssertExpectations(t)
}

func TestParseURLFetchError(t *testing.T) {
	fetchErr := errors.New("all strategies failed")
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://bad.example.com").Return("", fetchErr)

	svc := newTestService(fetcher, Options{})

	_, err := svc.ParseURL(context.Background(), "https://bad.example.com", nil, nil)
	assert.ErrorIs(t, err, fetchErr)
}
