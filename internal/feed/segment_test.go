package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name             string
		text             string
		expectedPreamble string
		expected         []string
	}{
		{
			name:             "rss items",
			text:             `<channel><title>Shop</title><item><title>A</title></item><ITEM id="2"><title>B</title></ITEM></channel>`,
			expectedPreamble: `<channel><title>Shop</title>`,
			expected:         []string{`<title>A</title>`, `<title>B</title>`},
		},
		{
			name:             "multiline item bodies",
			text:             "<item>\n<title>A</title>\n</item>",
			expectedPreamble: "",
			expected:         []string{"\n<title>A</title>\n"},
		},
		{
			name:     "items container is not an item",
			text:     `<items><title>A</title></items>`,
			expected: nil,
		},
		{
			name:             "atom entries when no items",
			text:             `<feed><title>Atom</title><entry><title>A</title></entry></feed>`,
			expectedPreamble: `<feed><title>Atom</title>`,
			expected:         []string{`<title>A</title>`},
		},
		{
			name:             "unterminated item is ignored",
			text:             `<item><title>A</title></item><item><title>B</title>`,
			expectedPreamble: "",
			expected:         []string{`<title>A</title>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preamble, segments := Segment(tt.text)
			assert.Equal(t, tt.expected, segments)
			if tt.expected != nil {
				assert.Equal(t, tt.expectedPreamble, preamble)
			} else {
				assert.Equal(t, tt.text, preamble)
			}
		})
	}
}

func TestInitialScope(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
		images   int
	}{
		{
			name:     "plain items are counted by both matchers",
			text:     `<item><g:image_link>a</g:image_link></item><item><image>b</image></item>`,
			expected: 4,
			images:   2,
		},
		{
			name:     "items with attributes counted once",
			text:     `<item id="1"><media:content url="a"/></item>`,
			expected: 1,
			images:   1,
		},
		{
			name:     "atom entries",
			text:     `<entry><title>A</title></entry><entry xml:lang="en"></entry>`,
			expected: 2,
		},
		{
			name: "empty",
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := InitialScope(tt.text)
			assert.Equal(t, tt.expected, scope.Products)
			assert.Equal(t, tt.images, scope.Images)
		})
	}
}

func TestInitialScopeIsUpperBoundForPlainFeeds(t *testing.T) {
	text := buildFeed(30)

	scope := InitialScope(text)
	_, segments := Segment(text)

	assert.GreaterOrEqual(t, scope.Products, len(segments))
}
