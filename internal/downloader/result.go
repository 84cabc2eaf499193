package downloader

import (
	"fmt"
	"strings"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

const maxSummaryErrors = 3

type Result struct {
	Entries   []models.BundleEntry
	Succeeded int
	Failed    int
	Errors    []string
}

// Summary is a short notification text: counts plus the first few errors.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d downloaded, %d failed", r.Succeeded, r.Failed)

	if len(r.Errors) == 0 {
		return b.String()
	}

	shown := r.Errors
	if len(shown) > maxSummaryErrors {
		shown = shown[:maxSummaryErrors]
	}
	b.WriteString(": ")
	b.WriteString(strings.Join(shown, "; "))

	if rest := len(r.Errors) - len(shown); rest > 0 {
		fmt.Fprintf(&b, " (+%d more)", rest)
	}

	return b.String()
}
