package fetcher

import (
	"errors"
	"fmt"
)

var (
	ErrFetchFailed  = errors.New("failed to fetch feed from the URL and all proxy services; try again later or paste the feed content directly")
	ErrHTMLResponse = errors.New("received HTML instead of XML")
	ErrBadStatus    = errors.New("unexpected response status")
	ErrInvalidURL   = errors.New("invalid feed URL")
	ErrBodyTooLarge = errors.New("feed exceeds size limit")
)

// FetchError is the single consolidated failure returned once every strategy
// is exhausted. Per-attempt errors are only logged; Last keeps the final one
// reachable through errors.Is and errors.As.
type FetchError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s (%d attempts)", ErrFetchFailed.Error(), e.Attempts)
}

func (e *FetchError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Last}
}
