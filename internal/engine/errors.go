package engine

import "errors"

var (
	// ErrUnsupportedSite means the resolver found no catalog entry for the
	// URL's host. Terminal and non-retryable; no fetch is attempted.
	ErrUnsupportedSite = errors.New("unsupported site")

	// ErrProductNotFound means every strategy tier failed to produce a record
	// with a title or price for a product URL.
	ErrProductNotFound = errors.New("no product data found")
)
