package fetch

import "errors"

// Sentinel kinds for fetch errors.
var (
	ErrPriceNotFound   = errors.New("price not found on page")
	ErrUnknownPlatform = errors.New("no fetcher registered for platform")
)
