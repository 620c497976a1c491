// Package fetch turns a product URL into a price observation. Each supported
// platform has its own scraping strategy behind the Fetcher interface; the
// Registry selects a strategy by platform name.
package fetch

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Status tags the outcome of a fetch so the retry controller can decide
// without inspecting error types.
type Status int

const (
	// StatusOK means a valid price was extracted.
	StatusOK Status = iota
	// StatusRetryable means a transient failure: network error, site block,
	// selector miss. Retrying may succeed.
	StatusRetryable
	// StatusFatal means the page was fetched but the data is unusable
	// (non-positive or unparseable price). Retrying cannot fix it.
	StatusFatal
)

// String returns the tag name for logging.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Result is the tagged outcome of one fetch attempt.
type Result struct {
	Status   Status
	Price    decimal.Decimal
	Currency string
	Name     string // product title when the page exposes one
	Reason   string
	Err      error
}

// Ok builds a successful result.
func Ok(price decimal.Decimal, currency, name string) Result {
	return Result{Status: StatusOK, Price: price, Currency: currency, Name: name}
}

// Retryable builds a transient-failure result.
func Retryable(reason string, err error) Result {
	return Result{Status: StatusRetryable, Reason: reason, Err: err}
}

// Fatal builds a non-retryable result.
func Fatal(reason string) Result {
	return Result{Status: StatusFatal, Reason: reason}
}

// Fetcher extracts the current price for a product URL on one platform.
// Implementations must be side-effect free with respect to scheduler state.
type Fetcher interface {
	// Platform returns the platform label recorded on observations.
	Platform() string

	// Fetch retrieves the current price for url.
	Fetch(ctx context.Context, rawURL string) Result
}

// Registry maps platform names to fetch strategies.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry creates a registry from the given fetchers.
func NewRegistry(fetchers ...Fetcher) *Registry {
	r := &Registry{fetchers: make(map[string]Fetcher)}
	for _, f := range fetchers {
		r.Register(f)
	}
	return r
}

// Register adds or replaces the strategy for a platform.
func (r *Registry) Register(f Fetcher) {
	r.fetchers[strings.ToLower(f.Platform())] = f
}

// Lookup returns the strategy for a platform name.
func (r *Registry) Lookup(platform string) (Fetcher, bool) {
	f, ok := r.fetchers[strings.ToLower(platform)]
	return f, ok
}

// Platforms returns the registered platform labels.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.fetchers))
	for _, f := range r.fetchers {
		out = append(out, f.Platform())
	}
	return out
}

// PlatformForURL infers the platform label from a product URL host.
// Unknown hosts default to Amazon, matching the original tracker's bias.
func PlatformForURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PlatformAmazon
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "flipkart"):
		return PlatformFlipkart
	case strings.Contains(host, "amazon"):
		return PlatformAmazon
	default:
		return PlatformAmazon
	}
}

// Platform labels recorded on observations.
const (
	PlatformAmazon   = "Amazon"
	PlatformFlipkart = "Flipkart"
)

var priceDigits = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)

// ParsePrice extracts a decimal price from scraped text such as
// "₹1,29,900.00" or "$499.99". The first numeric run wins; currency symbols
// and grouping commas are discarded.
func ParsePrice(text string) (decimal.Decimal, error) {
	raw := priceDigits.FindString(text)
	if raw == "" {
		return decimal.Zero, ErrPriceNotFound
	}
	raw = strings.ReplaceAll(raw, ",", "")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrPriceNotFound
	}
	return d, nil
}
