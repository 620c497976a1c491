package fetch

import (
	"context"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"

	"github.com/okian/pricepulse/pkg/logger"
)

// FlipkartFetcher scrapes product pages on flipkart.com.
type FlipkartFetcher struct {
	c   *colly.Collector
	log logger.Logger

	mu  sync.Mutex
	cur *pageResult
}

// NewFlipkartFetcher builds the Flipkart strategy with its own rate-limited
// collector.
func NewFlipkartFetcher(opts ...CollectorOption) *FlipkartFetcher {
	f := &FlipkartFetcher{log: logger.Get().Named("fetch").Named("flipkart")}
	f.c = newCollector(opts...)

	// Flipkart rotates obfuscated class names; try the known generations in
	// order and keep the first hit.
	f.c.OnHTML("div._30jeq3._16Jk6d, div._30jeq3, div.Nx9bqj", func(e *colly.HTMLElement) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.cur != nil && f.cur.priceText == "" {
			f.cur.priceText = strings.TrimSpace(e.Text)
		}
	})
	f.c.OnHTML("span.B_NuCI, span.VU-ZEz", func(e *colly.HTMLElement) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.cur != nil {
			f.cur.name = strings.TrimSpace(e.Text)
		}
	})
	f.c.OnError(func(_ *colly.Response, err error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.cur != nil {
			f.cur.err = err
		}
	})

	return f
}

// Platform returns the observation label.
func (f *FlipkartFetcher) Platform() string { return PlatformFlipkart }

// Fetch scrapes one Flipkart product page.
func (f *FlipkartFetcher) Fetch(ctx context.Context, rawURL string) Result {
	return scrapePage(ctx, f.c, &f.mu, &f.cur, rawURL, PlatformFlipkart, "INR", f.log)
}
