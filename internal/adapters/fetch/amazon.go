package fetch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/okian/pricepulse/pkg/logger"
	"github.com/okian/pricepulse/pkg/metrics"
)

// AmazonFetcher scrapes product pages on amazon.* domains.
type AmazonFetcher struct {
	c   *colly.Collector
	log logger.Logger

	// One visit at a time; the collector callbacks write into cur.
	mu  sync.Mutex
	cur *pageResult
}

type pageResult struct {
	priceText string
	name      string
	err       error
}

// NewAmazonFetcher builds the Amazon strategy with its own rate-limited
// collector.
func NewAmazonFetcher(opts ...CollectorOption) *AmazonFetcher {
	f := &AmazonFetcher{log: logger.Get().Named("fetch").Named("amazon")}
	f.c = newCollector(opts...)

	f.c.OnHTML("span.a-price span.a-offscreen", func(e *colly.HTMLElement) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.cur != nil && f.cur.priceText == "" {
			f.cur.priceText = strings.TrimSpace(e.Text)
		}
	})
	// Fallback for the older price block layout.
	f.c.OnHTML("#priceblock_ourprice, #priceblock_dealprice", func(e *colly.HTMLElement) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.cur != nil && f.cur.priceText == "" {
			f.cur.priceText = strings.TrimSpace(e.Text)
		}
	})
	f.c.OnHTML("#productTitle", func(e *colly.HTMLElement) {
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
func (f *AmazonFetcher) Platform() string { return PlatformAmazon }

// Fetch scrapes one Amazon product page.
func (f *AmazonFetcher) Fetch(ctx context.Context, rawURL string) Result {
	return scrapePage(ctx, f.c, &f.mu, &f.cur, rawURL, PlatformAmazon, "INR", f.log)
}

// scrapePage runs one synchronous colly visit and converts the captured page
// state into a tagged Result. Shared by the platform fetchers.
func scrapePage(ctx context.Context, c *colly.Collector, mu *sync.Mutex, slot **pageResult, rawURL, platform, currency string, log logger.Logger) Result {
	if err := ctx.Err(); err != nil {
		return Retryable("context done before fetch", err)
	}

	mu.Lock()
	*slot = &pageResult{}
	mu.Unlock()

	metrics.RecordFetchAttempt(platform)
	start := time.Now()
	visitErr := c.Visit(rawURL)
	c.Wait()
	metrics.RecordFetchLatency(float64(time.Since(start).Milliseconds()))

	mu.Lock()
	res := **slot
	*slot = nil
	mu.Unlock()

	if visitErr != nil {
		metrics.RecordFetchFailure(platform)
		return Retryable("visit failed", visitErr)
	}
	if res.err != nil {
		metrics.RecordFetchFailure(platform)
		return Retryable("request failed", res.err)
	}
	if res.priceText == "" {
		metrics.RecordFetchFailure(platform)
		return Retryable("price selector missed", ErrPriceNotFound)
	}

	price, err := ParsePrice(res.priceText)
	if err != nil {
		metrics.RecordFetchFailure(platform)
		return Retryable("price text unparseable: "+res.priceText, err)
	}
	if !price.IsPositive() {
		// The page answered with garbage; a retry returns the same page.
		metrics.RecordInvalidPrice()
		return Fatal("non-positive price: " + price.String())
	}

	log.Debug(ctx, "fetched price",
		logger.String("url", rawURL),
		logger.String("price", price.String()),
	)
	return Ok(price, currency, res.name)
}
