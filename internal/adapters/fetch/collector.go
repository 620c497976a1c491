package fetch

import (
	"time"

	"github.com/gocolly/colly/v2"
)

// Defaults for scraping collectors.
const (
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultFetchTimeout = 30 * time.Second
	defaultDelay        = 1 * time.Second
	defaultRandomDelay  = 1 * time.Second
)

// collectorConfig carries shared collector settings.
type collectorConfig struct {
	userAgent   string
	timeout     time.Duration
	delay       time.Duration
	randomDelay time.Duration
}

// CollectorOption configures the colly collector behind a fetcher.
type CollectorOption func(*collectorConfig)

// WithUserAgent overrides the browser-like user agent.
func WithUserAgent(ua string) CollectorOption {
	return func(c *collectorConfig) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout bounds one page fetch.
func WithTimeout(d time.Duration) CollectorOption {
	return func(c *collectorConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRequestDelay sets the fixed and random per-domain delay between
// requests, to avoid hammering the scraped site.
func WithRequestDelay(delay, randomDelay time.Duration) CollectorOption {
	return func(c *collectorConfig) {
		if delay >= 0 {
			c.delay = delay
		}
		if randomDelay >= 0 {
			c.randomDelay = randomDelay
		}
	}
}

// newCollector builds a colly collector with the shared scraping settings.
// Revisits must be allowed: the same product URL is fetched every cycle.
func newCollector(opts ...CollectorOption) *colly.Collector {
	cfg := &collectorConfig{
		userAgent:   defaultUserAgent,
		timeout:     defaultFetchTimeout,
		delay:       defaultDelay,
		randomDelay: defaultRandomDelay,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := colly.NewCollector(
		colly.UserAgent(cfg.userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(cfg.timeout)

	// LimitRule can only fail on a bad glob; "*" is fine.
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.delay,
		RandomDelay: cfg.randomDelay,
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	})

	return c
}
