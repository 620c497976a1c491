// Package match discovers the same logical product on other platforms so a
// cycle can record comparison prices next to the primary observation.
package match

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/okian/pricepulse/internal/domain/model"
	"github.com/okian/pricepulse/pkg/logger"
)

// Match is one discovered listing for a product on another platform.
type Match struct {
	Platform string
	URL      string
}

// Matcher searches other platforms for listings of a tracked product.
type Matcher interface {
	// FindMatches returns candidate listings on platforms other than the
	// product's native one. An empty slice is a normal outcome.
	FindMatches(ctx context.Context, product model.TrackedProduct) []Match
}

// platformSearch describes how one platform is queried.
type platformSearch struct {
	platform   string
	searchURL  string // fmt pattern taking the url-escaped query
	linkSelect string
	baseURL    string
}

// SearchMatcher queries platform search pages and takes the first result
// link per platform.
type SearchMatcher struct {
	client    *http.Client
	userAgent string
	targets   []platformSearch
	log       logger.Logger
}

// Option configures the SearchMatcher.
type Option func(*SearchMatcher)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(m *SearchMatcher) {
		if c != nil {
			m.client = c
		}
	}
}

// WithUserAgent sets the user agent sent on search requests.
func WithUserAgent(ua string) Option {
	return func(m *SearchMatcher) {
		if ua != "" {
			m.userAgent = ua
		}
	}
}

// NewSearchMatcher builds a matcher covering the supported platforms.
func NewSearchMatcher(opts ...Option) *SearchMatcher {
	m := &SearchMatcher{
		client:    &http.Client{Timeout: 15 * time.Second},
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		targets: []platformSearch{
			{
				platform:   "Amazon",
				searchURL:  "https://www.amazon.in/s?k=%s",
				linkSelect: `div.s-result-item[data-asin] h2 a`,
				baseURL:    "https://www.amazon.in",
			},
			{
				platform:   "Flipkart",
				searchURL:  "https://www.flipkart.com/search?q=%s",
				linkSelect: `a._1fQZEK, a.CGtC98, a.s1Q9rs`,
				baseURL:    "https://www.flipkart.com",
			},
		},
		log: logger.Get().Named("match"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindMatches searches every platform except the product's native one.
// Per-platform failures are logged and skipped.
func (m *SearchMatcher) FindMatches(ctx context.Context, product model.TrackedProduct) []Match {
	query := SearchQuery(product.Name)
	if query == "" {
		m.log.Debug(ctx, "no product name to search with",
			logger.Stringer("product_id", product.ID))
		return nil
	}

	var out []Match
	for _, target := range m.targets {
		if strings.EqualFold(target.platform, product.Platform) {
			continue
		}
		link, err := m.firstResult(ctx, target, query)
		if err != nil {
			m.log.Warn(ctx, "platform search failed",
				logger.String("platform", target.platform),
				logger.Error(err),
			)
			continue
		}
		if link == "" {
			continue
		}
		out = append(out, Match{Platform: target.platform, URL: link})
	}
	return out
}

// firstResult fetches the platform's search page and returns the first
// product link, or "" when the page has none.
func (m *SearchMatcher) firstResult(ctx context.Context, target platformSearch, query string) (string, error) {
	searchURL := fmt.Sprintf(target.searchURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse search page: %w", err)
	}

	href, ok := doc.Find(target.linkSelect).First().Attr("href")
	if !ok {
		return "", nil
	}
	if strings.HasPrefix(href, "/") {
		href = target.baseURL + href
	}
	return href, nil
}

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	nonWord       = regexp.MustCompile(`[^\w\s]`)
	spaces        = regexp.MustCompile(`\s+`)
)

// SearchQuery reduces a listing title to a search query: parentheticals and
// punctuation go, whitespace collapses, and only the leading tokens are kept
// since long tails of marketing copy hurt search precision.
func SearchQuery(name string) string {
	const maxTokens = 8

	s := strings.ToLower(name)
	s = parenthetical.ReplaceAllString(s, " ")
	s = nonWord.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	tokens := strings.Fields(s)
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return strings.Join(tokens, " ")
}
