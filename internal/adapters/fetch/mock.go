package fetch

import (
	"context"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"
)

// MockFetcher fabricates prices without touching the network. It exists for
// offline development only and is registered solely when allow_mock_data is
// set; production history must never contain synthetic observations.
type MockFetcher struct {
	platform string

	mu   sync.Mutex
	rng  *rand.Rand
	last map[string]decimal.Decimal
}

// NewMockFetcher builds a deterministic synthetic fetcher for a platform.
func NewMockFetcher(platform string, seed int64) *MockFetcher {
	return &MockFetcher{
		platform: platform,
		rng:      rand.New(rand.NewSource(seed)), //nolint:gosec // synthetic dev data, not crypto
		last:     make(map[string]decimal.Decimal),
	}
}

// Platform returns the observation label.
func (f *MockFetcher) Platform() string { return f.platform }

// Fetch fabricates a price: a fresh URL gets a value in [100, 1000), repeat
// visits drift at most ±5% from the previous value so history charts look
// plausible.
func (f *MockFetcher) Fetch(_ context.Context, rawURL string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, seen := f.last[rawURL]
	var next decimal.Decimal
	if !seen {
		next = decimal.NewFromInt(int64(100 + f.rng.Intn(900)))
	} else {
		drift := f.rng.Float64()*0.1 - 0.05
		next = prev.Mul(decimal.NewFromFloat(1 + drift)).Round(2)
		if !next.IsPositive() {
			next = prev
		}
	}
	f.last[rawURL] = next
	return Ok(next, "INR", "")
}
