// Package priority computes update-urgency scores for tracked products.
package priority

import (
	"time"

	"github.com/okian/pricepulse/pkg/logger"
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithBaselineRefresh sets the staleness normalization interval.
func WithBaselineRefresh(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.baselineRefresh = d
		}
	}
}

// WithTimeWeight sets the staleness factor weight.
func WithTimeWeight(w float64) Option {
	return func(s *Scorer) {
		if w > 0 {
			s.timeWeight = w
		}
	}
}

// WithVolatility configures the trailing window, minimum sample count,
// scale, and cap of the volatility factor.
func WithVolatility(window time.Duration, minSamples int, scale, maxFactor float64) Option {
	return func(s *Scorer) {
		if window > 0 {
			s.volatilityWindow = window
		}
		if minSamples > 1 {
			s.volatilityMinSamples = minSamples
		}
		if scale > 0 {
			s.volatilityScale = scale
		}
		if maxFactor > 0 {
			s.volatilityMax = maxFactor
		}
	}
}

// WithAlertWeight sets the bonus for products with waiting alerts.
func WithAlertWeight(w float64) Option {
	return func(s *Scorer) {
		if w > 0 {
			s.alertWeight = w
		}
	}
}

// WithRecentChange configures the sample count, trailing window, relative
// threshold, and bonus of the recent-change factor.
func WithRecentChange(samples int, window time.Duration, threshold, weight float64) Option {
	return func(s *Scorer) {
		if samples > 1 {
			s.recentChangeSamples = samples
		}
		if window > 0 {
			s.recentChangeWindow = window
		}
		if threshold > 0 {
			s.recentChangeThreshold = threshold
		}
		if weight > 0 {
			s.recentChangeWeight = weight
		}
	}
}

// WithLogger sets a custom logger for the scorer.
func WithLogger(log logger.Logger) Option {
	return func(s *Scorer) {
		if log != nil {
			s.log = log
		}
	}
}
