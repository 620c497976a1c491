// Package priority computes update-urgency scores for tracked products.
package priority

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pricepulse/internal/domain/model"
	"github.com/okian/pricepulse/pkg/logger"
)

// Default scoring configuration constants.
const (
	defaultBaselineRefresh       = time.Hour
	defaultTimeWeight            = 2.5
	defaultVolatilityWindow      = 7 * 24 * time.Hour
	defaultVolatilityMinSamples  = 5
	defaultVolatilityScale       = 100.0
	defaultVolatilityMax         = 10.0
	defaultAlertWeight           = 5.0
	defaultRecentChangeSamples   = 3
	defaultRecentChangeWindow    = 48 * time.Hour
	defaultRecentChangeThreshold = 0.05
	defaultRecentChangeWeight    = 3.0
)

// History abstracts the read-only store access scoring needs.
type History interface {
	ObservationsSince(ctx context.Context, productID uuid.UUID, since time.Time) ([]model.PriceObservation, error)
	RecentObservations(ctx context.Context, productID uuid.UUID, n int, since time.Time) ([]model.PriceObservation, error)
	CountUntriggeredAlerts(ctx context.Context, productID uuid.UUID) (int, error)
}

// Scorer computes a PriorityScore from product state and observation
// history. Scoring one product must never abort a batch: every factor
// degrades to zero on failure, so the total is always at least the time
// factor.
type Scorer struct {
	history History

	baselineRefresh       time.Duration
	timeWeight            float64
	volatilityWindow      time.Duration
	volatilityMinSamples  int
	volatilityScale       float64
	volatilityMax         float64
	alertWeight           float64
	recentChangeSamples   int
	recentChangeWindow    time.Duration
	recentChangeThreshold float64
	recentChangeWeight    float64

	log logger.Logger
}

// NewScorer creates a scorer reading history through the given interface.
func NewScorer(history History, opts ...Option) *Scorer {
	s := &Scorer{
		history:               history,
		baselineRefresh:       defaultBaselineRefresh,
		timeWeight:            defaultTimeWeight,
		volatilityWindow:      defaultVolatilityWindow,
		volatilityMinSamples:  defaultVolatilityMinSamples,
		volatilityScale:       defaultVolatilityScale,
		volatilityMax:         defaultVolatilityMax,
		alertWeight:           defaultAlertWeight,
		recentChangeSamples:   defaultRecentChangeSamples,
		recentChangeWindow:    defaultRecentChangeWindow,
		recentChangeThreshold: defaultRecentChangeThreshold,
		recentChangeWeight:    defaultRecentChangeWeight,
		log:                   logger.Get().Named("priority"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score computes the four priority factors for one product at the given
// instant. The result is ephemeral: computed fresh each cycle, discarded
// after ordering.
func (s *Scorer) Score(ctx context.Context, product model.TrackedProduct, now time.Time) model.PriorityScore {
	score := model.PriorityScore{ProductID: product.ID}

	score.TimeFactor = s.timeFactor(product, now)
	score.Volatility = s.volatilityFactor(ctx, product.ID, now)
	score.AlertFactor = s.alertFactor(ctx, product.ID)
	score.RecentChange = s.recentChangeFactor(ctx, product.ID, now)

	score.Total = score.TimeFactor + score.Volatility + score.AlertFactor + score.RecentChange
	return score
}

// timeFactor grows linearly with staleness: hours since the last successful
// update, normalized by the baseline refresh interval.
func (s *Scorer) timeFactor(product model.TrackedProduct, now time.Time) float64 {
	since := now.Sub(product.UpdatedAt)
	if since < 0 {
		return 0
	}
	return since.Hours() / s.baselineRefresh.Hours() * s.timeWeight
}

// volatilityFactor scales the coefficient of variation of the trailing
// window to [0, volatilityMax]. Too few samples or a zero mean yield 0.
func (s *Scorer) volatilityFactor(ctx context.Context, productID uuid.UUID, now time.Time) float64 {
	obs, err := s.history.ObservationsSince(ctx, productID, now.Add(-s.volatilityWindow))
	if err != nil {
		s.log.Warn(ctx, "volatility lookup failed, factor degraded to 0",
			logger.Stringer("product_id", productID),
			logger.Error(err),
		)
		return 0
	}
	if len(obs) < s.volatilityMinSamples {
		return 0
	}

	prices := make([]float64, len(obs))
	var sum float64
	for i, o := range obs {
		prices[i] = o.Price.InexactFloat64()
		sum += prices[i]
	}
	mean := sum / float64(len(prices))
	if mean == 0 {
		return 0
	}

	var sq float64
	for _, p := range prices {
		d := p - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(prices)))

	cv := stddev / mean
	return math.Min(cv*s.volatilityScale, s.volatilityMax)
}

// alertFactor grants a fixed bonus when at least one alert is waiting.
func (s *Scorer) alertFactor(ctx context.Context, productID uuid.UUID) float64 {
	count, err := s.history.CountUntriggeredAlerts(ctx, productID)
	if err != nil {
		s.log.Warn(ctx, "alert count failed, factor degraded to 0",
			logger.Stringer("product_id", productID),
			logger.Error(err),
		)
		return 0
	}
	if count > 0 {
		return s.alertWeight
	}
	return 0
}

// recentChangeFactor grants a fixed bonus when the relative range of the
// most recent observations exceeds the movement threshold.
func (s *Scorer) recentChangeFactor(ctx context.Context, productID uuid.UUID, now time.Time) float64 {
	obs, err := s.history.RecentObservations(ctx, productID, s.recentChangeSamples, now.Add(-s.recentChangeWindow))
	if err != nil {
		s.log.Warn(ctx, "recent change lookup failed, factor degraded to 0",
			logger.Stringer("product_id", productID),
			logger.Error(err),
		)
		return 0
	}
	if len(obs) < 2 {
		return 0
	}

	maxPrice := obs[0].Price.InexactFloat64()
	minPrice := maxPrice
	for _, o := range obs[1:] {
		p := o.Price.InexactFloat64()
		maxPrice = math.Max(maxPrice, p)
		minPrice = math.Min(minPrice, p)
	}
	if maxPrice <= 0 {
		return 0
	}
	if (maxPrice-minPrice)/maxPrice > s.recentChangeThreshold {
		return s.recentChangeWeight
	}
	return 0
}
