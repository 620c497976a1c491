package priority_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pricepulse/internal/domain/model"
	"github.com/okian/pricepulse/internal/domain/priority"
	"github.com/okian/pricepulse/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// fakeHistory serves canned observations and alert counts.
type fakeHistory struct {
	observations []model.PriceObservation
	alertCount   int
	err          error
}

func (f *fakeHistory) ObservationsSince(_ context.Context, _ uuid.UUID, since time.Time) ([]model.PriceObservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.PriceObservation
	for _, o := range f.observations {
		if !o.ObservedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeHistory) RecentObservations(ctx context.Context, id uuid.UUID, n int, since time.Time) ([]model.PriceObservation, error) {
	out, err := f.ObservationsSince(ctx, id, since)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeHistory) CountUntriggeredAlerts(context.Context, uuid.UUID) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.alertCount, nil
}

func observationsAt(now time.Time, prices ...float64) []model.PriceObservation {
	out := make([]model.PriceObservation, len(prices))
	for i, p := range prices {
		out[i] = model.PriceObservation{
			Price:      decimal.NewFromFloat(p),
			ObservedAt: now.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestScorerTimeFactor(t *testing.T) {
	Convey("Given a scorer over an empty history", t, func() {
		ctx := context.Background()
		now := time.Now().UTC()
		scorer := priority.NewScorer(&fakeHistory{})

		Convey("When scoring a product with no history and no alerts", func() {
			product := model.TrackedProduct{
				ID:        uuid.New(),
				UpdatedAt: now.Add(-10 * time.Hour),
			}
			score := scorer.Score(ctx, product, now)

			Convey("Then only the time factor contributes", func() {
				So(score.Volatility, ShouldEqual, 0)
				So(score.AlertFactor, ShouldEqual, 0)
				So(score.RecentChange, ShouldEqual, 0)
				So(score.Total, ShouldEqual, score.TimeFactor)
			})

			Convey("And the time factor reflects staleness times the weight", func() {
				// 10 hours since update, 1 hour baseline, weight 2.5
				So(score.TimeFactor, ShouldAlmostEqual, 25.0, 0.01)
			})
		})

		Convey("When comparing a stale product to a fresh one", func() {
			stale := scorer.Score(ctx, model.TrackedProduct{
				ID: uuid.New(), UpdatedAt: now.Add(-10 * time.Hour),
			}, now)
			fresh := scorer.Score(ctx, model.TrackedProduct{
				ID: uuid.New(), UpdatedAt: now.Add(-5 * time.Minute),
			}, now)

			Convey("Then the stale product outranks the fresh one", func() {
				So(stale.Total, ShouldBeGreaterThan, fresh.Total)
				So(fresh.TimeFactor, ShouldAlmostEqual, 0.0833*2.5, 0.01)
			})
		})

		Convey("When the product was updated in the future", func() {
			score := scorer.Score(ctx, model.TrackedProduct{
				ID: uuid.New(), UpdatedAt: now.Add(time.Hour),
			}, now)

			Convey("Then the time factor clamps to zero", func() {
				So(score.TimeFactor, ShouldEqual, 0)
			})
		})
	})
}

func TestScorerVolatility(t *testing.T) {
	Convey("Given observation histories of varying stability", t, func() {
		ctx := context.Background()
		now := time.Now().UTC()
		product := model.TrackedProduct{ID: uuid.New(), UpdatedAt: now}

		Convey("When the price never moves", func() {
			scorer := priority.NewScorer(&fakeHistory{
				observations: observationsAt(now, 100, 100, 100, 100, 100),
			})
			score := scorer.Score(ctx, product, now)

			Convey("Then volatility is zero", func() {
				So(score.Volatility, ShouldEqual, 0)
			})
		})

		Convey("When the price swings", func() {
			scorer := priority.NewScorer(&fakeHistory{
				observations: observationsAt(now, 100, 120, 80, 110, 90),
			})
			score := scorer.Score(ctx, product, now)

			Convey("Then volatility is positive and capped at the max", func() {
				So(score.Volatility, ShouldBeGreaterThan, 0)
				So(score.Volatility, ShouldBeLessThanOrEqualTo, 10)
			})
		})

		Convey("When there are too few samples", func() {
			scorer := priority.NewScorer(&fakeHistory{
				observations: observationsAt(now, 100, 200, 50),
			})
			score := scorer.Score(ctx, product, now)

			Convey("Then volatility is zero", func() {
				So(score.Volatility, ShouldEqual, 0)
			})
		})

		Convey("When wild swings would overflow the cap", func() {
			scorer := priority.NewScorer(&fakeHistory{
				observations: observationsAt(now, 10, 1000, 10, 1000, 10),
			})
			score := scorer.Score(ctx, product, now)

			Convey("Then volatility saturates at the configured max", func() {
				So(score.Volatility, ShouldEqual, 10)
			})
		})
	})
}

func TestScorerAlertAndRecentChange(t *testing.T) {
	Convey("Given a scorer with alerts and recent movement", t, func() {
		ctx := context.Background()
		now := time.Now().UTC()
		product := model.TrackedProduct{ID: uuid.New(), UpdatedAt: now}

		Convey("When the product has waiting alerts", func() {
			scorer := priority.NewScorer(&fakeHistory{alertCount: 3})
			score := scorer.Score(ctx, product, now)

			Convey("Then the fixed alert bonus applies once", func() {
				So(score.AlertFactor, ShouldEqual, 5)
			})
		})

		Convey("When recent observations moved more than the threshold", func() {
			scorer := priority.NewScorer(&fakeHistory{
				// 1000 -> 900 is a 10% range, over the 5% default threshold.
				observations: observationsAt(now, 1000, 950, 900),
			})
			score := scorer.Score(ctx, product, now)

			Convey("Then the recent-change bonus applies", func() {
				So(score.RecentChange, ShouldEqual, 3)
			})
		})

		Convey("When recent observations barely moved", func() {
			scorer := priority.NewScorer(&fakeHistory{
				observations: observationsAt(now, 1000, 995, 990),
			})
			score := scorer.Score(ctx, product, now)

			Convey("Then no recent-change bonus applies", func() {
				So(score.RecentChange, ShouldEqual, 0)
			})
		})
	})
}

func TestScorerDegradation(t *testing.T) {
	Convey("Given a history that fails every read", t, func() {
		ctx := context.Background()
		now := time.Now().UTC()
		scorer := priority.NewScorer(&fakeHistory{err: errors.New("connection reset")})

		Convey("When scoring a stale product", func() {
			product := model.TrackedProduct{ID: uuid.New(), UpdatedAt: now.Add(-2 * time.Hour)}
			score := scorer.Score(ctx, product, now)

			Convey("Then the score degrades to the time factor alone", func() {
				So(score.Volatility, ShouldEqual, 0)
				So(score.AlertFactor, ShouldEqual, 0)
				So(score.RecentChange, ShouldEqual, 0)
				So(score.Total, ShouldEqual, score.TimeFactor)
				So(score.TimeFactor, ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestScorerOptions(t *testing.T) {
	Convey("Given a scorer with custom weights", t, func() {
		ctx := context.Background()
		now := time.Now().UTC()
		scorer := priority.NewScorer(&fakeHistory{alertCount: 1},
			priority.WithBaselineRefresh(30*time.Minute),
			priority.WithTimeWeight(1),
			priority.WithAlertWeight(7),
		)

		Convey("When scoring", func() {
			product := model.TrackedProduct{ID: uuid.New(), UpdatedAt: now.Add(-time.Hour)}
			score := scorer.Score(ctx, product, now)

			Convey("Then the configured weights are used", func() {
				// 1 hour staleness over a 30 minute baseline at weight 1.
				So(score.TimeFactor, ShouldAlmostEqual, 2.0, 0.01)
				So(score.AlertFactor, ShouldEqual, 7)
			})
		})
	})
}
