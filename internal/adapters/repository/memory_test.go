package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pricepulse/internal/adapters/repository"
	"github.com/okian/pricepulse/internal/domain/model"
)

func TestMemoryStoreProducts(t *testing.T) {
	Convey("Given an empty in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		Convey("When creating a product", func() {
			p := &model.TrackedProduct{
				Name:     "Noise Cancelling Headphones",
				URL:      "https://www.amazon.in/dp/B0TEST",
				Platform: "Amazon",
				Currency: "INR",
			}
			err := store.CreateProduct(ctx, p)

			Convey("Then it should be assigned an ID and be listable", func() {
				So(err, ShouldBeNil)
				So(p.ID, ShouldNotEqual, uuid.Nil)

				products, err := store.ListProducts(ctx, 0)
				So(err, ShouldBeNil)
				So(len(products), ShouldEqual, 1)
				So(products[0].HasPrice, ShouldBeFalse)
			})

			Convey("And a duplicate URL should be rejected", func() {
				dup := &model.TrackedProduct{URL: p.URL, Platform: "Amazon"}
				So(store.CreateProduct(ctx, dup), ShouldEqual, repository.ErrDuplicateURL)
			})
		})

		Convey("When listing with a cap", func() {
			for i := 0; i < 5; i++ {
				p := &model.TrackedProduct{URL: "https://example.com/" + uuid.NewString()}
				So(store.CreateProduct(ctx, p), ShouldBeNil)
			}

			products, err := store.ListProducts(ctx, 3)

			Convey("Then at most the cap is returned", func() {
				So(err, ShouldBeNil)
				So(len(products), ShouldEqual, 3)
			})
		})

		Convey("When setting the current price", func() {
			p := &model.TrackedProduct{URL: "https://www.amazon.in/dp/B0PRICE"}
			So(store.CreateProduct(ctx, p), ShouldBeNil)

			at := time.Now().UTC()
			err := store.SetCurrentPrice(ctx, p.ID, decimal.RequireFromString("499.99"), at)

			Convey("Then the product reflects the observation", func() {
				So(err, ShouldBeNil)
				got, err := store.GetProduct(ctx, p.ID)
				So(err, ShouldBeNil)
				So(got.HasPrice, ShouldBeTrue)
				So(got.CurrentPrice.String(), ShouldEqual, "499.99")
				So(got.UpdatedAt.Equal(at), ShouldBeTrue)
			})

			Convey("And an unknown product returns ErrNotFound", func() {
				err := store.SetCurrentPrice(ctx, uuid.New(), decimal.NewFromInt(1), at)
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})

		Convey("When recording a price atomically", func() {
			p := &model.TrackedProduct{URL: "https://www.amazon.in/dp/B0ATOMIC"}
			So(store.CreateProduct(ctx, p), ShouldBeNil)

			at := time.Now().UTC()
			obs := model.PriceObservation{
				ProductID:  p.ID,
				Platform:   "Amazon",
				Price:      decimal.RequireFromString("1299.00"),
				Currency:   "INR",
				ObservedAt: at,
			}
			err := store.RecordPrice(ctx, obs)

			Convey("Then both the observation and the product move", func() {
				So(err, ShouldBeNil)
				got, err := store.GetProduct(ctx, p.ID)
				So(err, ShouldBeNil)
				So(got.CurrentPrice.Equal(decimal.NewFromInt(1299)), ShouldBeTrue)
				So(got.UpdatedAt.Equal(at), ShouldBeTrue)

				all, err := store.ObservationsSince(ctx, p.ID, time.Time{})
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 1)
			})

			Convey("And an unknown product records nothing", func() {
				bad := obs
				bad.ProductID = uuid.New()
				So(store.RecordPrice(ctx, bad), ShouldEqual, repository.ErrNotFound)
			})
		})
	})
}

func TestMemoryStoreObservations(t *testing.T) {
	Convey("Given a store with an observed product", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		p := &model.TrackedProduct{URL: "https://www.flipkart.com/item/p/x"}
		So(store.CreateProduct(ctx, p), ShouldBeNil)

		now := time.Now().UTC()
		for i := 0; i < 6; i++ {
			obs := model.PriceObservation{
				ProductID:  p.ID,
				Platform:   "Flipkart",
				Price:      decimal.NewFromInt(int64(1000 + i*10)),
				Currency:   "INR",
				ObservedAt: now.Add(-time.Duration(i) * time.Hour),
			}
			So(store.AppendObservation(ctx, obs), ShouldBeNil)
		}

		Convey("When querying observations since a cutoff", func() {
			out, err := store.ObservationsSince(ctx, p.ID, now.Add(-150*time.Minute))

			Convey("Then only newer observations are returned, newest first", func() {
				So(err, ShouldBeNil)
				So(len(out), ShouldEqual, 3)
				So(out[0].ObservedAt.After(out[1].ObservedAt), ShouldBeTrue)
				So(out[1].ObservedAt.After(out[2].ObservedAt), ShouldBeTrue)
			})
		})

		Convey("When querying the recent N observations", func() {
			out, err := store.RecentObservations(ctx, p.ID, 3, now.Add(-24*time.Hour))

			Convey("Then the count is capped", func() {
				So(err, ShouldBeNil)
				So(len(out), ShouldEqual, 3)
				So(out[0].Price.String(), ShouldEqual, "1000")
			})
		})

		Convey("When appending for an unknown product", func() {
			err := store.AppendObservation(ctx, model.PriceObservation{ProductID: uuid.New()})

			Convey("Then it should fail with ErrNotFound", func() {
				So(err, ShouldEqual, repository.ErrNotFound)
			})
		})
	})
}

func TestMemoryStoreAlerts(t *testing.T) {
	Convey("Given a store with a product and alerts", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		p := &model.TrackedProduct{URL: "https://www.amazon.in/dp/B0ALERT"}
		So(store.CreateProduct(ctx, p), ShouldBeNil)

		hit := &model.PriceAlert{
			ProductID:   p.ID,
			Email:       "buyer@example.com",
			TargetPrice: decimal.NewFromInt(1000),
		}
		miss := &model.PriceAlert{
			ProductID:   p.ID,
			Email:       "buyer@example.com",
			TargetPrice: decimal.NewFromInt(500),
		}
		So(store.CreateAlert(ctx, hit), ShouldBeNil)
		So(store.CreateAlert(ctx, miss), ShouldBeNil)

		Convey("When counting untriggered alerts", func() {
			count, err := store.CountUntriggeredAlerts(ctx, p.ID)

			Convey("Then all alerts are counted", func() {
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 2)
			})
		})

		Convey("When querying alerts satisfied by a price", func() {
			matches, err := store.UntriggeredAlertsAtOrAbove(ctx, p.ID, decimal.NewFromInt(950))

			Convey("Then only the alert with target >= price matches", func() {
				So(err, ShouldBeNil)
				So(len(matches), ShouldEqual, 1)
				So(matches[0].ID, ShouldEqual, hit.ID)
			})
		})

		Convey("When marking an alert triggered twice", func() {
			at := time.Now().UTC()
			price := decimal.NewFromInt(950)

			first, err := store.MarkAlertTriggered(ctx, hit.ID, price, at)
			So(err, ShouldBeNil)

			second, err := store.MarkAlertTriggered(ctx, hit.ID, decimal.NewFromInt(900), at.Add(time.Hour))
			So(err, ShouldBeNil)

			Convey("Then only the first call transitions it", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
			})

			Convey("And the triggered fields are written exactly once", func() {
				got, err := store.GetAlert(ctx, hit.ID)
				So(err, ShouldBeNil)
				So(got.Triggered, ShouldBeTrue)
				So(got.TriggeredPrice.String(), ShouldEqual, "950")
				So(got.TriggeredAt.Equal(at), ShouldBeTrue)
			})

			Convey("And it no longer appears in the untriggered query", func() {
				matches, err := store.UntriggeredAlertsAtOrAbove(ctx, p.ID, decimal.NewFromInt(900))
				So(err, ShouldBeNil)
				So(len(matches), ShouldEqual, 0)
			})
		})
	})
}
