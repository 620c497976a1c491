package notify_test

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pricepulse/internal/adapters/notify"
	"github.com/okian/pricepulse/internal/domain/model"
	"github.com/okian/pricepulse/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestEmailNotifier(t *testing.T) {
	Convey("Given an email notifier with a fake transport", t, func() {
		ctx := context.Background()
		product := model.TrackedProduct{
			Name:     "Sony WH-1000XM4",
			URL:      "https://www.amazon.in/dp/B0TEST",
			Currency: "INR",
		}
		price := decimal.RequireFromString("19990.00")

		Convey("When the transport succeeds", func() {
			var gotTo []string
			var gotMsg []byte
			n := notify.NewEmailNotifier("smtp.example.com", 587, "user", "pass", "alerts@example.com",
				notify.WithSendFunc(func(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
					gotTo = to
					gotMsg = msg
					return nil
				}),
			)

			err := n.SendPriceDropEmail(ctx, "buyer@example.com", product, price)

			Convey("Then the email is delivered once with the price in the body", func() {
				So(err, ShouldBeNil)
				So(gotTo, ShouldResemble, []string{"buyer@example.com"})
				So(string(gotMsg), ShouldContainSubstring, "19990.00 INR")
				So(string(gotMsg), ShouldContainSubstring, product.URL)
			})
		})

		Convey("When the transport fails transiently then recovers", func() {
			calls := 0
			var slept []time.Duration
			n := notify.NewEmailNotifier("smtp.example.com", 587, "", "", "alerts@example.com",
				notify.WithSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
					calls++
					if calls < 3 {
						return errors.New("451 temporary failure")
					}
					return nil
				}),
				notify.WithSleepFunc(func(d time.Duration) { slept = append(slept, d) }),
				notify.WithRetry(3, 10*time.Millisecond),
			)

			err := n.SendPriceDropEmail(ctx, "buyer@example.com", product, price)

			Convey("Then it retries with doubling delay and succeeds", func() {
				So(err, ShouldBeNil)
				So(calls, ShouldEqual, 3)
				So(slept, ShouldResemble, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond})
			})
		})

		Convey("When every attempt fails", func() {
			calls := 0
			n := notify.NewEmailNotifier("smtp.example.com", 587, "", "", "alerts@example.com",
				notify.WithSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
					calls++
					return errors.New("connection refused")
				}),
				notify.WithSleepFunc(func(time.Duration) {}),
				notify.WithRetry(3, time.Millisecond),
			)

			err := n.SendPriceDropEmail(ctx, "buyer@example.com", product, price)

			Convey("Then it gives up after the attempt budget", func() {
				So(err, ShouldNotBeNil)
				So(calls, ShouldEqual, 3)
			})
		})

		Convey("When the server rejects authentication", func() {
			calls := 0
			n := notify.NewEmailNotifier("smtp.example.com", 587, "user", "wrong", "alerts@example.com",
				notify.WithSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
					calls++
					return errors.New("535 authentication failed")
				}),
				notify.WithSleepFunc(func(time.Duration) {}),
			)

			err := n.SendPriceDropEmail(ctx, "buyer@example.com", product, price)

			Convey("Then it fails immediately without retrying", func() {
				So(err, ShouldNotBeNil)
				So(calls, ShouldEqual, 1)
			})
		})
	})
}

func TestNopNotifier(t *testing.T) {
	Convey("Given the nop notifier", t, func() {
		Convey("When sending", func() {
			err := notify.NopNotifier{}.SendPriceDropEmail(
				context.Background(), "a@b.c", model.TrackedProduct{}, decimal.Zero)

			Convey("Then it silently succeeds", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}
