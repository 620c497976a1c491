// Package alerts transitions price alerts to triggered when an observed
// price meets their target.
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/pricepulse/internal/domain/model"
	"github.com/okian/pricepulse/pkg/logger"
	"github.com/okian/pricepulse/pkg/metrics"
)

// AlertStore abstracts the alert persistence the evaluator needs.
type AlertStore interface {
	// UntriggeredAlertsAtOrAbove returns untriggered alerts satisfied by the
	// price (target_price >= price).
	UntriggeredAlertsAtOrAbove(ctx context.Context, productID uuid.UUID, price decimal.Decimal) ([]model.PriceAlert, error)

	// MarkAlertTriggered transitions an alert exactly once; it reports
	// whether this call performed the transition.
	MarkAlertTriggered(ctx context.Context, alertID uuid.UUID, price decimal.Decimal, at time.Time) (bool, error)
}

// Notifier delivers the price-drop email for a triggered alert.
type Notifier interface {
	SendPriceDropEmail(ctx context.Context, destination string, product model.TrackedProduct, triggeredPrice decimal.Decimal) error
}

// Evaluator fires alerts whose target a new observation satisfies.
type Evaluator struct {
	store    AlertStore
	notifier Notifier
	now      func() time.Time
	log      logger.Logger
}

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Evaluator) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEvaluator builds an evaluator over the given store and notifier.
func NewEvaluator(store AlertStore, notifier Notifier, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:    store,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Get().Named("alerts"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate finds untriggered alerts the new price satisfies and fires them.
// The triggered flag is committed before notification, so a failed email
// never causes a duplicate trigger on the next evaluation; at-least-once
// notification, at-most-one state change. Already-triggered alerts are
// filtered by the untriggered predicate at query time, which makes
// re-evaluating the same price a no-op. Returns the alerts this call
// transitioned.
func (e *Evaluator) Evaluate(ctx context.Context, product model.TrackedProduct, newPrice decimal.Decimal) []model.PriceAlert {
	matches, err := e.store.UntriggeredAlertsAtOrAbove(ctx, product.ID, newPrice)
	if err != nil {
		e.log.Error(ctx, "alert query failed",
			logger.Stringer("product_id", product.ID),
			logger.Error(err),
		)
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	e.log.Info(ctx, "alerts satisfied by new price",
		logger.Stringer("product_id", product.ID),
		logger.String("price", newPrice.String()),
		logger.Int("count", len(matches)),
	)

	now := e.now()
	var triggered []model.PriceAlert
	for _, alert := range matches {
		transitioned, err := e.store.MarkAlertTriggered(ctx, alert.ID, newPrice, now)
		if err != nil {
			e.log.Error(ctx, "marking alert triggered failed",
				logger.Stringer("alert_id", alert.ID),
				logger.Error(err),
			)
			continue
		}
		if !transitioned {
			// Lost the race to another evaluation; nothing to notify.
			continue
		}

		alert.Triggered = true
		alert.TriggeredAt = now
		alert.TriggeredPrice = newPrice
		triggered = append(triggered, alert)
		metrics.RecordAlertTriggered()

		if err := e.notifier.SendPriceDropEmail(ctx, alert.Email, product, newPrice); err != nil {
			// Triggered stays triggered; re-sending on the next cycle would
			// turn one drop into a notification storm.
			metrics.RecordNotificationFailure()
			e.log.Error(ctx, "price drop notification failed",
				logger.Stringer("alert_id", alert.ID),
				logger.String("destination", alert.Email),
				logger.Error(err),
			)
		}
	}
	return triggered
}
