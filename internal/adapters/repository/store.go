// Package repository defines the persistence store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/pricepulse/internal/domain/model"
)

// Store provides read/write access to tracked products, their price
// history, and price alerts. All operations are transactional at the
// single-entity level; no call spans more than one product's state.
type Store interface {
	// CreateProduct registers a new tracked product.
	CreateProduct(ctx context.Context, p *model.TrackedProduct) error

	// ListProducts returns tracked products. limit caps the result when
	// positive; 0 means no cap.
	ListProducts(ctx context.Context, limit int) ([]model.TrackedProduct, error)

	// GetProduct returns a single product by id.
	// Returns ErrNotFound if the product is unknown.
	GetProduct(ctx context.Context, id uuid.UUID) (model.TrackedProduct, error)

	// SetCurrentPrice records the most recent successful observation on the
	// product itself, moving updated_at forward. Failed fetches never reach
	// this method.
	SetCurrentPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) error

	// AppendObservation appends one immutable price reading. Observations
	// are never updated or deleted.
	AppendObservation(ctx context.Context, obs model.PriceObservation) error

	// RecordPrice appends the observation and moves the product's current
	// price and updated_at forward in one atomic step, so a retried update
	// can never leave an observation without the matching product state.
	RecordPrice(ctx context.Context, obs model.PriceObservation) error

	// ObservationsSince returns all observations for a product at or after
	// since, newest first.
	ObservationsSince(ctx context.Context, productID uuid.UUID, since time.Time) ([]model.PriceObservation, error)

	// RecentObservations returns up to n newest observations for a product
	// at or after since, newest first.
	RecentObservations(ctx context.Context, productID uuid.UUID, n int, since time.Time) ([]model.PriceObservation, error)

	// CreateAlert registers a new untriggered price alert.
	CreateAlert(ctx context.Context, a *model.PriceAlert) error

	// CountUntriggeredAlerts returns how many alerts for the product have
	// not fired yet.
	CountUntriggeredAlerts(ctx context.Context, productID uuid.UUID) (int, error)

	// UntriggeredAlertsAtOrAbove returns untriggered alerts whose target
	// price is at or above the given price, i.e. alerts the price satisfies.
	UntriggeredAlertsAtOrAbove(ctx context.Context, productID uuid.UUID, price decimal.Decimal) ([]model.PriceAlert, error)

	// MarkAlertTriggered transitions an alert to triggered, recording the
	// price and timestamp. It reports whether this call performed the
	// transition; an already-triggered alert is left untouched and returns
	// false. Triggering is monotonic.
	MarkAlertTriggered(ctx context.Context, alertID uuid.UUID, price decimal.Decimal, at time.Time) (bool, error)

	// Close releases underlying resources.
	Close()
}
