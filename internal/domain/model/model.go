// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrackedProduct is a product whose price is monitored on a recurring
// schedule. CurrentPrice always reflects the most recent successful
// observation; a failed fetch never touches it.
type TrackedProduct struct {
	ID           uuid.UUID
	Name         string
	URL          string
	Platform     string // native platform of URL, e.g. "Amazon"
	CurrentPrice decimal.Decimal
	HasPrice     bool // false until the first successful observation
	Currency     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PriceObservation is one immutable timestamped price reading for a product
// on a given platform. Observations are append-only.
type PriceObservation struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	Platform   string
	Price      decimal.Decimal
	Currency   string
	ObservedAt time.Time
}

// PriceAlert is a user request to be notified when a product's price falls
// to or below TargetPrice. Triggering is monotonic: once Triggered is set it
// never reverts, and TriggeredAt/TriggeredPrice are written exactly once.
type PriceAlert struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	Email          string
	TargetPrice    decimal.Decimal
	Triggered      bool
	TriggeredAt    time.Time
	TriggeredPrice decimal.Decimal
	CreatedAt      time.Time
}

// PriorityScore ranks a product's update urgency for one cycle. It is
// computed fresh at the start of a cycle and discarded after use.
type PriorityScore struct {
	ProductID    uuid.UUID
	TimeFactor   float64
	Volatility   float64
	AlertFactor  float64
	RecentChange float64
	Total        float64
}
