package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/pricepulse/internal/domain/model"
)

// MemoryStore implements Store with in-process maps. It is the default for
// development and tests; production deployments point PostgresDSN at a real
// database instead.
type MemoryStore struct {
	mu           sync.RWMutex
	products     map[uuid.UUID]model.TrackedProduct
	urls         map[string]uuid.UUID
	observations map[uuid.UUID][]model.PriceObservation
	alerts       map[uuid.UUID]model.PriceAlert
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[uuid.UUID]model.TrackedProduct),
		urls:         make(map[string]uuid.UUID),
		observations: make(map[uuid.UUID][]model.PriceObservation),
		alerts:       make(map[uuid.UUID]model.PriceAlert),
	}
}

// CreateProduct registers a new tracked product, assigning an ID when unset.
func (s *MemoryStore) CreateProduct(_ context.Context, p *model.TrackedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.urls[p.URL]; exists {
		return ErrDuplicateURL
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	s.products[p.ID] = *p
	s.urls[p.URL] = p.ID
	return nil
}

// ListProducts returns tracked products ordered by creation time.
func (s *MemoryStore) ListProducts(_ context.Context, limit int) ([]model.TrackedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TrackedProduct, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetProduct returns a copy of the product or ErrNotFound.
func (s *MemoryStore) GetProduct(_ context.Context, id uuid.UUID) (model.TrackedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return model.TrackedProduct{}, ErrNotFound
	}
	return p, nil
}

// SetCurrentPrice records the latest successful observation on the product.
func (s *MemoryStore) SetCurrentPrice(_ context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	p.CurrentPrice = price
	p.HasPrice = true
	p.UpdatedAt = at
	s.products[id] = p
	return nil
}

// AppendObservation appends one immutable price reading.
func (s *MemoryStore) AppendObservation(_ context.Context, obs model.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[obs.ProductID]; !ok {
		return ErrNotFound
	}
	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	s.observations[obs.ProductID] = append(s.observations[obs.ProductID], obs)
	return nil
}

// RecordPrice appends the observation and updates the product's current
// price under one lock.
func (s *MemoryStore) RecordPrice(_ context.Context, obs model.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[obs.ProductID]
	if !ok {
		return ErrNotFound
	}
	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	s.observations[obs.ProductID] = append(s.observations[obs.ProductID], obs)
	p.CurrentPrice = obs.Price
	p.HasPrice = true
	p.UpdatedAt = obs.ObservedAt
	s.products[obs.ProductID] = p
	return nil
}

// ObservationsSince returns observations at or after since, newest first.
func (s *MemoryStore) ObservationsSince(_ context.Context, productID uuid.UUID, since time.Time) ([]model.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PriceObservation
	for _, obs := range s.observations[productID] {
		if !obs.ObservedAt.Before(since) {
			out = append(out, obs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	return out, nil
}

// RecentObservations returns up to n newest observations at or after since.
func (s *MemoryStore) RecentObservations(ctx context.Context, productID uuid.UUID, n int, since time.Time) ([]model.PriceObservation, error) {
	out, err := s.ObservationsSince(ctx, productID, since)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// CreateAlert registers a new untriggered alert.
func (s *MemoryStore) CreateAlert(_ context.Context, a *model.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[a.ProductID]; !ok {
		return ErrNotFound
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Triggered = false
	s.alerts[a.ID] = *a
	return nil
}

// CountUntriggeredAlerts returns how many alerts have not fired yet.
func (s *MemoryStore) CountUntriggeredAlerts(_ context.Context, productID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.alerts {
		if a.ProductID == productID && !a.Triggered {
			count++
		}
	}
	return count, nil
}

// UntriggeredAlertsAtOrAbove returns untriggered alerts the price satisfies.
func (s *MemoryStore) UntriggeredAlertsAtOrAbove(_ context.Context, productID uuid.UUID, price decimal.Decimal) ([]model.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PriceAlert
	for _, a := range s.alerts {
		if a.ProductID == productID && !a.Triggered && a.TargetPrice.GreaterThanOrEqual(price) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MarkAlertTriggered transitions an alert to triggered exactly once.
func (s *MemoryStore) MarkAlertTriggered(_ context.Context, alertID uuid.UUID, price decimal.Decimal, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return false, ErrNotFound
	}
	if a.Triggered {
		return false, nil
	}
	a.Triggered = true
	a.TriggeredAt = at
	a.TriggeredPrice = price
	s.alerts[alertID] = a
	return true, nil
}

// GetAlert returns a copy of the alert or ErrNotFound. Used by tests and
// the evaluator to report transitioned alerts.
func (s *MemoryStore) GetAlert(_ context.Context, alertID uuid.UUID) (model.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return model.PriceAlert{}, ErrNotFound
	}
	return a, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}
