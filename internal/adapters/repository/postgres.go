package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/okian/pricepulse/internal/domain/model"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

// Migrate creates the schema when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS products (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL UNIQUE,
	platform TEXT NOT NULL DEFAULT 'Amazon',
	current_price NUMERIC(12,2),
	currency TEXT NOT NULL DEFAULT 'INR',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS price_observations (
	id UUID PRIMARY KEY,
	product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	platform TEXT NOT NULL DEFAULT 'Amazon',
	price NUMERIC(12,2) NOT NULL,
	currency TEXT NOT NULL DEFAULT 'INR',
	observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_observations_product_time
	ON price_observations(product_id, observed_at DESC);
CREATE TABLE IF NOT EXISTS price_alerts (
	id UUID PRIMARY KEY,
	product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	email TEXT NOT NULL,
	target_price NUMERIC(12,2) NOT NULL,
	triggered BOOLEAN NOT NULL DEFAULT false,
	triggered_at TIMESTAMPTZ,
	triggered_price NUMERIC(12,2),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_alerts_product_untriggered
	ON price_alerts(product_id) WHERE NOT triggered;
`
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// CreateProduct registers a new tracked product.
func (s *PostgresStore) CreateProduct(ctx context.Context, p *model.TrackedProduct) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO products (id, name, url, platform, currency)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.URL, p.Platform, p.Currency)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation on the url column
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateURL
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// ListProducts returns tracked products ordered by creation time.
func (s *PostgresStore) ListProducts(ctx context.Context, limit int) ([]model.TrackedProduct, error) {
	q := `
SELECT id, name, url, platform, current_price, currency, created_at, updated_at
FROM products
ORDER BY created_at`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var res []model.TrackedProduct
	for rows.Next() {
		var p model.TrackedProduct
		var price *decimal.Decimal
		if err := rows.Scan(&p.ID, &p.Name, &p.URL, &p.Platform, &price, &p.Currency, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if price != nil {
			p.CurrentPrice = *price
			p.HasPrice = true
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// GetProduct returns a single product by id.
func (s *PostgresStore) GetProduct(ctx context.Context, id uuid.UUID) (model.TrackedProduct, error) {
	var p model.TrackedProduct
	var price *decimal.Decimal
	err := s.db.QueryRow(ctx,
		`SELECT id, name, url, platform, current_price, currency, created_at, updated_at
		 FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.URL, &p.Platform, &price, &p.Currency, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TrackedProduct{}, ErrNotFound
	}
	if err != nil {
		return model.TrackedProduct{}, fmt.Errorf("get product: %w", err)
	}
	if price != nil {
		p.CurrentPrice = *price
		p.HasPrice = true
	}
	return p, nil
}

// SetCurrentPrice records the latest successful observation on the product.
func (s *PostgresStore) SetCurrentPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE products SET current_price = $2, updated_at = $3 WHERE id = $1`,
		id, price, at)
	if err != nil {
		return fmt.Errorf("update current price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendObservation appends one immutable price reading.
func (s *PostgresStore) AppendObservation(ctx context.Context, obs model.PriceObservation) error {
	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO price_observations (id, product_id, platform, price, currency, observed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		obs.ID, obs.ProductID, obs.Platform, obs.Price, obs.Currency, obs.ObservedAt)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// RecordPrice appends the observation and updates the product's current
// price in one transaction.
func (s *PostgresStore) RecordPrice(ctx context.Context, obs model.PriceObservation) error {
	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin record price: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO price_observations (id, product_id, platform, price, currency, observed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		obs.ID, obs.ProductID, obs.Platform, obs.Price, obs.Currency, obs.ObservedAt); err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE products SET current_price = $2, updated_at = $3 WHERE id = $1`,
		obs.ProductID, obs.Price, obs.ObservedAt)
	if err != nil {
		return fmt.Errorf("update current price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// ObservationsSince returns observations at or after since, newest first.
func (s *PostgresStore) ObservationsSince(ctx context.Context, productID uuid.UUID, since time.Time) ([]model.PriceObservation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, product_id, platform, price, currency, observed_at
		 FROM price_observations
		 WHERE product_id = $1 AND observed_at >= $2
		 ORDER BY observed_at DESC`,
		productID, since)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// RecentObservations returns up to n newest observations at or after since.
func (s *PostgresStore) RecentObservations(ctx context.Context, productID uuid.UUID, n int, since time.Time) ([]model.PriceObservation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, product_id, platform, price, currency, observed_at
		 FROM price_observations
		 WHERE product_id = $1 AND observed_at >= $2
		 ORDER BY observed_at DESC
		 LIMIT $3`,
		productID, since, n)
	if err != nil {
		return nil, fmt.Errorf("query recent observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func scanObservations(rows pgx.Rows) ([]model.PriceObservation, error) {
	var res []model.PriceObservation
	for rows.Next() {
		var obs model.PriceObservation
		if err := rows.Scan(&obs.ID, &obs.ProductID, &obs.Platform, &obs.Price, &obs.Currency, &obs.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		res = append(res, obs)
	}
	return res, rows.Err()
}

// CreateAlert registers a new untriggered alert.
func (s *PostgresStore) CreateAlert(ctx context.Context, a *model.PriceAlert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO price_alerts (id, product_id, email, target_price, triggered)
		 VALUES ($1, $2, $3, $4, false)`,
		a.ID, a.ProductID, a.Email, a.TargetPrice)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// CountUntriggeredAlerts returns how many alerts have not fired yet.
func (s *PostgresStore) CountUntriggeredAlerts(ctx context.Context, productID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM price_alerts WHERE product_id = $1 AND NOT triggered`,
		productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return count, nil
}

// UntriggeredAlertsAtOrAbove returns untriggered alerts the price satisfies.
func (s *PostgresStore) UntriggeredAlertsAtOrAbove(ctx context.Context, productID uuid.UUID, price decimal.Decimal) ([]model.PriceAlert, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, product_id, email, target_price, triggered, triggered_at, triggered_price, created_at
		 FROM price_alerts
		 WHERE product_id = $1 AND NOT triggered AND target_price >= $2
		 ORDER BY created_at`,
		productID, price)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var res []model.PriceAlert
	for rows.Next() {
		var a model.PriceAlert
		var triggeredAt *time.Time
		var triggeredPrice *decimal.Decimal
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Email, &a.TargetPrice, &a.Triggered, &triggeredAt, &triggeredPrice, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if triggeredAt != nil {
			a.TriggeredAt = *triggeredAt
		}
		if triggeredPrice != nil {
			a.TriggeredPrice = *triggeredPrice
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// MarkAlertTriggered transitions an alert to triggered exactly once. The
// NOT triggered predicate makes the update a compare-and-set; a repeated
// evaluation of the same price affects zero rows.
func (s *PostgresStore) MarkAlertTriggered(ctx context.Context, alertID uuid.UUID, price decimal.Decimal, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE price_alerts
		 SET triggered = true, triggered_at = $2, triggered_price = $3
		 WHERE id = $1 AND NOT triggered`,
		alertID, at, price)
	if err != nil {
		return false, fmt.Errorf("mark alert triggered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}
