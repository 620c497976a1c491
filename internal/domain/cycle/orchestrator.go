// Package cycle runs the recurring price-update cycle: it selects which
// products to refresh, fetches their prices with retry, persists new
// observations, fans out to other platforms, and fires satisfied alerts.
package cycle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/pricepulse/internal/adapters/fetch"
	"github.com/okian/pricepulse/internal/adapters/match"
	"github.com/okian/pricepulse/internal/adapters/repository"
	"github.com/okian/pricepulse/internal/domain/alerts"
	"github.com/okian/pricepulse/internal/domain/model"
	"github.com/okian/pricepulse/internal/domain/priority"
	"github.com/okian/pricepulse/pkg/logger"
	"github.com/okian/pricepulse/pkg/metrics"
)

const defaultRequestDelay = time.Second

// Summary reports what one cycle did.
type Summary struct {
	Started         time.Time
	Duration        time.Duration
	Scheduled       int
	Updated         int
	Failed          int
	AlertsTriggered int
}

// Orchestrator drives one full update cycle over the tracked products.
// Products are processed sequentially; one product's failure never blocks
// the rest, and each product's writes commit independently.
type Orchestrator struct {
	store     repository.Store
	fetchers  *fetch.Registry
	matcher   match.Matcher
	scorer    *priority.Scorer
	evaluator *alerts.Evaluator
	retrier   *Retrier

	maxProducts      int
	priorityOrdering bool
	requestDelay     time.Duration
	sleep            func(ctx context.Context, d time.Duration) error
	now              func() time.Time
	log              logger.Logger
}

// NewOrchestrator wires a cycle runner over the given collaborators.
func NewOrchestrator(
	store repository.Store,
	fetchers *fetch.Registry,
	matcher match.Matcher,
	scorer *priority.Scorer,
	evaluator *alerts.Evaluator,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:            store,
		fetchers:         fetchers,
		matcher:          matcher,
		scorer:           scorer,
		evaluator:        evaluator,
		retrier:          NewRetrier(),
		priorityOrdering: true,
		requestDelay:     defaultRequestDelay,
		sleep:            sleepCtx,
		now:              func() time.Time { return time.Now().UTC() },
		log:              logger.Get().Named("cycle"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunCycle executes one update cycle. It returns an error only when the
// product list itself cannot be loaded; per-product failures are counted
// in the summary instead.
func (o *Orchestrator) RunCycle(ctx context.Context) (Summary, error) {
	started := o.now()
	sum := Summary{Started: started}

	products, err := o.store.ListProducts(ctx, 0)
	if err != nil {
		metrics.RecordStoreError()
		return sum, fmt.Errorf("loading tracked products: %w", err)
	}
	metrics.UpdateProductsTracked(len(products))

	if o.priorityOrdering {
		products = o.orderByPriority(ctx, products, started)
	}
	if o.maxProducts > 0 && len(products) > o.maxProducts {
		products = products[:o.maxProducts]
	}
	sum.Scheduled = len(products)

	o.log.Info(ctx, "cycle started",
		logger.Int("scheduled", sum.Scheduled),
		logger.Bool("priority_ordering", o.priorityOrdering),
	)

	for _, p := range products {
		if ctx.Err() != nil {
			o.log.Warn(ctx, "cycle aborted", logger.Error(ctx.Err()))
			break
		}
		fired, ok := o.updateProduct(ctx, p)
		sum.AlertsTriggered += fired
		if ok {
			sum.Updated++
			metrics.RecordProductUpdated()
		} else {
			sum.Failed++
			metrics.RecordProductFailed()
		}
	}

	sum.Duration = o.now().Sub(started)
	metrics.RecordCycleCompleted()
	metrics.RecordCycleDuration(sum.Duration.Seconds())
	o.log.Info(ctx, "cycle finished",
		logger.Int("scheduled", sum.Scheduled),
		logger.Int("updated", sum.Updated),
		logger.Int("failed", sum.Failed),
		logger.Int("alerts_triggered", sum.AlertsTriggered),
		logger.Duration("took", sum.Duration),
	)
	return sum, nil
}

// orderByPriority sorts products most-urgent first. Scoring failures inside
// the scorer degrade to partial scores, so ordering never fails the cycle.
func (o *Orchestrator) orderByPriority(ctx context.Context, products []model.TrackedProduct, now time.Time) []model.TrackedProduct {
	totals := make(map[int]float64, len(products))
	for i, p := range products {
		totals[i] = o.scorer.Score(ctx, p, now).Total
	}
	idx := make([]int, len(products))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return totals[idx[a]] > totals[idx[b]]
	})
	out := make([]model.TrackedProduct, len(products))
	for i, j := range idx {
		out[i] = products[j]
	}
	return out
}

// updateProduct refreshes one product: primary fetch with retry, then
// cross-platform fan-out. It reports how many alerts fired and whether at
// least one platform's observation was persisted.
func (o *Orchestrator) updateProduct(ctx context.Context, p model.TrackedProduct) (alertsFired int, ok bool) {
	fetcher, found := o.fetchers.Lookup(p.Platform)
	if !found {
		o.log.Error(ctx, "no fetch strategy for platform",
			logger.Stringer("product_id", p.ID),
			logger.String("platform", p.Platform),
		)
		return 0, false
	}

	persisted := 0
	res, attempts := o.retrier.Do(ctx, p.Platform, func(ctx context.Context) fetch.Result {
		r := fetcher.Fetch(ctx, p.URL)
		if r.Status != fetch.StatusOK {
			return r
		}
		// Persist inside the attempt: a failed write is as transient as a
		// failed fetch and gets the same backoff.
		if err := o.persistPrimary(ctx, p, r); err != nil {
			metrics.RecordStoreError()
			return fetch.Retryable("persisting observation failed", err)
		}
		return r
	})

	if res.Status == fetch.StatusOK {
		persisted++
		o.log.Info(ctx, "price updated",
			logger.Stringer("product_id", p.ID),
			logger.String("platform", p.Platform),
			logger.String("price", res.Price.String()),
			logger.Int("attempts", attempts),
		)
		// Alerts fire on a drop, or on the very first observed price.
		if !p.HasPrice || res.Price.LessThan(p.CurrentPrice) {
			alertsFired = len(o.evaluator.Evaluate(ctx, p, res.Price))
		}
	} else {
		o.log.Error(ctx, "product update failed",
			logger.Stringer("product_id", p.ID),
			logger.String("platform", p.Platform),
			logger.String("status", res.Status.String()),
			logger.String("reason", res.Reason),
			logger.Error(res.Err),
		)
	}

	persisted += o.fanOut(ctx, p)
	return alertsFired, persisted > 0
}

// persistPrimary commits the native platform's observation together with
// the product's current price in one atomic store call.
func (o *Orchestrator) persistPrimary(ctx context.Context, p model.TrackedProduct, res fetch.Result) error {
	currency := res.Currency
	if currency == "" {
		currency = p.Currency
	}
	obs := model.PriceObservation{
		ProductID:  p.ID,
		Platform:   p.Platform,
		Price:      res.Price,
		Currency:   currency,
		ObservedAt: o.now(),
	}
	if err := o.store.RecordPrice(ctx, obs); err != nil {
		return fmt.Errorf("recording price: %w", err)
	}
	metrics.RecordObservation(p.Platform)
	return nil
}

// fanOut records comparison prices for the product on other platforms.
// Each platform is attempted once; failures are logged and skipped so a
// blocked search page never costs the primary update.
func (o *Orchestrator) fanOut(ctx context.Context, p model.TrackedProduct) int {
	if o.matcher == nil {
		return 0
	}
	persisted := 0
	for _, m := range o.matcher.FindMatches(ctx, p) {
		if err := o.sleep(ctx, o.requestDelay); err != nil {
			break
		}
		fetcher, found := o.fetchers.Lookup(m.Platform)
		if !found {
			continue
		}
		res := fetcher.Fetch(ctx, m.URL)
		if res.Status != fetch.StatusOK {
			o.log.Warn(ctx, "comparison fetch failed",
				logger.Stringer("product_id", p.ID),
				logger.String("platform", m.Platform),
				logger.String("reason", res.Reason),
				logger.Error(res.Err),
			)
			continue
		}
		obs := model.PriceObservation{
			ProductID:  p.ID,
			Platform:   m.Platform,
			Price:      res.Price,
			Currency:   res.Currency,
			ObservedAt: o.now(),
		}
		if err := o.store.AppendObservation(ctx, obs); err != nil {
			metrics.RecordStoreError()
			o.log.Warn(ctx, "persisting comparison observation failed",
				logger.Stringer("product_id", p.ID),
				logger.String("platform", m.Platform),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordObservation(m.Platform)
		persisted++
	}
	return persisted
}
