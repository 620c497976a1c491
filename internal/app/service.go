// Package service wires the scheduler's components together and runs the
// recurring update loop.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pricepulse/internal/adapters/fetch"
	"github.com/okian/pricepulse/internal/adapters/match"
	"github.com/okian/pricepulse/internal/adapters/notify"
	"github.com/okian/pricepulse/internal/adapters/repository"
	"github.com/okian/pricepulse/internal/config"
	"github.com/okian/pricepulse/internal/domain/alerts"
	"github.com/okian/pricepulse/internal/domain/cycle"
	"github.com/okian/pricepulse/internal/domain/priority"
	"github.com/okian/pricepulse/pkg/logger"
	"github.com/okian/pricepulse/pkg/metrics"
)

// Service owns the scheduler's lifecycle: it builds the store, fetchers,
// matcher, notifier, scorer and orchestrator from configuration, runs the
// first cycle immediately on start, then repeats on the configured
// interval. Cycles never overlap; a tick that arrives while a cycle is
// still running is skipped.
type Service struct {
	mu sync.Mutex

	cfg *config.Config

	store        repository.Store
	orchestrator *cycle.Orchestrator

	started  bool
	inFlight atomic.Bool
	stopCh   chan struct{}
	done     sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithStore overrides the persistence store, mainly for tests.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithOrchestrator overrides the cycle runner, mainly for tests.
func WithOrchestrator(o *cycle.Orchestrator) Option {
	return func(s *Service) {
		if o != nil {
			s.orchestrator = o
		}
	}
}

// New constructs a Service from configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the component graph and launches the update loop. The first
// cycle runs immediately; subsequent cycles follow the configured interval.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting price update scheduler...")

	if s.store == nil {
		store, err := s.buildStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}

	if s.orchestrator == nil {
		s.orchestrator = s.buildOrchestrator()
	}

	interval := time.Duration(s.cfg.CycleIntervalMinutes) * time.Minute
	s.done.Add(1)
	go s.run(ctx, interval)

	s.started = true
	s.logger.Info(ctx, "price update scheduler started",
		logger.Duration("interval", interval),
		logger.Int("max_products", s.cfg.MaxProducts),
		logger.Bool("priority_ordering", s.cfg.PriorityOrdering),
		logger.Bool("mock_data", s.cfg.AllowMockData),
	)
	return nil
}

// Stop gracefully shuts down the service. A cycle already in flight is
// left to finish its current product writes.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping price update scheduler...")

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.done.Wait()

	if s.store != nil {
		s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "price update scheduler stopped")
}

// Store exposes the persistence layer, for the API surface and tests.
func (s *Service) Store() repository.Store {
	return s.store
}

// RunCycleNow triggers one cycle outside the schedule, skipping if a cycle
// is already running. Returns whether the cycle ran.
func (s *Service) RunCycleNow(ctx context.Context) bool {
	return s.runOnce(ctx)
}

// run is the scheduler loop: one immediate cycle, then one per tick until
// the service stops or ctx is cancelled.
func (s *Service) run(ctx context.Context, interval time.Duration) {
	defer s.done.Done()

	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce guards against overlap and runs a single cycle.
func (s *Service) runOnce(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		metrics.RecordCycleSkipped()
		s.logger.Warn(ctx, "cycle still running, skipping tick")
		return false
	}
	defer s.inFlight.Store(false)

	if _, err := s.orchestrator.RunCycle(ctx); err != nil {
		s.logger.Error(ctx, "cycle failed", logger.Error(err))
	}
	return true
}

// buildStore selects Postgres when a DSN is configured, with an in-memory
// fallback for local development.
func (s *Service) buildStore(ctx context.Context) (repository.Store, error) {
	if s.cfg.PostgresDSN == "" {
		s.logger.Info(ctx, "using in-memory store")
		return repository.NewMemoryStore(), nil
	}

	pg, err := repository.NewPostgresStore(ctx, s.cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	s.logger.Info(ctx, "using postgres store")
	return pg, nil
}

// buildOrchestrator assembles the full cycle pipeline from configuration.
func (s *Service) buildOrchestrator() *cycle.Orchestrator {
	cfg := s.cfg
	requestDelay := time.Duration(cfg.RequestDelayMS) * time.Millisecond

	collectorOpts := []fetch.CollectorOption{
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithTimeout(time.Duration(cfg.FetchTimeoutSec) * time.Second),
		fetch.WithRequestDelay(requestDelay, requestDelay/2),
	}
	registry := fetch.NewRegistry(
		fetch.NewAmazonFetcher(collectorOpts...),
		fetch.NewFlipkartFetcher(collectorOpts...),
	)
	if cfg.AllowMockData {
		// Development only: mock strategies shadow the real scrapers.
		registry.Register(fetch.NewMockFetcher(fetch.PlatformAmazon, time.Now().UnixNano()))
		registry.Register(fetch.NewMockFetcher(fetch.PlatformFlipkart, time.Now().UnixNano()+1))
		s.logger.Warn(context.Background(), "mock price data enabled, real scraping disabled")
	}

	scorer := priority.NewScorer(s.store,
		priority.WithBaselineRefresh(time.Duration(cfg.BaselineRefreshMinutes)*time.Minute),
		priority.WithTimeWeight(cfg.TimeWeight),
		priority.WithVolatility(
			time.Duration(cfg.VolatilityWindowDays)*24*time.Hour,
			cfg.VolatilityMinSamples,
			cfg.VolatilityScale,
			cfg.VolatilityMax,
		),
		priority.WithAlertWeight(cfg.AlertWeight),
		priority.WithRecentChange(
			cfg.RecentChangeSamples,
			time.Duration(cfg.RecentChangeWindowHrs)*time.Hour,
			cfg.RecentChangeThreshold,
			cfg.RecentChangeWeight,
		),
	)

	evaluator := alerts.NewEvaluator(s.store, s.buildNotifier())

	retrier := cycle.NewRetrier(
		cycle.WithMaxAttempts(cfg.MaxAttempts),
		cycle.WithBaseDelay(time.Duration(cfg.BaseDelayMS)*time.Millisecond),
		cycle.WithMaxJitter(cfg.MaxRetryJitter),
	)

	return cycle.NewOrchestrator(
		s.store,
		registry,
		match.NewSearchMatcher(match.WithUserAgent(cfg.UserAgent)),
		scorer,
		evaluator,
		cycle.WithRetrier(retrier),
		cycle.WithMaxProducts(cfg.MaxProducts),
		cycle.WithPriorityOrdering(cfg.PriorityOrdering),
		cycle.WithRequestDelay(requestDelay),
	)
}

// buildNotifier returns the SMTP notifier, or a no-op when SMTP is not
// configured so triggered alerts still commit without email delivery.
func (s *Service) buildNotifier() alerts.Notifier {
	cfg := s.cfg
	if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
		s.logger.Warn(context.Background(), "smtp not configured, alert emails disabled")
		return notify.NopNotifier{}
	}
	return notify.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
}
