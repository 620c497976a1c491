// Package metrics provides Prometheus metrics for the price-update scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the scheduler.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Cycle metrics
	cyclesTotal       prometheus.Counter
	cyclesSkipped     prometheus.Counter
	cycleDuration     prometheus.Histogram
	productsTracked   prometheus.Gauge
	productsUpdated   prometheus.Counter
	productsFailed    prometheus.Counter

	// Fetch metrics, labeled by platform
	fetchAttempts *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	fetchLatency  prometheus.Histogram

	// Retry metrics
	retriesTotal   prometheus.Counter
	retryExhausted prometheus.Counter

	// Observation and data quality metrics
	observationsRecorded *prometheus.CounterVec
	invalidPrices        prometheus.Counter

	// Alert metrics
	alertsTriggered      prometheus.Counter
	notificationFailures prometheus.Counter

	// Store metrics
	storeErrors prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pricepulse",
		subsystem:        "scheduler",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.cyclesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycles_total",
		Help:      "Total number of completed update cycles",
	})

	m.cyclesSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycles_skipped_total",
		Help:      "Cycles skipped because the previous cycle was still running",
	})

	m.cycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycle_duration_seconds",
		Help:      "Histogram of full update-cycle duration in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	m.productsTracked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "products_tracked",
		Help:      "Number of products loaded for the most recent cycle",
	})

	m.productsUpdated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "products_updated_total",
		Help:      "Products with at least one successful price update",
	})

	m.productsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "products_failed_total",
		Help:      "Products skipped after exhausting all retry attempts",
	})

	m.fetchAttempts = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "fetch_attempts_total",
			Help:      "Price fetch attempts by platform",
		},
		[]string{"platform"},
	)

	m.fetchFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "fetch_failures_total",
			Help:      "Failed price fetches by platform",
		},
		[]string{"platform"},
	)

	m.fetchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_latency_milliseconds",
		Help:      "Histogram of single fetch latency in milliseconds",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	m.retriesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "retries_total",
		Help:      "Total retry attempts performed after a failed update",
	})

	m.retryExhausted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "retry_exhausted_total",
		Help:      "Updates abandoned after the maximum number of attempts",
	})

	m.observationsRecorded = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "observations_recorded_total",
			Help:      "Price observations appended to history by platform",
		},
		[]string{"platform"},
	)

	m.invalidPrices = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "invalid_prices_total",
		Help:      "Fetched prices rejected before persistence (non-positive or unparseable)",
	})

	m.alertsTriggered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "alerts_triggered_total",
		Help:      "Price alerts transitioned to triggered",
	})

	m.notificationFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_failures_total",
		Help:      "Alert emails that could not be delivered",
	})

	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Persistence-layer errors observed during update cycles",
	})
}

// RecordCycleCompleted increments the completed cycle counter.
func RecordCycleCompleted() {
	globalManager.cyclesTotal.Inc()
}

// RecordCycleSkipped increments the skipped cycle counter.
func RecordCycleSkipped() {
	globalManager.cyclesSkipped.Inc()
}

// RecordCycleDuration records how long a full cycle took.
func RecordCycleDuration(seconds float64) {
	globalManager.cycleDuration.Observe(seconds)
}

// UpdateProductsTracked sets the product count loaded for a cycle.
func UpdateProductsTracked(count int) {
	globalManager.productsTracked.Set(float64(count))
}

// RecordProductUpdated increments the successful product update counter.
func RecordProductUpdated() {
	globalManager.productsUpdated.Inc()
}

// RecordProductFailed increments the failed product counter.
func RecordProductFailed() {
	globalManager.productsFailed.Inc()
}

// RecordFetchAttempt increments fetch attempts for a platform.
func RecordFetchAttempt(platform string) {
	globalManager.fetchAttempts.WithLabelValues(platform).Inc()
}

// RecordFetchFailure increments fetch failures for a platform.
func RecordFetchFailure(platform string) {
	globalManager.fetchFailures.WithLabelValues(platform).Inc()
}

// RecordFetchLatency records single fetch latency in milliseconds.
func RecordFetchLatency(latencyMs float64) {
	globalManager.fetchLatency.Observe(latencyMs)
}

// RecordRetry increments the retry counter.
func RecordRetry() {
	globalManager.retriesTotal.Inc()
}

// RecordRetryExhausted increments the retry exhaustion counter.
func RecordRetryExhausted() {
	globalManager.retryExhausted.Inc()
}

// RecordObservation increments recorded observations for a platform.
func RecordObservation(platform string) {
	globalManager.observationsRecorded.WithLabelValues(platform).Inc()
}

// RecordInvalidPrice increments the rejected price counter.
func RecordInvalidPrice() {
	globalManager.invalidPrices.Inc()
}

// RecordAlertTriggered increments the triggered alert counter.
func RecordAlertTriggered() {
	globalManager.alertsTriggered.Inc()
}

// RecordNotificationFailure increments the notification failure counter.
func RecordNotificationFailure() {
	globalManager.notificationFailures.Inc()
}

// RecordStoreError increments the persistence error counter.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// GetRegistry returns the custom registry for the metrics HTTP handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
