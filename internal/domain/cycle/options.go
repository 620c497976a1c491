package cycle

import (
	"context"
	"time"

	"github.com/okian/pricepulse/pkg/logger"
)

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithRetrier replaces the default retry controller.
func WithRetrier(r *Retrier) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.retrier = r
		}
	}
}

// WithMaxProducts caps how many products one cycle processes. Zero means
// no cap.
func WithMaxProducts(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxProducts = n
		}
	}
}

// WithPriorityOrdering toggles urgency-ordered processing. When disabled,
// products are processed in store order.
func WithPriorityOrdering(enabled bool) Option {
	return func(o *Orchestrator) {
		o.priorityOrdering = enabled
	}
}

// WithRequestDelay sets the pause between cross-platform requests.
func WithRequestDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.requestDelay = d
		}
	}
}

// WithSleep replaces the blocking sleep, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}
