package cycle

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/okian/pricepulse/internal/adapters/fetch"
	"github.com/okian/pricepulse/pkg/logger"
	"github.com/okian/pricepulse/pkg/metrics"
)

// Default retry configuration constants.
const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxJitter   = 0.5
)

// Retrier re-runs a fetch-and-persist attempt with exponential backoff and
// random jitter. A fatal result aborts immediately: the page answered, the
// data is unusable, and retrying cannot change that.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   float64
	sleep       func(ctx context.Context, d time.Duration) error
	randFloat   func() float64
	log         logger.Logger
}

// RetrierOption applies a configuration option to a Retrier.
type RetrierOption func(*Retrier)

// WithMaxAttempts sets how many times an attempt runs before giving up.
func WithMaxAttempts(n int) RetrierOption {
	return func(r *Retrier) {
		if n >= 1 {
			r.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the delay before the first re-attempt.
func WithBaseDelay(d time.Duration) RetrierOption {
	return func(r *Retrier) {
		if d >= 0 {
			r.baseDelay = d
		}
	}
}

// WithMaxJitter sets the upper bound of the random delay multiplier; each
// backoff is scaled by a factor in [1, 1+jitter).
func WithMaxJitter(jitter float64) RetrierOption {
	return func(r *Retrier) {
		if jitter >= 0 {
			r.maxJitter = jitter
		}
	}
}

// WithRetrySleep replaces the blocking sleep, for tests.
func WithRetrySleep(sleep func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithRetryRand replaces the jitter source, for tests.
func WithRetryRand(randFloat func() float64) RetrierOption {
	return func(r *Retrier) {
		if randFloat != nil {
			r.randFloat = randFloat
		}
	}
}

// WithRetrierLogger sets a custom logger.
func WithRetrierLogger(log logger.Logger) RetrierOption {
	return func(r *Retrier) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRetrier creates a retry controller with the given options.
func NewRetrier(opts ...RetrierOption) *Retrier {
	r := &Retrier{
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxJitter:   defaultMaxJitter,
		sleep:       sleepCtx,
		randFloat:   rand.Float64,
		log:         logger.Get().Named("retry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs attempt until it returns StatusOK, returns StatusFatal, or the
// attempt budget is spent. It returns the final result and the number of
// attempts made. label identifies the operation in logs.
func (r *Retrier) Do(ctx context.Context, label string, attempt func(ctx context.Context) fetch.Result) (fetch.Result, int) {
	var res fetch.Result
	for k := 1; k <= r.maxAttempts; k++ {
		res = attempt(ctx)
		switch res.Status {
		case fetch.StatusOK:
			return res, k
		case fetch.StatusFatal:
			r.log.Warn(ctx, "attempt failed permanently",
				logger.String("op", label),
				logger.Int("attempt", k),
				logger.String("reason", res.Reason),
			)
			return res, k
		}

		if k == r.maxAttempts {
			break
		}
		metrics.RecordRetry()
		delay := r.backoff(k)
		r.log.Warn(ctx, "attempt failed, backing off",
			logger.String("op", label),
			logger.Int("attempt", k),
			logger.String("reason", res.Reason),
			logger.Duration("delay", delay),
			logger.Error(res.Err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return res, k
		}
	}

	metrics.RecordRetryExhausted()
	r.log.Error(ctx, "attempts exhausted",
		logger.String("op", label),
		logger.Int("attempts", r.maxAttempts),
		logger.String("reason", res.Reason),
		logger.Error(res.Err),
	)
	return res, r.maxAttempts
}

// backoff computes the delay after the k-th failed attempt: the base delay
// doubled per failure, stretched by a random factor in [1, 1+maxJitter).
func (r *Retrier) backoff(k int) time.Duration {
	exp := float64(r.baseDelay) * math.Pow(2, float64(k-1))
	return time.Duration(exp * (1 + r.randFloat()*r.maxJitter))
}

// sleepCtx blocks for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
