package federation

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

const (
	// DefaultMaxAttempts is the per-backend retry budget.
	DefaultMaxAttempts = 3

	// DefaultUnit is the backoff time unit. Delays are 2^attempt units.
	DefaultUnit = time.Second
)

// Retrier wraps single backend invocations with bounded attempts and
// attempt-indexed exponential backoff without jitter.
type Retrier struct {
	maxAttempts   int
	unit          time.Duration
	domain        string
	markUnhealthy bool
	logger        zerolog.Logger
	metrics       *telemetry.Metrics
	notify        func(backend string, attempt int, delay time.Duration, err error)
}

// RetryOption configures a Retrier.
type RetryOption func(*Retrier)

// WithMaxAttempts sets the attempt budget per backend.
func WithMaxAttempts(n int) RetryOption {
	return func(r *Retrier) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithUnit sets the backoff time unit.
func WithUnit(unit time.Duration) RetryOption {
	return func(r *Retrier) {
		if unit > 0 {
			r.unit = unit
		}
	}
}

// WithDomain sets the metrics domain label (compute or memory).
func WithDomain(domain string) RetryOption {
	return func(r *Retrier) {
		r.domain = domain
	}
}

// WithRetryLogger sets the logger.
func WithRetryLogger(l zerolog.Logger) RetryOption {
	return func(r *Retrier) {
		r.logger = l
	}
}

// WithRetryMetrics sets the Prometheus recorder.
func WithRetryMetrics(m *telemetry.Metrics) RetryOption {
	return func(r *Retrier) {
		r.metrics = m
	}
}

// WithRetryNotify registers a callback invoked before each backoff sleep.
func WithRetryNotify(fn func(backend string, attempt int, delay time.Duration, err error)) RetryOption {
	return func(r *Retrier) {
		r.notify = fn
	}
}

// WithKeepHealthyOnExhaustion leaves the health flag alone when a backend
// exhausts its budget. By default exhaustion marks it unhealthy.
func WithKeepHealthyOnExhaustion() RetryOption {
	return func(r *Retrier) {
		r.markUnhealthy = false
	}
}

// NewRetrier creates a retrier with three attempts and a one second unit.
func NewRetrier(opts ...RetryOption) *Retrier {
	r := &Retrier{
		maxAttempts:   DefaultMaxAttempts,
		unit:          DefaultUnit,
		domain:        "compute",
		markUnhealthy: true,
		logger:        telemetry.DefaultComponent("retry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxAttempts returns the configured attempt budget.
func (r *Retrier) MaxAttempts() int { return r.maxAttempts }

// Delay returns the sleep taken after the given failed attempt (1-based).
func (r *Retrier) Delay(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * r.unit
}

// backOff yields 2, 4, 8 ... units.
func (r *Retrier) backOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     r.Delay(1),
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Duration(math.MaxInt64),
	}
}

// Invoke calls fn against the backend until it succeeds or the retry budget
// is spent. Every attempt is recorded on the descriptor. The returned
// duration covers the successful attempt only.
//
// Exhaustion returns *ExhaustedError wrapping the last failure. Context
// cancellation is returned as is and ends the walk.
func Invoke[T any](ctx context.Context, r *Retrier, desc *Descriptor, operation string, fn func(ctx context.Context) (T, error)) (T, time.Duration, error) {
	var (
		attempt int
		lastErr error
		elapsed time.Duration
	)

	op := func() (T, error) {
		attempt++
		r.logger.Debug().
			Str("backend", desc.ID()).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Msg("Invoking backend")

		start := time.Now()
		res, err := fn(ctx)
		took := time.Since(start)

		desc.RecordAttempt(took, err)
		r.metrics.RecordProviderCall(r.domain, desc.ID(), operation, took)

		if err != nil {
			lastErr = err
			r.metrics.RecordProviderError(r.domain, desc.ID(), operation)
			r.logger.Warn().
				Err(err).
				Str("backend", desc.ID()).
				Int("attempt", attempt).
				Msg("Attempt failed")
			return res, err
		}
		elapsed = took
		return res, nil
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(uint(r.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if r.notify != nil {
				r.notify(desc.ID(), attempt, next, err)
			}
		}),
	)
	if err == nil {
		return res, elapsed, nil
	}

	if attempt < r.maxAttempts {
		// Cancelled between attempts.
		var zero T
		return zero, 0, err
	}

	if r.markUnhealthy {
		desc.markUnhealthy()
		r.metrics.SetProviderHealthy(r.domain, desc.ID(), false)
	}

	var zero T
	return zero, 0, &ExhaustedError{Backend: desc.ID(), Attempts: attempt, Err: lastErr}
}
