// Package compute routes completion requests across a federation of
// providers: select a primary by affinity and priority, retry it with
// backoff, then walk the remaining candidates from lowest priority up.
package compute

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

const domain = "compute"

// Federation is the compute facade.
type Federation struct {
	registry *federation.Registry[Adapter]
	retrier  *federation.Retrier
	monitor  *federation.HealthMonitor
	affinity federation.Affinity
	cost     federation.CostFunc
	quality  federation.QualityFunc
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer

	healthOpts []federation.HealthOption
}

// Option configures the Federation.
type Option func(*Federation)

// WithRetrier replaces the default three-attempt retrier.
func WithRetrier(r *federation.Retrier) Option {
	return func(f *Federation) {
		f.retrier = r
	}
}

// WithAffinity replaces the request-type affinity map.
func WithAffinity(a federation.Affinity) Option {
	return func(f *Federation) {
		f.affinity = a
	}
}

// WithCostFunc replaces the token-estimate cost policy.
func WithCostFunc(fn federation.CostFunc) Option {
	return func(f *Federation) {
		f.cost = fn
	}
}

// WithQualityFunc replaces the fixed quality policy.
func WithQualityFunc(fn federation.QualityFunc) Option {
	return func(f *Federation) {
		f.quality = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Federation) {
		f.logger = l
	}
}

// WithMetrics sets the Prometheus recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(f *Federation) {
		f.metrics = m
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(f *Federation) {
		f.tracer = t
	}
}

// WithHealthOptions passes options through to the health monitor.
func WithHealthOptions(opts ...federation.HealthOption) Option {
	return func(f *Federation) {
		f.healthOpts = append(f.healthOpts, opts...)
	}
}

// New creates an empty compute federation.
func New(opts ...Option) *Federation {
	f := &Federation{
		registry: federation.NewRegistry[Adapter](),
		affinity: federation.DefaultAffinity(),
		cost:     federation.TokenEstimateCost,
		quality:  federation.FixedQuality,
		logger:   telemetry.DefaultComponent(domain),
		tracer:   otel.Tracer("github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.retrier == nil {
		f.retrier = federation.NewRetrier(
			federation.WithDomain(domain),
			federation.WithRetryLogger(f.logger),
			federation.WithRetryMetrics(f.metrics),
		)
	}

	healthOpts := append([]federation.HealthOption{
		federation.WithHealthDomain(domain),
		federation.WithHealthLogger(f.logger),
		federation.WithHealthMetrics(f.metrics),
	}, f.healthOpts...)
	f.monitor = federation.NewHealthMonitor(f.registry, healthOpts...)

	return f
}

// Register adds a provider.
func (f *Federation) Register(cfg federation.DescriptorConfig, adapter Adapter) error {
	if err := f.registry.Register(federation.NewDescriptor(cfg), adapter); err != nil {
		return err
	}
	f.metrics.SetProviderHealthy(domain, cfg.ID, true)
	f.logger.Info().
		Str("backend", cfg.ID).
		Int("priority", cfg.Priority).
		Strs("models", cfg.Models).
		Msg("Provider registered")
	return nil
}

// Registry exposes the provider registry.
func (f *Federation) Registry() *federation.Registry[Adapter] {
	return f.registry
}

// Start launches the health monitor.
func (f *Federation) Start(ctx context.Context) {
	f.monitor.Start(ctx)
}

// CheckHealth probes every provider once.
func (f *Federation) CheckHealth(ctx context.Context) {
	f.monitor.CheckNow(ctx)
}

// ProcessRequest answers req from the best healthy provider.
//
// The primary candidate gets the full retry budget. When it is exhausted the
// remaining candidates are tried in ascending priority order, cheapest first,
// and a success is tagged "<id>-fallback" with reduced quality. Only
// ErrNoHealthyBackend and *AllProvidersFailedError reach the caller, apart
// from context cancellation.
func (f *Federation) ProcessRequest(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	r := *req
	if r.ID == "" {
		r.ID = NewRequestID()
	}

	ctx, span := f.tracer.Start(ctx, "compute.process", trace.WithAttributes(
		attribute.String("request.id", r.ID),
		attribute.String("request.type", r.Type),
	))
	defer span.End()

	candidates, err := federation.Select(r.Type, f.registry.List(), f.affinity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	primary := candidates[0]
	f.logger.Info().
		Str("request_id", r.ID).
		Str("backend", primary.ID()).
		Str("type", r.Type).
		Msg("Selected primary provider")

	out, latency, err := f.attempt(ctx, primary, &r)
	if err == nil {
		span.SetAttributes(attribute.String("provider", primary.ID()))
		return f.result(&r, primary, out, latency, start, false), nil
	}

	var exhausted *federation.ExhaustedError
	if !errors.As(err, &exhausted) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	f.logger.Error().Err(err).Str("request_id", r.ID).Msg("Primary provider exhausted, trying fallbacks")

	tried := []string{primary.ID()}
	errs := []error{err}

	fallbacks := append([]*federation.Member[Adapter](nil), candidates[1:]...)
	federation.SortByPriority(fallbacks, false)

	for _, m := range fallbacks {
		tried = append(tried, m.ID())

		out, latency, err := f.attempt(ctx, m, &r)
		if err == nil {
			f.metrics.RecordFallback(domain, m.ID())
			span.SetAttributes(attribute.String("provider", m.ID()), attribute.Bool("fallback", true))
			return f.result(&r, m, out, latency, start, true), nil
		}
		if !errors.As(err, &exhausted) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		f.logger.Warn().Err(err).Str("request_id", r.ID).Str("backend", m.ID()).Msg("Fallback provider also failed")
		errs = append(errs, err)
	}

	failed := federation.NewAllProvidersFailedError(tried, errs...)
	span.RecordError(failed)
	span.SetStatus(codes.Error, failed.Error())
	return nil, failed
}

func (f *Federation) attempt(ctx context.Context, m *federation.Member[Adapter], req *Request) (string, time.Duration, error) {
	ctx, span := f.tracer.Start(ctx, "compute.attempt", trace.WithAttributes(
		attribute.String("provider", m.ID()),
	))
	defer span.End()

	out, latency, err := federation.Invoke(ctx, f.retrier, m.Descriptor, "complete", func(ctx context.Context) (string, error) {
		return m.Adapter.Complete(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, latency, err
}

func (f *Federation) result(req *Request, m *federation.Member[Adapter], out string, latency time.Duration, start time.Time, fallback bool) *Result {
	provider := m.ID()
	if fallback {
		provider += "-fallback"
	}

	f.logger.Info().
		Str("request_id", req.ID).
		Str("provider", provider).
		Dur("latency", latency).
		Msg("Request processed")

	return &Result{
		ID:               req.ID,
		Provider:         provider,
		Result:           out,
		ProcessingTimeMs: float64(time.Since(start)) / float64(time.Millisecond),
		Quality:          f.quality(out, fallback),
		Cost:             f.cost(m.Descriptor, out),
		Metadata: map[string]any{
			"backend":   m.ID(),
			"type":      req.Type,
			"latencyMs": float64(latency) / float64(time.Millisecond),
		},
	}
}

// ListBackends returns a status snapshot for every provider.
func (f *Federation) ListBackends() []federation.Status {
	return f.registry.Statuses()
}

// Shutdown stops the health monitor.
func (f *Federation) Shutdown() {
	f.logger.Info().Msg("Shutting down compute federation")
	f.monitor.Stop()
}
