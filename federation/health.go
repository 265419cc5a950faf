package federation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

const (
	// DefaultHealthInterval is how often every backend is probed.
	DefaultHealthInterval = 30 * time.Second

	// DefaultProbeTimeout bounds a single capability probe.
	DefaultProbeTimeout = 10 * time.Second
)

// Target is a backend the health monitor can probe.
type Target interface {
	ID() string
	Healthy() bool
	Probe(ctx context.Context) error
	RecordProbe(latency time.Duration, err error)
}

// TargetSource supplies the current probe targets on every sweep.
type TargetSource interface {
	Targets() []Target
}

// HealthMonitor probes every backend on a fixed interval, regardless of its
// current health, so a recovered backend is picked up within one interval.
// Probe failures only flip the health flag; they are logged, never returned.
type HealthMonitor struct {
	source   TargetSource
	interval time.Duration
	timeout  time.Duration
	domain   string
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	onChange func(id string, healthy bool)
	onProbe  func(id string, healthy bool)

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// HealthOption configures a HealthMonitor.
type HealthOption func(*HealthMonitor)

// WithInterval sets the probe interval.
func WithInterval(d time.Duration) HealthOption {
	return func(h *HealthMonitor) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithProbeTimeout bounds each probe call.
func WithProbeTimeout(d time.Duration) HealthOption {
	return func(h *HealthMonitor) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithHealthDomain sets the metrics domain label.
func WithHealthDomain(domain string) HealthOption {
	return func(h *HealthMonitor) {
		h.domain = domain
	}
}

// WithHealthLogger sets the logger.
func WithHealthLogger(l zerolog.Logger) HealthOption {
	return func(h *HealthMonitor) {
		h.logger = l
	}
}

// WithHealthMetrics sets the Prometheus recorder.
func WithHealthMetrics(m *telemetry.Metrics) HealthOption {
	return func(h *HealthMonitor) {
		h.metrics = m
	}
}

// WithOnChange registers a callback invoked when a backend's health flips.
func WithOnChange(fn func(id string, healthy bool)) HealthOption {
	return func(h *HealthMonitor) {
		h.onChange = fn
	}
}

// WithOnProbe registers a callback invoked with the outcome of every probe,
// whether or not the health flag flipped. Health can also be lowered outside
// the monitor (retry exhaustion), so mirrors of the health state should use
// this rather than WithOnChange.
func WithOnProbe(fn func(id string, healthy bool)) HealthOption {
	return func(h *HealthMonitor) {
		h.onProbe = fn
	}
}

// NewHealthMonitor creates a monitor over source. Call Start to begin probing.
func NewHealthMonitor(source TargetSource, opts ...HealthOption) *HealthMonitor {
	h := &HealthMonitor{
		source:   source,
		interval: DefaultHealthInterval,
		timeout:  DefaultProbeTimeout,
		domain:   "compute",
		logger:   telemetry.DefaultComponent("health"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start launches the probe loop. The first sweep runs immediately.
// Calling Start on a running monitor is a no-op.
func (h *HealthMonitor) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true

	h.wg.Add(1)
	go h.loop(ctx)
}

// Stop cancels the probe loop and waits for the in-flight sweep to finish.
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.cancel()
	h.running = false
	h.mu.Unlock()

	h.wg.Wait()
	h.logger.Info().Msg("Health monitor stopped")
}

func (h *HealthMonitor) loop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info().Dur("interval", h.interval).Msg("Health monitor started")

	h.CheckNow(ctx)

	for {
		select {
		case <-ticker.C:
			h.CheckNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckNow probes every target once. Probes run concurrently, so a sweep takes
// at most one probe timeout; CheckNow returns when all of them finished.
func (h *HealthMonitor) CheckNow(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	var wg sync.WaitGroup
	for _, t := range h.source.Targets() {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			h.check(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (h *HealthMonitor) check(ctx context.Context, t Target) {
	wasHealthy := t.Healthy()

	probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
	start := time.Now()
	err := t.Probe(probeCtx)
	latency := time.Since(start)
	cancel()

	t.RecordProbe(latency, err)
	h.metrics.SetProviderHealthy(h.domain, t.ID(), err == nil)

	if err != nil {
		h.logger.Error().Err(err).Str("backend", t.ID()).Msg("Health check failed")
	} else {
		h.logger.Debug().Str("backend", t.ID()).Dur("latency", latency).Msg("Health check passed")
	}

	healthy := err == nil
	if h.onProbe != nil {
		h.onProbe(t.ID(), healthy)
	}
	if healthy != wasHealthy {
		h.logger.Info().Str("backend", t.ID()).Bool("healthy", healthy).Msg("Backend health changed")
		if h.onChange != nil {
			h.onChange(t.ID(), healthy)
		}
	}
}
