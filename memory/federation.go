package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

const (
	domain = "memory"

	// DefaultSearchLimit caps federation search output.
	DefaultSearchLimit = 10

	// Context enhancement parameters.
	EnhanceLimit     = 5
	EnhanceThreshold = 0.7
)

// Federation is the memory facade.
type Federation struct {
	registry *federation.Registry[Backend]
	primary  string
	monitor  *federation.HealthMonitor
	logger   zerolog.Logger
	metrics  *telemetry.Metrics

	healthOpts []federation.HealthOption
}

// Option configures the Federation.
type Option func(*Federation)

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

// WithHealthOptions passes options through to the health monitor.
func WithHealthOptions(opts ...federation.HealthOption) Option {
	return func(f *Federation) {
		f.healthOpts = append(f.healthOpts, opts...)
	}
}

// New creates an empty memory federation whose primary backend will be the
// one registered under primary.
func New(primary string, opts ...Option) *Federation {
	f := &Federation{
		registry: federation.NewRegistry[Backend](),
		primary:  primary,
		logger:   telemetry.DefaultComponent(domain),
	}
	for _, opt := range opts {
		opt(f)
	}

	healthOpts := append([]federation.HealthOption{
		federation.WithHealthDomain(domain),
		federation.WithHealthLogger(f.logger),
		federation.WithHealthMetrics(f.metrics),
	}, f.healthOpts...)
	f.monitor = federation.NewHealthMonitor(f.registry, healthOpts...)

	return f
}

// Register adds a backend.
func (f *Federation) Register(cfg federation.DescriptorConfig, b Backend) error {
	if err := f.registry.Register(federation.NewDescriptor(cfg), b); err != nil {
		return err
	}
	f.metrics.SetProviderHealthy(domain, cfg.ID, true)
	f.logger.Info().
		Str("backend", cfg.ID).
		Bool("primary", cfg.ID == f.primary).
		Msg("Memory backend registered")
	return nil
}

// Primary returns the id of the primary backend.
func (f *Federation) Primary() string {
	return f.primary
}

// Start launches the health monitor.
func (f *Federation) Start(ctx context.Context) {
	f.monitor.Start(ctx)
}

// CheckHealth probes every backend once.
func (f *Federation) CheckHealth(ctx context.Context) {
	f.monitor.CheckNow(ctx)
}

// Store writes to the primary, then replicates to every other backend.
// Only a missing or failing primary is reported.
func (f *Federation) Store(ctx context.Context, key string, value any, metadata map[string]any) error {
	primary, err := f.registry.Get(f.primary)
	if err != nil {
		f.metrics.RecordMemoryOperation("store", "error")
		return fmt.Errorf("primary memory backend: %w", err)
	}

	rec := &Record{
		Key:      key,
		Value:    value,
		Metadata: metadata,
		StoredAt: time.Now(),
	}

	if err := f.call(ctx, primary, "store", func(ctx context.Context) error {
		return primary.Adapter.Store(ctx, rec)
	}); err != nil {
		f.metrics.RecordMemoryOperation("store", "error")
		return fmt.Errorf("store %q in %s: %w", key, primary.ID(), err)
	}

	f.replicate(ctx, "store", key, func(ctx context.Context, m *federation.Member[Backend]) error {
		return m.Adapter.Store(ctx, rec)
	})

	f.metrics.RecordMemoryOperation("store", "ok")
	f.logger.Debug().Str("key", key).Msg("Stored in memory federation")
	return nil
}

// Retrieve returns the record under key from the primary, or from the first
// other backend that has it. The bool is false when every backend missed or
// failed.
func (f *Federation) Retrieve(ctx context.Context, key string) (*Record, bool) {
	for _, m := range f.readOrder() {
		var rec *Record
		err := f.call(ctx, m, "retrieve", func(ctx context.Context) error {
			var err error
			rec, err = m.Adapter.Retrieve(ctx, key)
			return err
		})
		if err != nil {
			f.logger.Warn().Err(err).Str("backend", m.ID()).Str("key", key).Msg("Retrieve failed")
			continue
		}
		if rec != nil {
			f.metrics.RecordMemoryOperation("retrieve", "hit")
			f.logger.Debug().Str("backend", m.ID()).Str("key", key).Msg("Retrieved from memory federation")
			return rec, true
		}
	}
	f.metrics.RecordMemoryOperation("retrieve", "miss")
	return nil, false
}

// readOrder is the primary followed by every other backend in registration
// order.
func (f *Federation) readOrder() []*federation.Member[Backend] {
	all := f.registry.List()
	out := make([]*federation.Member[Backend], 0, len(all))
	for _, m := range all {
		if m.ID() == f.primary {
			out = append([]*federation.Member[Backend]{m}, out...)
			continue
		}
		out = append(out, m)
	}
	return out
}

// Search queries every backend concurrently and merges the hits: each hit
// is tagged with its source, duplicates by exact content are dropped (first
// in registration order wins), the rest are ranked by descending score and
// cut to the limit. Backend failures are logged and skipped.
func (f *Federation) Search(ctx context.Context, q Query) []SearchResult {
	members := f.registry.List()
	opts := SearchOptions{
		Limit:     q.Limit,
		Threshold: q.Threshold,
		Metadata:  q.Metadata,
	}

	perBackend := make([][]SearchResult, len(members))
	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func(i int, m *federation.Member[Backend]) {
			defer wg.Done()

			var hits []SearchResult
			err := f.call(ctx, m, "search", func(ctx context.Context) error {
				var err error
				hits, err = m.Adapter.Search(ctx, q.Query, opts)
				return err
			})
			if err != nil {
				f.logger.Warn().Err(err).Str("backend", m.ID()).Msg("Search failed on backend")
				return
			}
			for j := range hits {
				hits[j].Source = m.ID()
			}
			perBackend[i] = hits
		}(i, m)
	}
	wg.Wait()

	var merged []SearchResult
	for _, hits := range perBackend {
		merged = append(merged, hits...)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	f.metrics.RecordMemoryOperation("search", "ok")
	return Rank(merged, limit)
}

// Rank drops entries whose content was already seen, sorts the rest by
// descending score keeping input order among equal scores, and truncates to
// limit.
func Rank(results []SearchResult, limit int) []SearchResult {
	seen := make(map[string]struct{}, len(results))
	unique := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if _, dup := seen[r.Content]; dup {
			continue
		}
		seen[r.Content] = struct{}{}
		unique = append(unique, r)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Score > unique[j].Score
	})

	if limit >= 0 && len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}

// Delete removes key from the primary, then from every other backend
// concurrently. Only a missing or failing primary is reported.
func (f *Federation) Delete(ctx context.Context, key string) error {
	primary, err := f.registry.Get(f.primary)
	if err != nil {
		f.metrics.RecordMemoryOperation("delete", "error")
		return fmt.Errorf("primary memory backend: %w", err)
	}

	if err := f.call(ctx, primary, "delete", func(ctx context.Context) error {
		return primary.Adapter.Delete(ctx, key)
	}); err != nil {
		f.metrics.RecordMemoryOperation("delete", "error")
		return fmt.Errorf("delete %q from %s: %w", key, primary.ID(), err)
	}

	f.replicate(ctx, "delete", key, func(ctx context.Context, m *federation.Member[Backend]) error {
		return m.Adapter.Delete(ctx, key)
	})

	f.metrics.RecordMemoryOperation("delete", "ok")
	return nil
}

// replicate runs op on every non-primary backend concurrently and waits for
// all of them. Failures are aggregated into one log line.
func (f *Federation) replicate(ctx context.Context, operation, key string, op func(context.Context, *federation.Member[Backend]) error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs *multierror.Error
	)
	for _, m := range f.registry.List() {
		if m.ID() == f.primary {
			continue
		}
		wg.Add(1)
		go func(m *federation.Member[Backend]) {
			defer wg.Done()
			err := f.call(ctx, m, operation, func(ctx context.Context) error {
				return op(ctx, m)
			})
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", m.ID(), err))
				mu.Unlock()
			}
		}(m)
	}
	wg.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		f.logger.Warn().Err(err).
			Str("operation", operation).
			Str("key", key).
			Int("failed", errs.Len()).
			Msg("Replica writes failed")
	}
}

// call runs one backend operation and folds the outcome into the
// backend's metrics.
func (f *Federation) call(ctx context.Context, m *federation.Member[Backend], operation string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	latency := time.Since(start)

	m.RecordAttempt(latency, err)
	f.metrics.RecordProviderCall(domain, m.ID(), operation, latency)
	if err != nil {
		f.metrics.RecordProviderError(domain, m.ID(), operation)
	}
	return err
}

// Enhancement is the memory context gathered for a request.
type Enhancement struct {
	Results []SearchResult `json:"context"`
	Sources []string       `json:"contextSources"`
}

// Enhanced reports whether any context was found.
func (e *Enhancement) Enhanced() bool {
	return e != nil && len(e.Results) > 0
}

// EnhanceWithContext searches for memories relevant to content.
func (f *Federation) EnhanceWithContext(ctx context.Context, content string) *Enhancement {
	results := f.Search(ctx, Query{
		Query:     content,
		Limit:     EnhanceLimit,
		Threshold: EnhanceThreshold,
	})

	sources := make([]string, len(results))
	for i, r := range results {
		sources[i] = r.Source
	}
	return &Enhancement{Results: results, Sources: sources}
}

// ListBackends returns a status snapshot for every backend in registration
// order.
func (f *Federation) ListBackends() []federation.Status {
	return f.registry.Statuses()
}

// Providers returns backend ids in registration order.
func (f *Federation) Providers() []string {
	members := f.registry.List()
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID()
	}
	return ids
}

// Shutdown stops the health monitor and closes every backend.
func (f *Federation) Shutdown() error {
	f.logger.Info().Msg("Shutting down memory federation")
	f.monitor.Stop()

	var errs *multierror.Error
	for _, m := range f.registry.List() {
		if err := m.Adapter.Close(); err != nil {
			f.logger.Error().Err(err).Str("backend", m.ID()).Msg("Error closing memory backend")
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", m.ID(), err))
		}
	}
	return errs.ErrorOrNil()
}
