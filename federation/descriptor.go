package federation

import (
	"sort"
	"sync"
	"time"
)

// DefaultCostPerUnit is the rate assigned to backends that configure none.
const DefaultCostPerUnit = 0.001

// Metrics is the rolling record kept for each backend.
type Metrics struct {
	RequestCount     int64     `json:"requestCount"`
	AverageLatencyMs float64   `json:"averageLatencyMs"`
	ErrorCount       int64     `json:"errorCount"`
	LastRequestAt    time.Time `json:"lastRequestAt"`
	CostPerUnit      float64   `json:"costPerUnit"`
}

// Status is a point-in-time copy of a descriptor for introspection.
type Status struct {
	ID                  string   `json:"id"`
	Healthy             bool     `json:"healthy"`
	Priority            int      `json:"priority"`
	Capabilities        []string `json:"capabilities,omitempty"`
	Models              []string `json:"models,omitempty"`
	ConsecutiveFailures int      `json:"consecutiveFailures"`
	Metrics             Metrics  `json:"metrics"`
}

// DescriptorConfig is the static part of a descriptor.
type DescriptorConfig struct {
	ID           string
	Capabilities []string
	Priority     int
	Models       []string
	CostPerUnit  float64
}

// Descriptor describes one backend. The registry holds the only instance;
// the health monitor and retry executor mutate it through a pointer.
// Health and metrics are guarded by mu.
type Descriptor struct {
	id           string
	capabilities map[string]struct{}
	priority     int
	models       []string

	mu                  sync.Mutex
	healthy             bool
	consecutiveFailures int
	metrics             Metrics
}

// NewDescriptor creates a healthy descriptor with zeroed metrics.
func NewDescriptor(cfg DescriptorConfig) *Descriptor {
	caps := make(map[string]struct{}, len(cfg.Capabilities))
	for _, c := range cfg.Capabilities {
		caps[c] = struct{}{}
	}

	cost := cfg.CostPerUnit
	if cost == 0 {
		cost = DefaultCostPerUnit
	}

	return &Descriptor{
		id:           cfg.ID,
		capabilities: caps,
		priority:     cfg.Priority,
		models:       append([]string(nil), cfg.Models...),
		healthy:      true,
		metrics: Metrics{
			LastRequestAt: time.Now(),
			CostPerUnit:   cost,
		},
	}
}

// ID returns the backend identifier.
func (d *Descriptor) ID() string { return d.id }

// Priority returns the selection weight; higher is preferred.
func (d *Descriptor) Priority() int { return d.priority }

// Models returns the configured model names, first is the default.
func (d *Descriptor) Models() []string { return d.models }

// HasCapability reports whether the backend carries the tag.
func (d *Descriptor) HasCapability(tag string) bool {
	_, ok := d.capabilities[tag]
	return ok
}

// Capabilities returns the capability tags in sorted order.
func (d *Descriptor) Capabilities() []string {
	tags := make([]string, 0, len(d.capabilities))
	for t := range d.capabilities {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Healthy reports the current health flag.
func (d *Descriptor) Healthy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.healthy
}

// CostPerUnit returns the backend's current cost rate.
func (d *Descriptor) CostPerUnit() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metrics.CostPerUnit
}

// SetCostPerUnit updates the cost rate.
func (d *Descriptor) SetCostPerUnit(cost float64) {
	d.mu.Lock()
	d.metrics.CostPerUnit = cost
	d.mu.Unlock()
}

// RecordAttempt folds one invocation attempt into the metrics.
// Every attempt counts; success blends latency into the running average,
// failure increments the error counter.
func (d *Descriptor) RecordAttempt(latency time.Duration, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.metrics.RequestCount++
	d.metrics.LastRequestAt = time.Now()
	if err != nil {
		d.metrics.ErrorCount++
		return
	}
	d.metrics.AverageLatencyMs = blend(d.metrics.AverageLatencyMs, latency)
}

// RecordProbe applies a health probe outcome.
func (d *Descriptor) RecordProbe(latency time.Duration, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.healthy = false
		d.consecutiveFailures++
		d.metrics.ErrorCount++
		return
	}
	d.healthy = true
	d.consecutiveFailures = 0
	d.metrics.AverageLatencyMs = blend(d.metrics.AverageLatencyMs, latency)
}

// markUnhealthy records a confirmed failure from the retry executor.
func (d *Descriptor) markUnhealthy() {
	d.mu.Lock()
	d.healthy = false
	d.mu.Unlock()
}

// Metrics returns a copy of the current metrics.
func (d *Descriptor) Metrics() Metrics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metrics
}

// Status returns a copy of the descriptor state.
func (d *Descriptor) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		ID:                  d.id,
		Healthy:             d.healthy,
		Priority:            d.priority,
		Capabilities:        d.Capabilities(),
		Models:              d.models,
		ConsecutiveFailures: d.consecutiveFailures,
		Metrics:             d.metrics,
	}
}

// blend is the two-term running average (old + new) / 2.
func blend(oldMs float64, latency time.Duration) float64 {
	newMs := float64(latency) / float64(time.Millisecond)
	return (oldMs + newMs) / 2
}
