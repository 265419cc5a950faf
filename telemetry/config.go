package telemetry

import "time"

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`

	// Format is either "console" or "json".
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output"`

	// EnableCaller adds file:line to every entry.
	EnableCaller bool `mapstructure:"enableCaller"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`

	// Buckets overrides prometheus.DefBuckets for duration histograms.
	Buckets []float64 `mapstructure:"buckets"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Exporter is "stdout" or "none".
	Exporter string `mapstructure:"exporter" validate:"omitempty,oneof=stdout none"`

	// SamplingRate is the ratio of traces kept, 0.0 to 1.0.
	SamplingRate float64 `mapstructure:"samplingRate" validate:"gte=0,lte=1"`

	ExportTimeout time.Duration `mapstructure:"exportTimeout"`
}

// DefaultLoggingConfig returns console logging at info level on stderr.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}

// DefaultMetricsConfig returns enabled metrics under the "hyperdoc" namespace.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "hyperdoc",
		Path:      "/metrics",
	}
}

// DefaultTracingConfig returns tracing disabled.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Enabled:       false,
		Exporter:      "none",
		SamplingRate:  1.0,
		ExportTimeout: 30 * time.Second,
	}
}
