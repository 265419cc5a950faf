package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HYPERDOC_SERVER_PORT.
const EnvPrefix = "HYPERDOC"

// ConfigError reports a semantic configuration problem.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// Load reads the configuration. An explicit path must exist; otherwise
// hyperdoc.{yaml,json,toml} is looked up in the working directory and
// defaults apply when none is found. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("logging.level", EnvPrefix+"_LOGGING_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hyperdoc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Lists are replaced wholesale rather than merged element by element.
	cfg := DefaultConfig()
	cfg.Compute.Providers = nil
	cfg.Memory.Backends = nil
	cfg.MCP.Servers = nil
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	defaults := DefaultConfig()
	if cfg.Compute.Providers == nil {
		cfg.Compute.Providers = defaults.Compute.Providers
	}
	if cfg.Memory.Backends == nil {
		cfg.Memory.Backends = defaults.Memory.Backends
	}
	if cfg.MCP.Servers == nil {
		cfg.MCP.Servers = defaults.MCP.Servers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers the scalar defaults so environment overrides apply
// even without a config file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.grpcPort", d.Server.GRPCPort)
	v.SetDefault("server.maxBodyBytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.shutdownTimeout", d.Server.ShutdownTimeout)

	v.SetDefault("compute.healthInterval", d.Compute.HealthInterval)
	v.SetDefault("compute.probeTimeout", d.Compute.ProbeTimeout)
	v.SetDefault("compute.maxAttempts", d.Compute.MaxAttempts)
	v.SetDefault("compute.retryUnit", d.Compute.RetryUnit)

	v.SetDefault("memory.primary", d.Memory.Primary)
	v.SetDefault("memory.healthInterval", d.Memory.HealthInterval)

	v.SetDefault("mcp.gatewayURL", d.MCP.GatewayURL)
	v.SetDefault("mcp.token", d.MCP.Token)
	v.SetDefault("mcp.tokenEnv", d.MCP.TokenEnv)

	v.SetDefault("engine.enhanceWithMemory", d.Engine.EnhanceWithMemory)
	v.SetDefault("engine.recordResults", d.Engine.RecordResults)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.enableCaller", d.Logging.EnableCaller)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.samplingRate", d.Tracing.SamplingRate)
	v.SetDefault("tracing.exportTimeout", d.Tracing.ExportTimeout)
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{
				Field:   fe.Namespace(),
				Message: fmt.Sprintf("failed %q validation (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return fmt.Errorf("validate config: %w", err)
	}

	seen := make(map[string]bool)
	for i, p := range c.Compute.Providers {
		if seen[p.ID] {
			return &ConfigError{
				Field:   fmt.Sprintf("compute.providers[%d].id", i),
				Message: fmt.Sprintf("duplicate provider %q", p.ID),
			}
		}
		seen[p.ID] = true
	}

	seen = make(map[string]bool)
	primaryEnabled := false
	for i, b := range c.Memory.Backends {
		if seen[b.ID] {
			return &ConfigError{
				Field:   fmt.Sprintf("memory.backends[%d].id", i),
				Message: fmt.Sprintf("duplicate backend %q", b.ID),
			}
		}
		seen[b.ID] = true
		if b.ID == c.Memory.Primary && b.Enabled {
			primaryEnabled = true
		}
	}
	if !primaryEnabled {
		return &ConfigError{
			Field:   "memory.primary",
			Message: fmt.Sprintf("primary backend %q is not an enabled backend", c.Memory.Primary),
		}
	}

	if c.Server.GRPCPort != 0 && c.Server.GRPCPort == c.Server.Port {
		return &ConfigError{Field: "server.grpcPort", Message: "must differ from server.port"}
	}
	return nil
}

// UsableProviders returns the providers that are enabled and have credentials.
func (c *Config) UsableProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, p := range c.Compute.Providers {
		if p.Usable() {
			out = append(out, p)
		}
	}
	return out
}

// EnabledBackends returns the enabled memory backends.
func (c *Config) EnabledBackends() []BackendConfig {
	var out []BackendConfig
	for _, b := range c.Memory.Backends {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}
