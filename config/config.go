// Package config loads the server configuration from hyperdoc.{yaml,json,toml}
// and HYPERDOC_* environment variables.
package config

import (
	"os"
	"time"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

// Provider kinds.
const (
	KindAnthropic   = "anthropic"
	KindOpenAI      = "openai"
	KindGemini      = "gemini"
	KindAnythingLLM = "anythingllm"
)

// Memory backend kinds.
const (
	KindChromem   = "chromem"
	KindSQLite    = "sqlite"
	KindRistretto = "ristretto"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig            `mapstructure:"server"`
	Compute ComputeConfig           `mapstructure:"compute"`
	Memory  MemoryConfig            `mapstructure:"memory"`
	MCP     MCPConfig               `mapstructure:"mcp"`
	Engine  EngineConfig            `mapstructure:"engine"`
	Logging telemetry.LoggingConfig `mapstructure:"logging"`
	Metrics telemetry.MetricsConfig `mapstructure:"metrics"`
	Tracing telemetry.TracingConfig `mapstructure:"tracing"`
}

// ServerConfig configures the HTTP and gRPC listeners.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gte=1,lte=65535"`

	// GRPCPort serves the gRPC health service. Zero disables it.
	GRPCPort int `mapstructure:"grpcPort" validate:"gte=0,lte=65535"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `mapstructure:"maxBodyBytes" validate:"gte=0"`

	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// ComputeConfig configures the compute federation.
type ComputeConfig struct {
	HealthInterval time.Duration `mapstructure:"healthInterval"`
	ProbeTimeout   time.Duration `mapstructure:"probeTimeout"`
	MaxAttempts    int           `mapstructure:"maxAttempts" validate:"gte=1,lte=10"`

	// RetryUnit scales the 2^n backoff between attempts.
	RetryUnit time.Duration `mapstructure:"retryUnit"`

	// Affinity overrides the request-type routing table.
	Affinity map[string]string `mapstructure:"affinity"`

	Providers []ProviderConfig `mapstructure:"providers" validate:"dive"`
}

// ProviderConfig describes one compute provider.
type ProviderConfig struct {
	ID           string   `mapstructure:"id" validate:"required"`
	Kind         string   `mapstructure:"kind" validate:"required,oneof=anthropic openai gemini anythingllm"`
	Enabled      bool     `mapstructure:"enabled"`
	Priority     int      `mapstructure:"priority" validate:"gte=0,lte=100"`
	Models       []string `mapstructure:"models"`
	Capabilities []string `mapstructure:"capabilities"`
	CostPerUnit  float64  `mapstructure:"costPerUnit" validate:"gte=0"`

	BaseURL    string `mapstructure:"baseURL" validate:"omitempty,url"`
	BaseURLEnv string `mapstructure:"baseURLEnv"`
	APIKey     string `mapstructure:"apiKey"`
	APIKeyEnv  string `mapstructure:"apiKeyEnv"`

	// Workspace selects the AnythingLLM workspace.
	Workspace string `mapstructure:"workspace"`
}

// ResolveAPIKey returns the configured key, falling back to APIKeyEnv.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// ResolveBaseURL returns BaseURLEnv when set in the environment, else BaseURL.
func (p ProviderConfig) ResolveBaseURL() string {
	if p.BaseURLEnv != "" {
		if v := os.Getenv(p.BaseURLEnv); v != "" {
			return v
		}
	}
	return p.BaseURL
}

// Usable reports whether the provider is enabled and has credentials. Local
// AnythingLLM servers may run without a key.
func (p ProviderConfig) Usable() bool {
	if !p.Enabled {
		return false
	}
	return p.Kind == KindAnythingLLM || p.ResolveAPIKey() != ""
}

// MemoryConfig configures the memory federation.
type MemoryConfig struct {
	// Primary names the backend that must accept every write.
	Primary        string          `mapstructure:"primary" validate:"required"`
	HealthInterval time.Duration   `mapstructure:"healthInterval"`
	Backends       []BackendConfig `mapstructure:"backends" validate:"required,min=1,dive"`
}

// BackendConfig describes one memory backend.
type BackendConfig struct {
	ID       string `mapstructure:"id" validate:"required"`
	Kind     string `mapstructure:"kind" validate:"required,oneof=chromem sqlite ristretto"`
	Enabled  bool   `mapstructure:"enabled"`
	Priority int    `mapstructure:"priority" validate:"gte=0,lte=100"`

	// Path is the chromem persistence directory or the sqlite file. Empty
	// keeps the backend in memory.
	Path       string `mapstructure:"path"`
	Collection string `mapstructure:"collection"`
	Dimensions int    `mapstructure:"dimensions" validate:"gte=0"`

	MaxItems int64         `mapstructure:"maxItems" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MCPConfig configures the tool bridge.
type MCPConfig struct {
	// GatewayURL receives tool calls. Empty acknowledges calls locally.
	GatewayURL string `mapstructure:"gatewayURL" validate:"omitempty,url"`
	Token      string `mapstructure:"token"`
	TokenEnv   string `mapstructure:"tokenEnv"`

	Servers []string `mapstructure:"servers" validate:"dive,oneof=notion github evidence"`
}

// ResolveToken returns the configured token, falling back to TokenEnv.
func (m MCPConfig) ResolveToken() string {
	if m.Token != "" {
		return m.Token
	}
	if m.TokenEnv != "" {
		return os.Getenv(m.TokenEnv)
	}
	return ""
}

// EngineConfig configures the request pipeline.
type EngineConfig struct {
	EnhanceWithMemory bool `mapstructure:"enhanceWithMemory"`
	RecordResults     bool `mapstructure:"recordResults"`
}

// DefaultConfig returns the built-in provider table and memory layout.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			MaxBodyBytes:    50 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Compute: ComputeConfig{
			HealthInterval: 30 * time.Second,
			ProbeTimeout:   10 * time.Second,
			MaxAttempts:    3,
			RetryUnit:      time.Second,
			Providers:      DefaultProviders(),
		},
		Memory: MemoryConfig{
			Primary:        "supermemory",
			HealthInterval: 30 * time.Second,
			Backends: []BackendConfig{
				{ID: "supermemory", Kind: KindChromem, Enabled: true, Priority: 100, Collection: "memories"},
				{ID: "mem0", Kind: KindSQLite, Enabled: true, Priority: 90},
				{ID: "memoryos", Kind: KindRistretto, Enabled: true, Priority: 80, MaxItems: 10000},
			},
		},
		MCP: MCPConfig{
			TokenEnv: "MCP_GATEWAY_TOKEN",
			Servers:  []string{"notion", "github", "evidence"},
		},
		Engine: EngineConfig{
			EnhanceWithMemory: true,
		},
		Logging: telemetry.DefaultLoggingConfig(),
		Metrics: telemetry.DefaultMetricsConfig(),
		Tracing: telemetry.DefaultTracingConfig(),
	}
}

// DefaultProviders returns the compute provider table.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			ID: "openai", Kind: KindOpenAI, Enabled: true, Priority: 95,
			Models:       []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo"},
			Capabilities: []string{"text", "document"},
			BaseURL:      "https://api.openai.com/v1",
			APIKeyEnv:    "OPENAI_API_KEY",
		},
		{
			ID: "deepseek", Kind: KindOpenAI, Enabled: true, Priority: 90,
			Models:       []string{"deepseek-chat", "deepseek-coder"},
			Capabilities: []string{"math", "code"},
			BaseURL:      "https://api.deepseek.com/v1",
			BaseURLEnv:   "DEEPSEEK_BASE_URL",
			APIKeyEnv:    "DEEPSEEK_API_KEY",
		},
		{
			ID: "anthropic", Kind: KindAnthropic, Enabled: true, Priority: 92,
			Models:       []string{"claude-sonnet-4-20250514", "claude-3-5-haiku-20241022"},
			Capabilities: []string{"legal", "evidence", "text"},
			APIKeyEnv:    "ANTHROPIC_API_KEY",
		},
		{
			ID: "gemini", Kind: KindGemini, Enabled: true, Priority: 88,
			Models:       []string{"gemini-1.5-pro", "gemini-1.5-flash"},
			Capabilities: []string{"document", "text"},
			APIKeyEnv:    "GEMINI_API_KEY",
		},
		{
			ID: "groq", Kind: KindOpenAI, Enabled: true, Priority: 85,
			Models:       []string{"llama-3.2-90b-text-preview", "mixtral-8x7b-32768"},
			Capabilities: []string{"text"},
			BaseURL:      "https://api.groq.com/openai/v1",
			APIKeyEnv:    "GROQ_API_KEY",
		},
		{
			ID: "together", Kind: KindOpenAI, Enabled: true, Priority: 83,
			Models:       []string{"meta-llama/Llama-3.2-90B-Vision-Instruct-Turbo"},
			Capabilities: []string{"text"},
			BaseURL:      "https://api.together.xyz/v1",
			APIKeyEnv:    "TOGETHER_AI_API_KEY",
		},
		{
			ID: "local", Kind: KindAnythingLLM, Enabled: true, Priority: 80,
			Models:       []string{"llama3.2", "qwen2.5"},
			Capabilities: []string{"text"},
			BaseURL:      "http://localhost:3001/api",
			BaseURLEnv:   "ANYTHING_LLM_URL",
			APIKeyEnv:    "ANYTHING_LLM_KEY",
			Workspace:    "default",
		},
	}
}
