// Package server exposes the engine, the memory federation and the tool
// bridge over HTTP and WebSocket, and mirrors backend health over gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/core"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

// Defaults for Config.
const (
	DefaultMaxBodyBytes    = 50 << 20
	DefaultShutdownTimeout = 10 * time.Second
)

// Processor answers compute requests. *engine.Engine implements it.
type Processor interface {
	Process(ctx context.Context, req *compute.Request) (*compute.Result, error)
}

// ProviderStatus lists compute providers. *compute.Federation implements it.
type ProviderStatus interface {
	ListBackends() []federation.Status
}

// MemoryService is the memory surface. *memory.Federation implements it.
type MemoryService interface {
	Store(ctx context.Context, key string, value any, metadata map[string]any) error
	Retrieve(ctx context.Context, key string) (*memory.Record, bool)
	Search(ctx context.Context, q memory.Query) []memory.SearchResult
	Delete(ctx context.Context, key string) error
	ListBackends() []federation.Status
}

// ToolService is the tool surface. *tools.Bridge implements it.
type ToolService interface {
	Execute(ctx context.Context, name string, params *core.ToolParams) (*core.ToolResult, error)
	Definitions() []core.ToolDefinition
	Count() int
}

// Config configures the HTTP listener.
type Config struct {
	Addr            string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	MetricsPath     string
}

// Server is the HTTP transport.
type Server struct {
	cfg       Config
	processor Processor
	providers ProviderStatus
	memory    MemoryService
	tools     ToolService
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
	router    chi.Router
}

// Option configures the Server.
type Option func(*Server)

// WithProviders enables GET /providers/status.
func WithProviders(p ProviderStatus) Option {
	return func(s *Server) {
		s.providers = p
	}
}

// WithMemory enables the /memory routes.
func WithMemory(m MemoryService) Option {
	return func(s *Server) {
		s.memory = m
	}
}

// WithTools enables the /mcp routes.
func WithTools(t ToolService) Option {
	return func(s *Server) {
		s.tools = t
	}
}

// WithMetrics serves m at the metrics path.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a server answering compute requests through p.
func New(cfg Config, p Processor, opts ...Option) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		cfg:       cfg,
		processor: p,
		logger:    telemetry.DefaultComponent("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestSize(s.cfg.MaxBodyBytes))

		r.Post("/ai/process", s.handleProcess)

		if s.providers != nil {
			r.Get("/providers/status", s.handleProviderStatus)
		}

		if s.memory != nil {
			r.Route("/memory", func(r chi.Router) {
				r.Post("/store", s.handleMemoryStore)
				r.Post("/search", s.handleMemorySearch)
				r.Get("/backends", s.handleMemoryBackends)
				// Keys may contain slashes. /memory/keys/* also reaches keys that
				// collide with the fixed routes above, such as "backends".
				r.Get("/keys/*", s.handleMemoryRetrieve)
				r.Delete("/keys/*", s.handleMemoryDelete)
				r.Get("/*", s.handleMemoryRetrieve)
				r.Delete("/*", s.handleMemoryDelete)
			})
		}

		if s.tools != nil {
			r.Route("/mcp", func(r chi.Router) {
				r.Post("/execute", s.handleToolExecute)
				r.Get("/tools", s.handleToolList)
			})
		}
	})

	if s.metrics != nil && s.metrics.Registry() != nil {
		r.Handle(s.cfg.MetricsPath, s.metrics.Handler())
	}
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", lis.Addr().String()).Msg("HTTP server listening")
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
