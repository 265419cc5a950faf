// Package app assembles the federations, the tool bridge, the engine and the
// transports from a config.Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/config"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/engine"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/server"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/tools"
)

// ServiceName labels traces.
const ServiceName = "hyperdoc"

// App is a fully wired server process.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer

	Compute *compute.Federation
	Memory  *memory.Federation
	Tools   *tools.Bridge
	Engine  *engine.Engine

	HTTP   *server.Server
	Health *server.HealthServer
}

// New builds every component. Providers without credentials are skipped.
func New(cfg *config.Config, logger zerolog.Logger, version string) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	metrics, err := telemetry.NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.Metrics = metrics

	tracer, err := telemetry.NewTracer(cfg.Tracing, ServiceName, version)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.Tracer = tracer

	if cfg.Server.GRPCPort != 0 {
		hl := telemetry.Component(logger, "grpc-health")
		a.Health = server.NewHealthServer(&hl)
	}

	if err := a.buildCompute(); err != nil {
		return nil, err
	}
	if err := a.buildMemory(); err != nil {
		return nil, err
	}
	if err := a.buildTools(); err != nil {
		_ = a.Memory.Shutdown()
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithTools(a.Tools),
		engine.WithRecordResults(cfg.Engine.RecordResults),
		engine.WithLogger(telemetry.Component(logger, "engine")),
	}
	if cfg.Engine.EnhanceWithMemory || cfg.Engine.RecordResults {
		engineOpts = append(engineOpts, engine.WithMemory(a.Memory))
	}
	a.Engine = engine.New(a.Compute, engineOpts...)

	a.HTTP = server.New(server.Config{
		Addr:            net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsPath:     cfg.Metrics.Path,
	}, a.Engine,
		server.WithProviders(a.Compute),
		server.WithMemory(a.Memory),
		server.WithTools(a.Tools),
		server.WithMetrics(metrics),
		server.WithLogger(telemetry.Component(logger, "server")),
	)

	logger.Info().
		Int("providers", a.Compute.Registry().Len()).
		Int("memory_backends", len(a.Memory.Providers())).
		Int("tools", a.Tools.Count()).
		Msg("Application assembled")
	return a, nil
}

func (a *App) buildCompute() error {
	cfg := a.Config.Compute
	log := telemetry.Component(a.Logger, "compute")

	healthOpts := []federation.HealthOption{
		federation.WithInterval(cfg.HealthInterval),
		federation.WithProbeTimeout(cfg.ProbeTimeout),
	}
	if a.Health != nil {
		healthOpts = append(healthOpts, federation.WithOnProbe(a.Health.Mirror("compute")))
	}

	opts := []compute.Option{
		compute.WithLogger(log),
		compute.WithMetrics(a.Metrics),
		compute.WithTracer(a.Tracer.Tracer("github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute")),
		compute.WithRetrier(federation.NewRetrier(
			federation.WithMaxAttempts(cfg.MaxAttempts),
			federation.WithUnit(cfg.RetryUnit),
			federation.WithDomain("compute"),
			federation.WithRetryLogger(log),
			federation.WithRetryMetrics(a.Metrics),
		)),
		compute.WithHealthOptions(healthOpts...),
	}
	if len(cfg.Affinity) > 0 {
		opts = append(opts, compute.WithAffinity(federation.Affinity(cfg.Affinity)))
	}
	a.Compute = compute.New(opts...)

	for _, p := range cfg.Providers {
		if !p.Usable() {
			if p.Enabled {
				log.Warn().Str("backend", p.ID).Msg("Provider has no credentials, skipping")
			}
			continue
		}
		adapter, err := NewAdapter(p)
		if err != nil {
			return err
		}
		if err := a.Compute.Register(federation.DescriptorConfig{
			ID:           p.ID,
			Capabilities: p.Capabilities,
			Priority:     p.Priority,
			Models:       p.Models,
			CostPerUnit:  p.CostPerUnit,
		}, adapter); err != nil {
			return fmt.Errorf("register provider %s: %w", p.ID, err)
		}
	}

	if a.Health != nil {
		a.Health.Track("compute", a.Compute.ListBackends())
	}
	return nil
}

func (a *App) buildMemory() error {
	cfg := a.Config.Memory

	healthOpts := []federation.HealthOption{
		federation.WithInterval(cfg.HealthInterval),
	}
	if a.Health != nil {
		healthOpts = append(healthOpts, federation.WithOnProbe(a.Health.Mirror("memory")))
	}

	a.Memory = memory.New(cfg.Primary,
		memory.WithLogger(telemetry.Component(a.Logger, "memory")),
		memory.WithMetrics(a.Metrics),
		memory.WithHealthOptions(healthOpts...),
	)

	for _, b := range a.Config.EnabledBackends() {
		backend, err := NewBackend(b, a.Logger)
		if err != nil {
			_ = a.Memory.Shutdown()
			return err
		}
		if err := a.Memory.Register(federation.DescriptorConfig{ID: b.ID, Priority: b.Priority}, backend); err != nil {
			_ = backend.Close()
			_ = a.Memory.Shutdown()
			return fmt.Errorf("register memory backend %s: %w", b.ID, err)
		}
	}

	if a.Health != nil {
		a.Health.Track("memory", a.Memory.ListBackends())
	}
	return nil
}

func (a *App) buildTools() error {
	cfg := a.Config.MCP

	a.Tools = tools.NewBridge(
		tools.WithLogger(telemetry.Component(a.Logger, "tools")),
		tools.WithMetrics(a.Metrics),
	)

	exec := NewToolExecutor(cfg)
	for _, name := range cfg.Servers {
		defs, err := tools.Definitions(name)
		if err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		if err := a.Tools.RegisterServer(name, tools.Tools(exec, defs...)...); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}
	return nil
}

// Start launches the health monitors.
func (a *App) Start(ctx context.Context) {
	a.Compute.Start(ctx)
	a.Memory.Start(ctx)
}

// Run starts the monitors and serves HTTP, plus gRPC health when enabled,
// until ctx is cancelled. Everything is shut down before Run returns.
func (a *App) Run(ctx context.Context) error {
	a.Start(ctx)

	grpcErr := make(chan error, 1)
	if a.Health != nil {
		addr := net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.GRPCPort))
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return errors.Join(fmt.Errorf("listen %s: %w", addr, err), a.Shutdown(context.Background()))
		}
		go func() { grpcErr <- a.Health.Serve(lis) }()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case err := <-grpcErr:
			if err != nil {
				a.Logger.Error().Err(err).Msg("gRPC health server stopped")
			}
			cancel()
		case <-runCtx.Done():
		}
	}()

	serveErr := a.HTTP.ListenAndServe(runCtx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer stop()
	return errors.Join(serveErr, a.Shutdown(shutdownCtx))
}

// Shutdown stops the monitors, closes every memory backend and flushes
// traces.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info().Msg("Shutting down")

	var errs *multierror.Error
	if a.Health != nil {
		a.Health.Stop()
	}
	a.Compute.Shutdown()
	if err := a.Memory.Shutdown(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("memory: %w", err))
	}
	if err := a.Tracer.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("tracer: %w", err))
	}
	return errs.ErrorOrNil()
}
