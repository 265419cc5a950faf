package server

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/telemetry"
)

// HealthServer publishes backend health through the standard gRPC health
// service. Each backend is a service named "<domain>/<id>"; the empty
// service reports the process itself.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

// NewHealthServer creates a health server with the process marked serving.
func NewHealthServer(logger *zerolog.Logger) *HealthServer {
	l := telemetry.DefaultComponent("grpc-health")
	if logger != nil {
		l = *logger
	}

	h := &HealthServer{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		logger: l,
	}
	healthpb.RegisterHealthServer(h.grpc, h.health)
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return h
}

// SetServing records the health of one service.
func (h *HealthServer) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(service, status)
}

// Track publishes the current status of every backend under domain.
func (h *HealthServer) Track(domain string, statuses []federation.Status) {
	for _, st := range statuses {
		h.SetServing(domain+"/"+st.ID, st.Healthy)
	}
}

// Mirror returns a health-monitor callback that publishes probe outcomes for
// domain. Wire it with federation.WithOnProbe.
func (h *HealthServer) Mirror(domain string) func(id string, healthy bool) {
	return func(id string, healthy bool) {
		h.SetServing(domain+"/"+id, healthy)
	}
}

// Serve blocks serving gRPC on lis.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return h.grpc.Serve(lis)
}

// Stop marks everything not serving and stops the server gracefully.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
