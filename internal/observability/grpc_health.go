package observability

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultHealthRefresh is how often the gRPC health status is recomputed.
const DefaultHealthRefresh = 10 * time.Second

// GRPCHealth serves grpc.health.v1.Health with a status derived from the same
// dependency checks as the HTTP readiness endpoint.
type GRPCHealth struct {
	server   *grpc.Server
	health   *health.Server
	checks   []HealthCheck
	interval time.Duration
	logger   zerolog.Logger
}

// NewGRPCHealth creates a health server. A non-positive interval selects
// DefaultHealthRefresh.
func NewGRPCHealth(interval time.Duration, checks ...HealthCheck) *GRPCHealth {
	if interval <= 0 {
		interval = DefaultHealthRefresh
	}

	g := &GRPCHealth{
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		checks:   checks,
		interval: interval,
		logger:   GetLogger().With().Str("component", "grpc_health").Logger(),
	}
	healthpb.RegisterHealthServer(g.server, g.health)
	return g
}

// Refresh runs the checks once and publishes the result for both the overall
// server and the named service.
func (g *GRPCHealth) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	ok, deps := RunChecks(ctx, g.checks)
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		g.logger.Warn().Interface("dependencies", deps).Msg("Dependency check failed")
	}

	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
	return ok
}

// Check answers a health request without going through the network.
func (g *GRPCHealth) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Serve accepts gRPC connections on lis and refreshes the status until ctx is
// cancelled.
func (g *GRPCHealth) Serve(ctx context.Context, lis net.Listener) error {
	g.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				g.health.Shutdown()
				g.server.GracefulStop()
				return
			case <-ticker.C:
				g.Refresh(ctx)
			}
		}
	}()

	g.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	if err := g.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
