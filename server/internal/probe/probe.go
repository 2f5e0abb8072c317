// Package probe serves the standard gRPC health checking protocol
// (grpc.health.v1.Health) for orchestrator liveness and readiness checks.
//
// Both the overall service ("") and ServiceName report SERVING from Start
// until Stop. Stop flips them to NOT_SERVING before draining the server so
// probes see the hub going away before connections are refused.
package probe

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name registered for the hub.
const ServiceName = "aicebreaker.Hub"

// Probe is a gRPC server exposing only the health service.
type Probe struct {
	srv    *grpc.Server
	health *health.Server
}

// New creates a Probe. opts are passed to grpc.NewServer.
func New(opts ...grpc.ServerOption) *Probe {
	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &Probe{srv: srv, health: hs}
}

// Serve marks the hub SERVING and accepts connections on lis until Stop.
func (p *Probe) Serve(lis net.Listener) error {
	p.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	p.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	slog.Info("probe: gRPC health listening", "addr", lis.Addr().String())
	if err := p.srv.Serve(lis); err != nil {
		return fmt.Errorf("probe: serve: %w", err)
	}
	return nil
}

// Stop reports NOT_SERVING and gracefully stops the server.
func (p *Probe) Stop() {
	p.health.Shutdown()
	p.srv.GracefulStop()
}
