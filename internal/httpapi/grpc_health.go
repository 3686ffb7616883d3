package httpapi

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"jsonwidget.org/internal/obs"
)

// GRPCHealth answers the standard grpc.health.v1 protocol from the same
// readiness checks as /readyz.
type GRPCHealth struct {
	healthpb.UnimplementedHealthServer

	readiness Checker
}

func NewGRPCHealth(r Checker) *GRPCHealth {
	return &GRPCHealth{readiness: r}
}

// Check accepts the empty service name and serviceName; anything else is NotFound.
func (s *GRPCHealth) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != serviceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if s.readiness != nil {
		if err := s.readiness.Check(ctx); err != nil {
			obs.SetReady(false)
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	obs.SetReady(true)
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
