// Package handler implements the standard grpc.health.v1 Health service for readiness probes.
package handler

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const checkTimeout = 2 * time.Second

// Pinger checks the session store connection. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the policy engine can evaluate. *engine.OPAEvaluator satisfies it.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server answers health checks for the whole server and for each registered service name.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger   Pinger
	checker  PolicyChecker
	services map[string]bool
}

// NewServer returns a health server. Nil dependencies are skipped, e.g. with the memory store.
func NewServer(pinger Pinger, checker PolicyChecker, services ...string) *Server {
	known := map[string]bool{"": true}
	for _, s := range services {
		known[s] = true
	}
	return &Server{pinger: pinger, checker: checker, services: known}
}

// Check reports SERVING when the store and the policy engine respond.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if !s.services[req.GetService()] {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if s.pinger != nil {
		if err := s.pinger.PingContext(ctx); err != nil {
			log.Printf("health: store ping failed: %v", err)
			return notServing(), nil
		}
	}
	if s.checker != nil {
		if err := s.checker.HealthCheck(ctx); err != nil {
			log.Printf("health: policy check failed: %v", err)
			return notServing(), nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func notServing() *healthpb.HealthCheckResponse {
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
}
