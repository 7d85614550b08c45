// Package server assembles the gRPC server: standard health service, reflection,
// OpenTelemetry stats handler and the auth, audit and telemetry interceptors.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/hugo617/healthcare-admin-sub001/internal/audit"
	"github.com/hugo617/healthcare-admin-sub001/internal/server/interceptors"
	"github.com/hugo617/healthcare-admin-sub001/internal/telemetry"
)

// ServiceName is the logical service whose serving status the health checker publishes.
const ServiceName = "healthadmin.Console"

// PublicMethods do not require a bearer token and are never audited.
var PublicMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// Deps holds the dependencies of the gRPC server. Audit and Emitter may be nil.
type Deps struct {
	Auth    interceptors.Authenticator
	Audit   audit.AuditLogger
	Emitter telemetry.EventEmitter
	// Health receives serving status updates from the readiness checker.
	Health *health.Server
}

// NewGRPCServer returns a gRPC server with interceptors installed and services registered.
func NewGRPCServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(deps.Auth, PublicMethods),
			interceptors.AuditUnary(deps.Audit, PublicMethods),
			interceptors.TelemetryUnary(deps.Emitter, PublicMethods),
		),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers the standard health service and reflection with s.
// When deps.Health is nil a fresh health server reporting SERVING is used.
func RegisterServices(s *grpc.Server, deps Deps) {
	hs := deps.Health
	if hs == nil {
		hs = health.NewServer()
	}
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
}
