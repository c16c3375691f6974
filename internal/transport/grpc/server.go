package transportgrpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/David567rs/LoginAna/internal/transport/grpc/interceptors"
)

// AuthServiceName is the health service name reported next to the overall "" entry.
const AuthServiceName = "login-ana.auth"

// ServerDependencies encapsulates what the ops gRPC server needs.
type ServerDependencies struct {
	Logger  *zap.Logger
	Metrics *grpcinterceptors.GRPCMetrics
	Tracing *grpcinterceptors.ServerTracing
	// Probes are evaluated by WatchReadiness. Any failing probe marks the service NOT_SERVING.
	Probes map[string]func(context.Context) error
}

// Server is the gRPC ops endpoint: standard health checking plus reflection.
type Server struct {
	*grpc.Server
	health *health.Server
	probes map[string]func(context.Context) error
	logger *zap.Logger
}

func NewServer(deps ServerDependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	server := grpc.NewServer(
		deps.Tracing.ServerOption(),
		grpc.ChainUnaryInterceptor(
			deps.Metrics.UnaryServerInterceptor(),
			grpcinterceptors.UnaryLogging(logger),
		),
		grpc.ChainStreamInterceptor(deps.Metrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	s := &Server{Server: server, health: healthServer, probes: deps.Probes, logger: logger}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return s
}

// WatchReadiness re-evaluates the probes every interval until ctx ends, then reports
// NOT_SERVING so that clients drain before shutdown.
func (s *Server) WatchReadiness(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	s.CheckReadiness(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.CheckReadiness(ctx)
		}
	}
}

// CheckReadiness runs the probes once and updates the health status.
func (s *Server) CheckReadiness(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for name, probe := range s.probes {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := probe(probeCtx)
		cancel()
		if err != nil {
			s.logger.Warn("readiness probe failed", zap.String("dependency", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.setStatus(status)
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(AuthServiceName, status)
}
