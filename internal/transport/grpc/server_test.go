package transportgrpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	grpcinterceptors "github.com/David567rs/LoginAna/internal/transport/grpc/interceptors"
)

func startServer(t *testing.T, deps ServerDependencies) (*Server, healthpb.HealthClient) {
	t.Helper()

	server := NewServer(deps)
	listener := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return server, healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestServerReportsServing(t *testing.T) {
	metrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("NewGRPCMetrics: %v", err)
	}
	_, client := startServer(t, ServerDependencies{Logger: zaptest.NewLogger(t), Metrics: metrics})

	if got := checkStatus(t, client, AuthServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}
	if got := checkStatus(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING for overall status, got %v", got)
	}
}

func TestServerFollowsReadinessProbes(t *testing.T) {
	var failing atomic.Bool
	server, client := startServer(t, ServerDependencies{
		Logger: zaptest.NewLogger(t),
		Probes: map[string]func(context.Context) error{
			"redis": func(context.Context) error {
				if failing.Load() {
					return errors.New("connection refused")
				}
				return nil
			},
		},
	})

	failing.Store(true)
	server.CheckReadiness(context.Background())
	if got := checkStatus(t, client, AuthServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", got)
	}

	failing.Store(false)
	server.CheckReadiness(context.Background())
	if got := checkStatus(t, client, AuthServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}
}
