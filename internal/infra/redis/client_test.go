package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

func TestWrap_HealthCheck(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := Wrap(context.Background(), redis.NewClient(&redis.Options{Addr: server.Addr()}), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Wrap returned error: %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}

	server.Close()
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail once redis is gone")
	}
}

func TestWrap_FailsWhenUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	if _, err := Wrap(context.Background(), redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1}), zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected ping failure")
	}
}
