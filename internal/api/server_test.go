package api

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/miradorstack/mirador-drift/internal/config"
	"github.com/miradorstack/mirador-drift/internal/models"
)

func TestHealthServerTracksDeployment(t *testing.T) {
	srv, err := NewHealthServer(config.ServerConfig{GRPCAddress: "127.0.0.1:0", GracefulTimeout: time.Second})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() { _ = srv.Start() }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), srv.GracefulTimeout())
		defer cancel()
		srv.Shutdown(ctx)
	}()

	conn, err := grpc.NewClient(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("health check %q: %v", service, err)
		}
		return resp.GetStatus()
	}

	if got := check(""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected overall SERVING, got %v", got)
	}
	if got := check(HealthService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected model NOT_SERVING before deployment, got %v", got)
	}

	srv.SetState(models.Deployed{ModelPath: "prod/" + models.ModelFile})
	if got := check(HealthService); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected model SERVING after deployment, got %v", got)
	}

	srv.SetState(nil)
	if got := check(HealthService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected model NOT_SERVING for unknown state, got %v", got)
	}
}
