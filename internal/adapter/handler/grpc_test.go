package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/service"
)

func startScanner(t *testing.T) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(newTestAssessor(t), zerolog.Nop())
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGrpc_Assess(t *testing.T) {
	client := NewScannerClient(startScanner(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := client.Assess(ctx, service.Request{
		URL:         "http://paypal-secure.tk/login",
		SourceCount: 3,
		Signals:     domain.ExternalSignals{MaliciousCount: 5},
	})
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if out["threat_score"] != float64(95) || out["threat_level"] != "CRITICAL" {
		t.Errorf("Expected 95/CRITICAL, got %v/%v", out["threat_score"], out["threat_level"])
	}
	features, ok := out["features"].(map[string]interface{})
	if !ok || features["url_length"] == nil {
		t.Errorf("Expected features object, got %v", out["features"])
	}
}

func TestGrpc_Score(t *testing.T) {
	client := NewScannerClient(startScanner(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := client.Score(ctx, service.Request{
		URL:         "http://google-support12345.ga/security",
		SourceCount: 1,
		Signals:     domain.ExternalSignals{LookupFailed: true},
	})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if out["score"] != float64(60) || out["level"] != "HIGH" || out["malicious"] != true {
		t.Errorf("Expected 60/HIGH/malicious, got %v", out)
	}
}

func TestGrpc_EmptyURL(t *testing.T) {
	client := NewScannerClient(startScanner(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Assess(ctx, service.Request{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}
}

func TestGrpc_Health(t *testing.T) {
	conn := startScanner(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ScannerServiceName})
	if err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %s", resp.Status)
	}
}
