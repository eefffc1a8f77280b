package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/furfield/procurement/internal/config"
	"github.com/furfield/procurement/pkg/errorbank"
)

func TestNewServer_HealthServing(t *testing.T) {
	cfg := config.Config{Procurement: config.Procurement{ServiceName: "ff-purc-6870"}}
	server := NewServer(cfg, zap.NewNop())

	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client := healthpb.NewHealthClient(conn)
	for _, svc := range []string{"", "ff-purc-6870"} {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: svc})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}
}

func TestUnaryErrorInterceptor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"not found", errorbank.NotFound("purchase order not found"), codes.NotFound},
		{"validation", errorbank.Validation("bad input"), codes.InvalidArgument},
		{"transition", errorbank.InvalidTransition("completed"), codes.FailedPrecondition},
		{"storage", errorbank.Storage("down"), codes.Unavailable},
		{"existing status", status.Error(codes.Aborted, "aborted"), codes.Aborted},
		{"plain", errors.New("boom"), codes.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnaryErrorInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{},
				func(context.Context, interface{}) (interface{}, error) { return nil, tt.err })
			assert.Equal(t, tt.code, status.Code(err))
		})
	}

	resp, err := UnaryErrorInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{},
		func(context.Context, interface{}) (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
