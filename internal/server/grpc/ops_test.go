package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	rpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startOps(t *testing.T, reflection bool) (*Ops, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	o := NewOps(zaptest.NewLogger(t), reflection)
	go func() { _ = o.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		o.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return o, conn
}

func healthStatus(t *testing.T, conn *grpc.ClientConn, svc string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestOps_HealthTransitions(t *testing.T) {
	t.Parallel()
	o, conn := startOps(t, false)

	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, healthStatus(t, conn, ServiceName))

	o.SetServing(true)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(t, conn, ""))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(t, conn, ServiceName))

	o.SetServing(false)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, healthStatus(t, conn, ""))
}

func TestOps_WatchMirrorsDependency(t *testing.T) {
	t.Parallel()
	o, conn := startOps(t, false)
	o.SetServing(true)

	var failing atomic.Bool
	check := func(context.Context) error {
		if failing.Load() {
			return errors.New("db down")
		}
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Watch(ctx, 5*time.Millisecond, check)

	failing.Store(true)
	require.Eventually(t, func() bool {
		return healthStatus(t, conn, ServiceName) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	failing.Store(false)
	require.Eventually(t, func() bool {
		return healthStatus(t, conn, ServiceName) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOps_Reflection(t *testing.T) {
	t.Parallel()
	_, conn := startOps(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stream, err := rpb.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Send(&rpb.ServerReflectionRequest{
		MessageRequest: &rpb.ServerReflectionRequest_ListServices{ListServices: "*"},
	}))
	resp, err := stream.Recv()
	require.NoError(t, err)

	var names []string
	for _, s := range resp.GetListServicesResponse().GetService() {
		names = append(names, s.GetName())
	}
	require.Contains(t, names, "grpc.health.v1.Health")
}

func TestOps_ShutdownReportsNotServing(t *testing.T) {
	t.Parallel()
	o := NewOps(zaptest.NewLogger(t), false)
	o.SetServing(true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	o.Shutdown(ctx)

	resp, err := o.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
