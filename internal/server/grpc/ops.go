// Package grpcserver runs the operations listener: gRPC health checks and
// optional server reflection.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the HTTP API.
const ServiceName = "homedisk.api"

// Ops is the gRPC operations server.
type Ops struct {
	srv    *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// NewOps builds the server. Everything starts NOT_SERVING until SetServing(true).
func NewOps(log *zap.Logger, withReflection bool) *Ops {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(
			RecoverStream(log),
			LoggingStream(log),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if withReflection {
		reflection.Register(s)
	}

	o := &Ops{srv: s, health: hs, log: log}
	o.SetServing(false)
	return o
}

// SetServing flips both the overall and the API health status.
func (o *Ops) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	o.health.SetServingStatus("", st)
	o.health.SetServingStatus(ServiceName, st)
}

// Watch polls check every interval and mirrors the result into the health
// status until ctx is done. A nil check is a no-op.
func (o *Ops) Watch(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	if check == nil {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		cctx, cancel := context.WithTimeout(ctx, interval)
		err := check(cctx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if (err == nil) != healthy {
			healthy = err == nil
			if healthy {
				o.log.Info("dependency check recovered")
			} else {
				o.log.Warn("dependency check failed", zap.Error(err))
			}
			o.SetServing(healthy)
		}
	}
}

// Serve blocks serving lis until Shutdown.
func (o *Ops) Serve(lis net.Listener) error {
	return o.srv.Serve(lis)
}

// Shutdown reports NOT_SERVING, then stops gracefully, forcing a stop if ctx
// expires first.
func (o *Ops) Shutdown(ctx context.Context) {
	o.health.Shutdown()

	done := make(chan struct{})
	go func() {
		o.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.srv.Stop()
	}
}
