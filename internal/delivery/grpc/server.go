package grpc

import (
	"context"
	"time"

	"github.com/vogiaan1904/barberqueue/pkg/logger"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// NewServer returns a gRPC server exposing the health service.
func NewServer(hr *HealthReporter, l logger.Logger) *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(l)))
	healthpb.RegisterHealthServer(srv, hr.Server())
	return srv
}

func loggingInterceptor(l logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		l.Debugf(ctx, "grpc %s %s %s", info.FullMethod, status.Code(err), time.Since(start))
		return resp, err
	}
}
