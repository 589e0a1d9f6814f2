package grpc

import (
	"context"
	"time"

	"github.com/vogiaan1904/barberqueue/pkg/logger"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name clients can check besides "".
const ServiceName = "barberqueue.Queue"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter keeps the gRPC health status in step with the stores.
type HealthReporter struct {
	srv      *health.Server
	checks   map[string]Pinger
	interval time.Duration
	l        logger.Logger
}

func NewHealthReporter(checks map[string]Pinger, interval time.Duration, l logger.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{
		srv:      srv,
		checks:   checks,
		interval: interval,
		l:        l,
	}
}

func (r *HealthReporter) Server() *health.Server {
	return r.srv
}

// Probe pings every check once and publishes the combined status.
func (r *HealthReporter) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, p := range r.checks {
		pctx, cancel := context.WithTimeout(ctx, r.interval/2)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			r.l.Warnf(ctx, "delivery.grpc.HealthReporter: %s: %v", name, err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	r.srv.SetServingStatus("", status)
	r.srv.SetServingStatus(ServiceName, status)
	return status
}

// Run probes on every tick until ctx is done, then marks the server as
// shutting down.
func (r *HealthReporter) Run(ctx context.Context) error {
	r.Probe(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.srv.Shutdown()
			return nil
		case <-ticker.C:
			r.Probe(ctx)
		}
	}
}
