package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/barberqueue/config"
	grpcDelivery "github.com/vogiaan1904/barberqueue/internal/delivery/grpc"
	httpDelivery "github.com/vogiaan1904/barberqueue/internal/delivery/http"
	"github.com/vogiaan1904/barberqueue/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/barberqueue/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/barberqueue/internal/delivery/realtime"
	"github.com/vogiaan1904/barberqueue/internal/infra/postgres"
	"github.com/vogiaan1904/barberqueue/internal/infra/redis"
	"github.com/vogiaan1904/barberqueue/internal/namecheck"
	"github.com/vogiaan1904/barberqueue/internal/notify"
	"github.com/vogiaan1904/barberqueue/internal/repository"
	"github.com/vogiaan1904/barberqueue/internal/repository/memory"
	pgRepo "github.com/vogiaan1904/barberqueue/internal/repository/postgres"
	redisRepo "github.com/vogiaan1904/barberqueue/internal/repository/redis"
	"github.com/vogiaan1904/barberqueue/internal/service"
	"github.com/vogiaan1904/barberqueue/internal/session"
	"github.com/vogiaan1904/barberqueue/internal/telemetry"
	pkgKafka "github.com/vogiaan1904/barberqueue/pkg/kafka"
	pkgLog "github.com/vogiaan1904/barberqueue/pkg/logger"
	"github.com/vogiaan1904/barberqueue/pkg/util"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})
	defer func() { _ = l.Sync() }()

	shutdownTracing := telemetry.Setup(ctx, cfg.Telemetry, version, l)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			l.Warnf(sctx, "tracing shutdown: %v", err)
		}
	}()

	clock := util.SystemClock(cfg.Location())
	checks := map[string]grpcDelivery.Pinger{}

	// Stores
	var redisCli *goredis.Client
	if cfg.Store.Driver == "redis" {
		redisCli, err = redis.Connect(ctx, cfg.Redis, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
		}
		defer redis.Disconnect(context.Background(), redisCli, l)
	}

	var queueRepo repository.QueueRepository
	switch cfg.Store.Driver {
	case "redis":
		queueRepo = redisRepo.NewQueueRepository(redisCli, l, redisRepo.Options{
			KeyPrefix:    cfg.Store.KeyPrefix,
			MaxTxRetries: cfg.Store.MaxTxRetries,
		})
	default:
		l.Warn(ctx, "Using in-memory queue store: state is lost on restart and joins are not race-free")
		queueRepo = memory.NewQueueRepository()
	}
	checks["queue"] = queueRepo

	var revenueRepo repository.RevenueRepository
	switch cfg.Store.RevenueDriver {
	case "redis":
		revenueRepo = redisRepo.NewRevenueRepository(redisCli, l, cfg.Store.KeyPrefix)
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Postgres, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to Postgres: %v", err)
		}
		defer postgres.Disconnect(context.Background(), pool, l)
		if err := pgRepo.EnsureSchema(ctx, pool); err != nil {
			l.Fatalf(ctx, "Failed to prepare revenue schema: %v", err)
		}
		revenueRepo = pgRepo.NewRevenueRepository(pool, l)
		checks["revenue"] = pool
	default:
		revenueRepo = memory.NewRevenueRepository()
	}

	// Kafka producer
	var (
		pub       service.EventPublisher
		kafkaSink notify.Sink
	)
	if cfg.Kafka.Enabled {
		kafkaSyncProd, err := pkgKafka.NewProducer(cfg.Kafka)
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod := producer.NewProducer(kafkaSyncProd, clock, l)
		defer func() {
			if err := prod.Close(); err != nil {
				l.Warnf(context.Background(), "kafka producer close: %v", err)
			}
		}()
		pub = prod
		kafkaSink = prod
		l.Infof(ctx, "Kafka producer connected to brokers: %v", cfg.Kafka.Brokers)
	}

	// Services
	queueSvc := service.NewQueueService(queueRepo, revenueRepo, namecheck.New(cfg.Shop.BlockedNames...), clock, pub, l)
	revenueSvc := service.NewRevenueService(revenueRepo, clock, l)

	bus := session.NewAdminBus(false)

	var sink notify.Sink
	if cfg.Notify.Sink == "kafka" {
		sink = kafkaSink
	} else if sink, err = notify.NewSink(cfg.Notify, l); err != nil {
		l.Fatalf(ctx, "Failed to initialize notification sink: %v", err)
	}
	watcher := notify.NewWatcher(queueSvc, bus, cfg.Notify.DeviceIDs, sink, l)

	hub := realtime.NewHub()
	feed := realtime.NewFeed(hub, queueSvc, l)

	// HTTP server
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := httpDelivery.NewHandler(httpDelivery.Deps{
		Queue:   queueSvc,
		Revenue: revenueSvc,
		Auth:    session.NewAuthenticator(cfg.Shop.AdminPassword, cfg.Shop.AdminPasswordHash),
		Tokens:  session.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Expiry, clock),
		Bus:     bus,
		Devices: watcher,
		Health:  queueRepo,
		Clock:   clock,
	}, l)

	mux := http.NewServeMux()
	mux.Handle(realtime.Prefix+"/", realtime.NewHandler(hub, l))
	mux.Handle("/", httpDelivery.NewRouter(handler, cfg.RateLimit, l))

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      otelhttp.NewHandler(mux, cfg.Telemetry.ServiceName),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// gRPC server
	healthReporter := grpcDelivery.NewHealthReporter(checks, 10*time.Second, l)
	gRpcSrv := grpcDelivery.NewServer(healthReporter, l)
	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Infof(gctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		l.Infof(gctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		if err := gRpcSrv.Serve(lnr); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error { return healthReporter.Run(gctx) })
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return feed.Run(gctx) })

	if cfg.Kafka.Enabled {
		kafkaConsGr, err := pkgKafka.NewConsumer(cfg.Kafka)
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
		}
		cons := consumer.NewConsumer(kafkaConsGr, queueSvc, l)
		g.Go(func() error {
			if err := cons.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			return cons.Close()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		l.Info(context.Background(), "Server shutting down...")

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			l.Warnf(sctx, "http shutdown: %v", err)
		}
		gRpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		l.Errorf(context.Background(), "Server stopped with error: %v", err)
	}

	l.Info(context.Background(), "Server exited")
}
