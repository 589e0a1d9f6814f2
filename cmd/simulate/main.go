package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/namecheck"
	redisRepo "github.com/vogiaan1904/barberqueue/internal/repository/redis"
	"github.com/vogiaan1904/barberqueue/internal/service"
	pkgLog "github.com/vogiaan1904/barberqueue/pkg/logger"
	"github.com/vogiaan1904/barberqueue/pkg/util"
	"golang.org/x/sync/errgroup"
)

var (
	redisURL    = flag.String("redis", "localhost:6379", "Redis URL (host:port)")
	redisPass   = flag.String("password", "", "Redis password")
	keyPrefix   = flag.String("prefix", "barberqueue-sim", "Key prefix, keep it apart from the live shop")
	numUsers    = flag.Int("users", 40, "Number of customers to join")
	dupes       = flag.Int("dupes", 4, "Concurrent attempts per customer name")
	workers     = flag.Int("workers", 8, "Concurrent admin workers during the simulation")
	duration    = flag.Duration("duration", 20*time.Second, "How long to run the serve/move/remove loop")
	minAmount   = flag.Float64("min-amount", 10, "Lowest ticket")
	maxAmount   = flag.Float64("max-amount", 45, "Highest ticket")
	keepRecords = flag.Bool("keep", false, "Keep simulation keys after the run")
)

var serviceTypes = []models.ServiceType{
	models.ServiceHair,
	models.ServiceHairAndBeard,
	models.ServiceOrganizeTrim,
}

type counters struct {
	joined, rejected, served, completed, moved, stale, removed, failed atomic.Int64
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     *redisURL,
		Password: *redisPass,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Printf("Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Connected to Redis at %s (prefix %s)\n", *redisURL, *keyPrefix)

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{Level: "warn", Mode: "development", Encoding: "console"})
	clock := util.SystemClock(time.Local)
	queueRepo := redisRepo.NewQueueRepository(rdb, l, redisRepo.Options{KeyPrefix: *keyPrefix, MaxTxRetries: 50})
	revenueRepo := redisRepo.NewRevenueRepository(rdb, l, *keyPrefix)
	svc := service.NewQueueService(queueRepo, revenueRepo, namecheck.New(), clock, nil, l)

	var c counters

	fmt.Printf("\n🚀 Joining %d customers with %d concurrent attempts each...\n", *numUsers, *dupes)
	start := time.Now()
	joinAll(ctx, svc, &c)
	fmt.Printf("   joined=%d rejected=%d in %v\n", c.joined.Load(), c.rejected.Load(), time.Since(start).Round(time.Millisecond))
	if c.joined.Load() != int64(*numUsers) {
		fmt.Printf("⚠️  expected exactly %d admissions\n", *numUsers)
	}

	fmt.Printf("\n🎬 Running %d admin workers for %v (Ctrl+C to stop)\n", *workers, *duration)
	simCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()
	runWorkers(simCtx, svc, &c)

	active, err := svc.ListActive(ctx)
	if err != nil {
		fmt.Printf("Failed to list queue: %v\n", err)
		os.Exit(1)
	}
	logs, err := revenueRepo.List(ctx)
	if err != nil {
		fmt.Printf("Failed to list revenue: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n📊 served=%d completed=%d moved=%d stale=%d removed=%d failed=%d\n",
		c.served.Load(), c.completed.Load(), c.moved.Load(), c.stale.Load(), c.removed.Load(), c.failed.Load())
	fmt.Printf("   still active=%d revenue logs=%d\n", len(active), len(logs))
	if int64(len(logs)) != c.completed.Load() {
		fmt.Printf("⚠️  revenue logs do not match completions\n")
	}

	if !*keepRecords {
		cleanup(context.Background(), rdb)
	}
}

func joinAll(ctx context.Context, svc service.QueueService, c *counters) {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *numUsers; i++ {
		name := fmt.Sprintf("Customer %03d", i+1)
		device := uuid.NewString()
		st := serviceTypes[i%len(serviceTypes)]
		for j := 0; j < *dupes; j++ {
			g.Go(func() error {
				_, err := svc.Join(gctx, service.JoinQueueInput{
					Name:        name,
					ServiceType: st,
					Channel:     models.ChannelOnline,
					DeviceID:    device,
				})
				switch {
				case err == nil:
					c.joined.Add(1)
				case errors.Is(err, service.ErrNameAlreadyQueued), errors.Is(err, service.ErrDeviceAlreadyQueued):
					c.rejected.Add(1)
				default:
					c.failed.Add(1)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

func runWorkers(ctx context.Context, svc service.QueueService, c *counters) {
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < *workers; w++ {
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)))
		g.Go(func() error {
			for gctx.Err() == nil {
				step(gctx, svc, rng, c)
				time.Sleep(time.Duration(rng.Intn(50)) * time.Millisecond)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func step(ctx context.Context, svc service.QueueService, rng *rand.Rand, c *counters) {
	active, err := svc.ListActive(ctx)
	if err != nil || len(active) == 0 {
		return
	}
	e := active[rng.Intn(len(active))]

	switch roll := rng.Intn(10); {
	case e.Status == models.EntryStatusServing:
		amount := *minAmount + rng.Float64()*(*maxAmount-*minAmount)
		record(svc.Complete(ctx, e.ID, float64(int(amount))), &c.completed, c)
	case roll < 4:
		record(svc.Serve(ctx, e.ID), &c.served, c)
	case roll < 8:
		err := svc.MoveDown(ctx, e.ID, active)
		if errors.Is(err, service.ErrStaleSnapshot) {
			c.stale.Add(1)
			return
		}
		record(err, &c.moved, c)
	default:
		record(svc.Remove(ctx, e.ID), &c.removed, c)
	}
}

func record(err error, ok *atomic.Int64, c *counters) {
	switch {
	case err == nil:
		ok.Add(1)
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
	default:
		c.failed.Add(1)
	}
}

func cleanup(ctx context.Context, rdb *redis.Client) {
	iter := rdb.Scan(ctx, 0, *keyPrefix+":*", 500).Iterator()
	var n int
	for iter.Next(ctx) {
		if err := rdb.Del(ctx, iter.Val()).Err(); err == nil {
			n++
		}
	}
	if err := iter.Err(); err != nil {
		fmt.Printf("cleanup: %v\n", err)
		return
	}
	fmt.Printf("🧹 Removed %d simulation keys\n", n)
}
