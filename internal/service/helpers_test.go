package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/namecheck"
	"github.com/vogiaan1904/barberqueue/internal/repository"
	"github.com/vogiaan1904/barberqueue/internal/repository/memory"
	redisrepo "github.com/vogiaan1904/barberqueue/internal/repository/redis"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
	"github.com/vogiaan1904/barberqueue/pkg/util"
)

type recordingPublisher struct {
	mu      sync.Mutex
	events  []models.QueueEvent
	revenue []models.RevenueLog
	err     error
}

func (p *recordingPublisher) PublishQueueEvent(_ context.Context, evt models.QueueEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) PublishRevenueLogged(_ context.Context, log models.RevenueLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revenue = append(p.revenue, log)
	return p.err
}

func (p *recordingPublisher) types() []models.QueueEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.QueueEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type failingRevenueRepo struct{}

var errRevenueDown = errors.New("revenue store unreachable")

func (failingRevenueRepo) Append(context.Context, *models.RevenueLog) (string, error) {
	return "", errRevenueDown
}

func (failingRevenueRepo) List(context.Context) ([]models.RevenueLog, error) {
	return nil, errRevenueDown
}

// barrierRepo holds every List call until n callers have listed, forcing
// concurrent joins to interleave between their read and their write.
type barrierRepo struct {
	*memory.QueueRepository
	n    int
	mu   sync.Mutex
	seen int
	all  chan struct{}
}

func newBarrierRepo(n int) *barrierRepo {
	return &barrierRepo{
		QueueRepository: memory.NewQueueRepository(),
		n:               n,
		all:             make(chan struct{}),
	}
}

func (r *barrierRepo) List(ctx context.Context) ([]models.Entry, error) {
	entries, err := r.QueueRepository.List(ctx)

	r.mu.Lock()
	r.seen++
	if r.seen == r.n {
		close(r.all)
	}
	r.mu.Unlock()

	select {
	case <-r.all:
	case <-time.After(2 * time.Second):
	}
	return entries, err
}

type fixture struct {
	svc     QueueService
	queue   repository.QueueRepository
	revenue repository.RevenueRepository
	clock   *util.FixedClock
	pub     *recordingPublisher
}

func newFixture(t *testing.T, queue repository.QueueRepository, revenue repository.RevenueRepository) *fixture {
	t.Helper()
	clock := &util.FixedClock{T: time.UnixMilli(1_700_000_000_000)}
	pub := &recordingPublisher{}
	return &fixture{
		svc:     NewQueueService(queue, revenue, namecheck.New(), clock, pub, logger.NewNop()),
		queue:   queue,
		revenue: revenue,
		clock:   clock,
		pub:     pub,
	}
}

func newMemoryFixture(t *testing.T) *fixture {
	return newFixture(t, memory.NewQueueRepository(), memory.NewRevenueRepository())
}

func newRedisFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })

	l := logger.NewNop()
	return newFixture(t,
		redisrepo.NewQueueRepository(cli, l, redisrepo.Options{KeyPrefix: "svc", MaxTxRetries: 50}),
		redisrepo.NewRevenueRepository(cli, l, "svc"),
	)
}

// joinAt joins a walk-in with OrderKey ms.
func (f *fixture) joinAt(t *testing.T, name string, ms int64) string {
	t.Helper()
	f.clock.T = time.UnixMilli(ms)
	id, err := f.svc.Join(context.Background(), JoinQueueInput{Name: name, Channel: models.ChannelWalkIn})
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return id
}

func activeNames(t *testing.T, svc QueueService) []string {
	t.Helper()
	active, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	out := make([]string, len(active))
	for i, e := range active {
		out[i] = e.Name
	}
	return out
}
