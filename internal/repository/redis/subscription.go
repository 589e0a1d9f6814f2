package redis

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/repository"
)

type subscription struct {
	ps   *redis.PubSub
	out  chan []models.Entry
	done chan struct{}
	once sync.Once
}

// Subscribe listens on the change channel before taking the first snapshot
// so no mutation can slip between the two.
func (r *redisQueueRepository) Subscribe(ctx context.Context) (repository.Subscription, error) {
	ps := r.cli.Subscribe(ctx, r.changesChannel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		r.l.Errorf(ctx, "redisQueueRepository.Subscribe: %v", err)
		return nil, err
	}

	initial, err := r.List(ctx)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}

	s := &subscription{
		ps:   ps,
		out:  make(chan []models.Entry),
		done: make(chan struct{}),
	}
	go s.run(ctx, r, initial)

	return s, nil
}

func (s *subscription) run(ctx context.Context, r *redisQueueRepository, initial []models.Entry) {
	defer close(s.out)
	defer s.Close()

	if !s.send(ctx, initial) {
		return
	}

	msgs := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			snap, err := r.List(ctx)
			if err != nil {
				// transient; the next change retries the read
				continue
			}
			if !s.send(ctx, snap) {
				return
			}
		}
	}
}

func (s *subscription) send(ctx context.Context, snap []models.Entry) bool {
	select {
	case s.out <- snap:
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}

func (s *subscription) Snapshots() <-chan []models.Entry {
	return s.out
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
