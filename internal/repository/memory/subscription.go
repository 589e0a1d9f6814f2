package memory

import (
	"sync"

	"github.com/vogiaan1904/barberqueue/internal/models"
)

// subscription queues snapshots without bound so writers never block on a
// slow reader, and hands them out in order.
type subscription struct {
	mu      sync.Mutex
	pending [][]models.Entry
	wake    chan struct{}
	out     chan []models.Entry
	done    chan struct{}
	once    sync.Once
	detach  func(*subscription)
}

func newSubscription(detach func(*subscription)) *subscription {
	return &subscription{
		wake:   make(chan struct{}, 1),
		out:    make(chan []models.Entry),
		done:   make(chan struct{}),
		detach: detach,
	}
}

func (s *subscription) push(snap []models.Entry) {
	s.mu.Lock()
	s.pending = append(s.pending, snap)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		next := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}

func (s *subscription) Snapshots() <-chan []models.Entry {
	return s.out
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.detach(s)
	})
	return nil
}
