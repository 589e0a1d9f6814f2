// Package memory keeps the queue in process. It implements the plain store
// contract only: reads and writes are individually consistent but there is
// no conditional write, so check-then-write callers can race.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/repository"
)

type record struct {
	entry models.Entry
	seq   uint64
}

type QueueRepository struct {
	mu      sync.RWMutex
	records map[string]*record
	seq     uint64
	subs    map[*subscription]struct{}
}

func NewQueueRepository() *QueueRepository {
	return &QueueRepository{
		records: make(map[string]*record),
		subs:    make(map[*subscription]struct{}),
	}
}

func (r *QueueRepository) Create(ctx context.Context, e *models.Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := newID()

	r.mu.Lock()
	r.seq++
	cp := *e
	cp.ID = id
	r.records[id] = &record{entry: cp, seq: r.seq}
	r.broadcastLocked()
	r.mu.Unlock()

	return id, nil
}

func (r *QueueRepository) List(ctx context.Context) ([]models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(), nil
}

func (r *QueueRepository) Get(ctx context.Context, id string) (*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e := cloneEntry(rec.entry)
	return &e, nil
}

func (r *QueueRepository) Update(ctx context.Context, id string, u models.EntryUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.IsEmpty() {
		return nil
	}
	u.Apply(&rec.entry)
	r.broadcastLocked()
	return nil
}

func (r *QueueRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *QueueRepository) Subscribe(ctx context.Context) (repository.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newSubscription(func(s *subscription) {
		r.mu.Lock()
		delete(r.subs, s)
		r.mu.Unlock()
	})

	r.mu.Lock()
	r.subs[s] = struct{}{}
	s.push(r.snapshotLocked())
	r.mu.Unlock()

	go s.pump()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

func (r *QueueRepository) snapshotLocked() []models.Entry {
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].entry.OrderKey != recs[j].entry.OrderKey {
			return recs[i].entry.OrderKey < recs[j].entry.OrderKey
		}
		return recs[i].seq < recs[j].seq
	})

	out := make([]models.Entry, len(recs))
	for i, rec := range recs {
		out[i] = cloneEntry(rec.entry)
	}
	return out
}

func (r *QueueRepository) broadcastLocked() {
	if len(r.subs) == 0 {
		return
	}
	snap := r.snapshotLocked()
	for s := range r.subs {
		s.push(snap)
	}
}

func cloneEntry(e models.Entry) models.Entry {
	if e.BookingFor != nil {
		v := *e.BookingFor
		e.BookingFor = &v
	}
	if e.CompletedAt != nil {
		v := *e.CompletedAt
		e.CompletedAt = &v
	}
	if e.AmountPaid != nil {
		v := *e.AmountPaid
		e.AmountPaid = &v
	}
	return e
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
