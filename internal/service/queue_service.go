package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/namecheck"
	"github.com/vogiaan1904/barberqueue/internal/repository"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
	"github.com/vogiaan1904/barberqueue/pkg/util"
)

type QueueService interface {
	Join(ctx context.Context, in JoinQueueInput) (string, error)
	ListActive(ctx context.Context) ([]models.Entry, error)
	Get(ctx context.Context, id string) (*models.Entry, error)
	Position(ctx context.Context, id string) (PositionOutput, error)
	Serve(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, amount float64) error
	Remove(ctx context.Context, id string) error
	Leave(ctx context.Context, id, deviceID string) error
	MoveDown(ctx context.Context, id string, snapshot []models.Entry) error
	SubscribeActive(ctx context.Context, cb func([]models.Entry)) (Unsubscribe, error)
}

type queueService struct {
	queueRepo   repository.QueueRepository
	revenueRepo repository.RevenueRepository
	names       *namecheck.Validator
	clock       util.Clock
	pub         EventPublisher
	l           logger.Logger
}

// NewQueueService wires the engine. pub may be nil. When queueRepo also
// implements repository.AtomicAdmitter or repository.AtomicReorderer, Join
// and MoveDown use those conditional writes.
func NewQueueService(
	queueRepo repository.QueueRepository,
	revenueRepo repository.RevenueRepository,
	names *namecheck.Validator,
	clock util.Clock,
	pub EventPublisher,
	l logger.Logger,
) QueueService {
	if names == nil {
		names = namecheck.New()
	}
	return &queueService{
		queueRepo:   queueRepo,
		revenueRepo: revenueRepo,
		names:       names,
		clock:       clock,
		pub:         pub,
		l:           l,
	}
}

func (s *queueService) Join(ctx context.Context, in JoinQueueInput) (string, error) {
	res, err := s.names.Validate(in.Name)
	if err != nil {
		s.l.Debugf(ctx, "queueService.Join: rejected name %q: %v", in.Name, err)
		return "", err
	}

	if in.Channel == "" {
		in.Channel = models.ChannelOnline
	}
	if !in.Channel.Valid() {
		return "", ErrInvalidChannel
	}
	if in.ServiceType != "" && !in.ServiceType.Valid() {
		return "", ErrInvalidServiceType
	}

	now := s.clock.Now()
	e := &models.Entry{
		Name:        res.CleanedName,
		NameKey:     res.NameKey,
		ServiceType: in.ServiceType,
		Channel:     in.Channel,
		Status:      models.EntryStatusWaiting,
		OrderKey:    now.UnixMilli(),
		CreatedAt:   now,
	}
	if in.BookingFor != nil && *in.BookingFor >= 0 && *in.BookingFor <= 23 {
		h := *in.BookingFor
		e.BookingFor = &h
	}
	if in.Channel == models.ChannelOnline {
		e.DeviceID = in.DeviceID
		e.ExpoPushToken = in.ExpoPushToken
		e.WebPushToken = in.WebPushToken
	}

	check := func(entries []models.Entry) error {
		return checkAdmission(entries, e)
	}

	var id string
	if admitter, ok := s.queueRepo.(repository.AtomicAdmitter); ok {
		id, err = admitter.CreateChecked(ctx, e, check)
	} else {
		id, err = s.createUnchecked(ctx, e, check)
	}
	if err != nil {
		if errors.Is(err, ErrNameAlreadyQueued) || errors.Is(err, ErrDeviceAlreadyQueued) {
			s.l.Debugf(ctx, "queueService.Join: %v", err)
			return "", err
		}
		s.l.Errorf(ctx, "queueService.Join: %v", err)
		return "", fmt.Errorf("failed to join queue: %w", err)
	}

	e.ID = id
	s.l.Infof(ctx, "queue entry %s joined: channel=%s service=%q", id, e.Channel, e.ServiceType)
	s.publish(ctx, models.QueueEvent{
		Type:        models.QueueEventJoined,
		EntryID:     id,
		Name:        e.Name,
		ServiceType: e.ServiceType,
		Channel:     e.Channel,
		OrderKey:    e.OrderKey,
		Timestamp:   now,
	})

	return id, nil
}

// createUnchecked reads, checks, then writes as two separate store calls.
// Concurrent joins may both pass the check.
func (s *queueService) createUnchecked(ctx context.Context, e *models.Entry, check func([]models.Entry) error) (string, error) {
	entries, err := s.queueRepo.List(ctx)
	if err != nil {
		return "", err
	}
	if err := check(entries); err != nil {
		return "", err
	}
	return s.queueRepo.Create(ctx, e)
}

func checkAdmission(entries []models.Entry, e *models.Entry) error {
	for i := range entries {
		cur := &entries[i]
		if !cur.IsActive() {
			continue
		}
		key := cur.NameKey
		if key == "" {
			key = namecheck.Key(cur.Name)
		}
		if key == e.NameKey {
			return ErrNameAlreadyQueued
		}
	}

	if e.Channel != models.ChannelOnline || e.DeviceID == "" {
		return nil
	}
	for i := range entries {
		cur := &entries[i]
		if cur.IsActive() && cur.Channel == models.ChannelOnline && cur.DeviceID == e.DeviceID {
			return ErrDeviceAlreadyQueued
		}
	}
	return nil
}

func (s *queueService) ListActive(ctx context.Context) ([]models.Entry, error) {
	entries, err := s.queueRepo.List(ctx)
	if err != nil {
		s.l.Errorf(ctx, "queueService.ListActive: %v", err)
		return nil, err
	}
	return ActiveOf(entries), nil
}

func (s *queueService) Get(ctx context.Context, id string) (*models.Entry, error) {
	e, err := s.queueRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *queueService) Position(ctx context.Context, id string) (PositionOutput, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return PositionOutput{}, err
	}

	out := PositionOutput{EntryID: id, Ahead: -1}
	found := false
	for _, e := range active {
		if e.ID == id {
			found = true
			out.Status = e.Status
			if e.Status == models.EntryStatusWaiting {
				out.Ahead = out.Waiting
			}
		}
		if e.Status == models.EntryStatusWaiting {
			out.Waiting++
		}
	}
	if found {
		return out, nil
	}

	e, err := s.Get(ctx, id)
	if err != nil {
		return PositionOutput{}, err
	}
	out.Status = e.Status
	return out, nil
}

func (s *queueService) Serve(ctx context.Context, id string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.IsTerminal() {
		return fmt.Errorf("serve entry in status %s: %w", e.Status, ErrInvalidTransition)
	}

	if err := s.update(ctx, "Serve", id, models.EntryUpdate{Status: models.StatusPtr(models.EntryStatusServing)}); err != nil {
		return err
	}

	s.l.Infof(ctx, "queue entry %s now serving", id)
	s.publish(ctx, models.QueueEvent{
		Type:        models.QueueEventServing,
		EntryID:     id,
		Name:        e.Name,
		ServiceType: e.ServiceType,
		Channel:     e.Channel,
		Timestamp:   s.clock.Now(),
	})
	return nil
}

// Complete marks the entry done and appends a revenue log. The two writes
// are independent: if the append fails the entry stays done and the error
// is returned.
func (s *queueService) Complete(ctx context.Context, id string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return ErrInvalidAmount
	}

	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.IsTerminal() {
		return fmt.Errorf("complete entry in status %s: %w", e.Status, ErrInvalidTransition)
	}

	now := s.clock.Now()
	completedAt := now.UnixMilli()
	if err := s.update(ctx, "Complete", id, models.EntryUpdate{
		Status:      models.StatusPtr(models.EntryStatusDone),
		CompletedAt: &completedAt,
		AmountPaid:  &amount,
	}); err != nil {
		return err
	}

	s.publish(ctx, models.QueueEvent{
		Type:        models.QueueEventDone,
		EntryID:     id,
		Name:        e.Name,
		ServiceType: e.ServiceType,
		Channel:     e.Channel,
		Amount:      &amount,
		Timestamp:   now,
	})

	log := models.RevenueLog{
		Amount:       amount,
		ServiceType:  e.ServiceType,
		CustomerName: e.Name,
		Timestamp:    completedAt,
	}
	logID, err := s.revenueRepo.Append(ctx, &log)
	if err != nil {
		s.l.Errorf(ctx, "queueService.Complete: entry %s done but revenue append failed: %v", id, err)
		return fmt.Errorf("entry %s completed but revenue was not logged: %w", id, err)
	}
	log.ID = logID

	s.l.Infof(ctx, "queue entry %s done: amount=%v revenue_log=%s", id, amount, logID)
	if s.pub != nil {
		if err := s.pub.PublishRevenueLogged(ctx, log); err != nil {
			s.l.Warnf(ctx, "queueService.Complete: publish revenue logged: %v", err)
		}
	}
	return nil
}

// Remove marks the entry absent. Removing an absent entry is a no-op.
func (s *queueService) Remove(ctx context.Context, id string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	switch e.Status {
	case models.EntryStatusAbsent:
		return nil
	case models.EntryStatusDone:
		return fmt.Errorf("remove entry in status %s: %w", e.Status, ErrInvalidTransition)
	}

	if err := s.update(ctx, "Remove", id, models.EntryUpdate{Status: models.StatusPtr(models.EntryStatusAbsent)}); err != nil {
		return err
	}

	s.l.Infof(ctx, "queue entry %s marked absent", id)
	s.publish(ctx, models.QueueEvent{
		Type:        models.QueueEventAbsent,
		EntryID:     id,
		Name:        e.Name,
		ServiceType: e.ServiceType,
		Channel:     e.Channel,
		Timestamp:   s.clock.Now(),
	})
	return nil
}

// Leave removes an online entry on behalf of the device that joined it.
// Walk-ins and other devices' entries get ErrNotEntryOwner.
func (s *queueService) Leave(ctx context.Context, id, deviceID string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if deviceID == "" || e.Channel != models.ChannelOnline || e.DeviceID != deviceID {
		s.l.Warnf(ctx, "queueService.Leave: device %q may not remove entry %s", deviceID, id)
		return ErrNotEntryOwner
	}
	return s.Remove(ctx, id)
}

// MoveDown swaps id with its successor in snapshot by giving it the
// successor's OrderKey plus one. It is a no-op when id is last or missing
// from snapshot. On stores with conditional writes the successor must still
// directly follow id in the live order, otherwise ErrStaleSnapshot; if id
// already sits directly behind it nothing is written.
func (s *queueService) MoveDown(ctx context.Context, id string, snapshot []models.Entry) error {
	idx := indexOf(snapshot, id)
	if idx < 0 || idx == len(snapshot)-1 {
		return nil
	}
	succ := snapshot[idx+1]

	var (
		newKey int64
		moved  = true
		err    error
	)
	if reorderer, ok := s.queueRepo.(repository.AtomicReorderer); ok {
		err = reorderer.ReorderChecked(ctx, id, func(entries []models.Entry) (int64, error) {
			live := ActiveOf(entries)
			i := indexOf(live, id)
			// Already behind succ: a repeat of a move that went through.
			if i > 0 && live[i-1].ID == succ.ID {
				moved = false
				return 0, repository.ErrNoChange
			}
			if i < 0 || i == len(live)-1 || live[i+1].ID != succ.ID {
				return 0, ErrStaleSnapshot
			}
			moved = true
			newKey = live[i+1].OrderKey + 1
			return newKey, nil
		})
	} else {
		newKey = succ.OrderKey + 1
		err = s.queueRepo.Update(ctx, id, models.EntryUpdate{OrderKey: &newKey})
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrStaleSnapshot):
			s.l.Debugf(ctx, "queueService.MoveDown: %s: %v", id, err)
			return err
		case errors.Is(err, repository.ErrNotFound):
			return ErrEntryNotFound
		}
		s.l.Errorf(ctx, "queueService.MoveDown: %v", err)
		return err
	}
	if !moved {
		s.l.Debugf(ctx, "queueService.MoveDown: %s already behind %s", id, succ.ID)
		return nil
	}

	s.l.Infof(ctx, "queue entry %s moved behind %s", id, succ.ID)
	s.publish(ctx, models.QueueEvent{
		Type:      models.QueueEventMoved,
		EntryID:   id,
		OrderKey:  newKey,
		Timestamp: s.clock.Now(),
	})
	return nil
}

// SubscribeActive calls cb with the active queue now and after every store
// change. cb runs on a single goroutine, one snapshot at a time, and must
// not call the returned Unsubscribe itself.
func (s *queueService) SubscribeActive(ctx context.Context, cb func([]models.Entry)) (Unsubscribe, error) {
	sub, err := s.queueRepo.Subscribe(ctx)
	if err != nil {
		s.l.Errorf(ctx, "queueService.SubscribeActive: %v", err)
		return nil, err
	}

	var (
		mu      sync.Mutex
		stopped bool
	)
	go func() {
		for snap := range sub.Snapshots() {
			active := ActiveOf(snap)
			mu.Lock()
			if !stopped {
				cb(active)
			}
			mu.Unlock()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			if err := sub.Close(); err != nil {
				s.l.Warnf(ctx, "queueService.SubscribeActive: close: %v", err)
			}
		})
	}, nil
}

func (s *queueService) update(ctx context.Context, op, id string, u models.EntryUpdate) error {
	if err := s.queueRepo.Update(ctx, id, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEntryNotFound
		}
		s.l.Errorf(ctx, "queueService.%s: %v", op, err)
		return fmt.Errorf("failed to update entry %s: %w", id, err)
	}
	return nil
}

func (s *queueService) publish(ctx context.Context, evt models.QueueEvent) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishQueueEvent(ctx, evt); err != nil {
		s.l.Warnf(ctx, "queueService: publish %s event for %s: %v", evt.Type, evt.EntryID, err)
	}
}

// ActiveOf filters entries down to waiting and serving, ordered by OrderKey.
// Equal keys keep their relative order.
func ActiveOf(entries []models.Entry) []models.Entry {
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsActive() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderKey < out[j].OrderKey })
	return out
}

func indexOf(entries []models.Entry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
