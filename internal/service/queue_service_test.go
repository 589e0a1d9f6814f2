package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/namecheck"
	"github.com/vogiaan1904/barberqueue/internal/repository"
	"github.com/vogiaan1904/barberqueue/internal/repository/memory"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
)

func backends() map[string]func(*testing.T) *fixture {
	return map[string]func(*testing.T) *fixture{
		"memory": newMemoryFixture,
		"redis":  newRedisFixture,
	}
}

func TestJoin_ThenListActive(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			f := mk(t)
			ctx := context.Background()

			id, err := f.svc.Join(ctx, JoinQueueInput{Name: "  Ana   Souza ", ServiceType: models.ServiceHair})
			require.NoError(t, err)

			active, err := f.svc.ListActive(ctx)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, id, active[0].ID)
			assert.Equal(t, "Ana Souza", active[0].Name)
			assert.Equal(t, "anasouza", active[0].NameKey)
			assert.Equal(t, models.EntryStatusWaiting, active[0].Status)
			assert.Equal(t, models.ChannelOnline, active[0].Channel, "channel defaults to online")
			assert.Equal(t, f.clock.Now().UnixMilli(), active[0].OrderKey)

			assert.Equal(t, []models.QueueEventType{models.QueueEventJoined}, f.pub.types())
		})
	}
}

func TestJoin_DuplicateName(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			f := mk(t)
			ctx := context.Background()

			id := f.joinAt(t, "John Doe", 10)

			for _, variant := range []string{"john doe", "JOHN   DOE", "John-Doe", " john.doe "} {
				_, err := f.svc.Join(ctx, JoinQueueInput{Name: variant})
				assert.ErrorIs(t, err, ErrNameAlreadyQueued, variant)
			}

			// a serving entry still blocks the name
			require.NoError(t, f.svc.Serve(ctx, id))
			_, err := f.svc.Join(ctx, JoinQueueInput{Name: "john doe"})
			assert.ErrorIs(t, err, ErrNameAlreadyQueued)

			// once terminal the name is free again
			require.NoError(t, f.svc.Remove(ctx, id))
			_, err = f.svc.Join(ctx, JoinQueueInput{Name: "john doe"})
			assert.NoError(t, err)
		})
	}
}

func TestJoin_DuplicateDevice(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			f := mk(t)
			ctx := context.Background()

			_, err := f.svc.Join(ctx, JoinQueueInput{Name: "Ana", Channel: models.ChannelOnline, DeviceID: "dev-1"})
			require.NoError(t, err)

			_, err = f.svc.Join(ctx, JoinQueueInput{Name: "Bruno", Channel: models.ChannelOnline, DeviceID: "dev-1"})
			assert.ErrorIs(t, err, ErrDeviceAlreadyQueued)

			// walk-ins never carry a device id
			_, err = f.svc.Join(ctx, JoinQueueInput{Name: "Bruno", Channel: models.ChannelWalkIn, DeviceID: "dev-1"})
			assert.NoError(t, err)

			_, err = f.svc.Join(ctx, JoinQueueInput{Name: "Carla", Channel: models.ChannelOnline, DeviceID: "dev-2"})
			assert.NoError(t, err)
		})
	}
}

func TestJoin_ChannelSpecificFields(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	nine, late := 9, 25
	onlineID, err := f.svc.Join(ctx, JoinQueueInput{
		Name:          "Ana",
		Channel:       models.ChannelOnline,
		DeviceID:      "dev-1",
		ExpoPushToken: "expo",
		WebPushToken:  "web",
		BookingFor:    &nine,
	})
	require.NoError(t, err)

	walkInID, err := f.svc.Join(ctx, JoinQueueInput{
		Name:          "Bruno",
		Channel:       models.ChannelWalkIn,
		DeviceID:      "dev-2",
		ExpoPushToken: "expo",
		BookingFor:    &late,
	})
	require.NoError(t, err)

	online, err := f.svc.Get(ctx, onlineID)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", online.DeviceID)
	assert.Equal(t, "expo", online.ExpoPushToken)
	assert.Equal(t, "web", online.WebPushToken)
	require.NotNil(t, online.BookingFor)
	assert.Equal(t, 9, *online.BookingFor)

	walkIn, err := f.svc.Get(ctx, walkInID)
	require.NoError(t, err)
	assert.Empty(t, walkIn.DeviceID)
	assert.Empty(t, walkIn.ExpoPushToken)
	assert.Nil(t, walkIn.BookingFor)
}

func TestJoin_RejectsBadInput(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, JoinQueueInput{Name: "admin"})
	assert.ErrorIs(t, err, namecheck.ErrBlockedName)

	_, err = f.svc.Join(ctx, JoinQueueInput{Name: "   "})
	assert.ErrorIs(t, err, namecheck.ErrEmptyName)

	_, err = f.svc.Join(ctx, JoinQueueInput{Name: "Ana", Channel: "phone"})
	assert.ErrorIs(t, err, ErrInvalidChannel)

	_, err = f.svc.Join(ctx, JoinQueueInput{Name: "Ana", ServiceType: "Shave"})
	assert.ErrorIs(t, err, ErrInvalidServiceType)

	assert.Empty(t, activeNames(t, f.svc))
	assert.Empty(t, f.pub.types())
}

func TestServeThenComplete(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			f := mk(t)
			ctx := context.Background()

			id, err := f.svc.Join(ctx, JoinQueueInput{Name: "Ana", ServiceType: models.ServiceHairAndBeard})
			require.NoError(t, err)

			require.NoError(t, f.svc.Serve(ctx, id))
			f.clock.Advance(30 * time.Minute)
			require.NoError(t, f.svc.Complete(ctx, id, 15.0))

			e, err := f.svc.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.EntryStatusDone, e.Status)
			require.NotNil(t, e.AmountPaid)
			assert.Equal(t, 15.0, *e.AmountPaid)
			require.NotNil(t, e.CompletedAt)
			assert.Equal(t, f.clock.Now().UnixMilli(), *e.CompletedAt)

			logs, err := f.revenue.List(ctx)
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, 15.0, logs[0].Amount)
			assert.Equal(t, models.ServiceHairAndBeard, logs[0].ServiceType)
			assert.Equal(t, *e.CompletedAt, logs[0].Timestamp)

			assert.Empty(t, activeNames(t, f.svc))
			assert.Equal(t, []models.QueueEventType{
				models.QueueEventJoined,
				models.QueueEventServing,
				models.QueueEventDone,
			}, f.pub.types())
			assert.Len(t, f.pub.revenue, 1)
		})
	}
}

func TestComplete_WithoutServiceType(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	id := f.joinAt(t, "Ana", 10)
	require.NoError(t, f.svc.Complete(ctx, id, 0))

	logs, err := f.revenue.List(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].ServiceType)
	assert.Zero(t, logs[0].Amount)
}

func TestComplete_RejectsInvalidAmount(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	id := f.joinAt(t, "Ana", 10)

	for _, amount := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.ErrorIs(t, f.svc.Complete(ctx, id, amount), ErrInvalidAmount)
	}

	e, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusWaiting, e.Status)
}

func TestTerminalTransitions(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	done := f.joinAt(t, "Ana", 10)
	require.NoError(t, f.svc.Complete(ctx, done, 20))
	absent := f.joinAt(t, "Bruno", 20)
	require.NoError(t, f.svc.Remove(ctx, absent))

	assert.ErrorIs(t, f.svc.Serve(ctx, done), ErrInvalidTransition)
	assert.ErrorIs(t, f.svc.Complete(ctx, done, 20), ErrInvalidTransition)
	assert.ErrorIs(t, f.svc.Remove(ctx, done), ErrInvalidTransition)
	assert.ErrorIs(t, f.svc.Serve(ctx, absent), ErrInvalidTransition)
	assert.ErrorIs(t, f.svc.Complete(ctx, absent, 20), ErrInvalidTransition)

	logs, err := f.revenue.List(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "a rejected completion must not log revenue")
}

func TestServe_AllowsTwoServing(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	a := f.joinAt(t, "Ana", 10)
	b := f.joinAt(t, "Bruno", 20)

	require.NoError(t, f.svc.Serve(ctx, a))
	require.NoError(t, f.svc.Serve(ctx, b))
	require.NoError(t, f.svc.Serve(ctx, b))

	active, err := f.svc.ListActive(ctx)
	require.NoError(t, err)
	for _, e := range active {
		assert.Equal(t, models.EntryStatusServing, e.Status)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			f := mk(t)
			ctx := context.Background()

			a := f.joinAt(t, "Ana", 10)
			f.joinAt(t, "Bruno", 20)

			require.NoError(t, f.svc.Remove(ctx, a))
			require.NoError(t, f.svc.Remove(ctx, a))

			assert.Equal(t, []string{"Bruno"}, activeNames(t, f.svc))
			assert.ErrorIs(t, f.svc.Remove(ctx, "missing"), ErrEntryNotFound)
			assert.ErrorIs(t, f.svc.Serve(ctx, "missing"), ErrEntryNotFound)
			assert.ErrorIs(t, f.svc.Complete(ctx, "missing", 1), ErrEntryNotFound)
		})
	}
}

func TestComplete_RevenueAppendFails(t *testing.T) {
	queue := memory.NewQueueRepository()
	f := newFixture(t, queue, failingRevenueRepo{})
	ctx := context.Background()

	id := f.joinAt(t, "Ana", 10)
	err := f.svc.Complete(ctx, id, 15)
	require.ErrorIs(t, err, errRevenueDown)

	e, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusDone, e.Status, "status update stands")
}

func TestMoveDown(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			f := mk(t)
			ctx := context.Background()

			a := f.joinAt(t, "Ana", 10)
			f.joinAt(t, "Bruno", 20)
			c := f.joinAt(t, "Carla", 30)

			snap, err := f.svc.ListActive(ctx)
			require.NoError(t, err)

			// last entry: no-op
			require.NoError(t, f.svc.MoveDown(ctx, c, snap))
			assert.Equal(t, []string{"Ana", "Bruno", "Carla"}, activeNames(t, f.svc))

			// not in snapshot: no-op
			require.NoError(t, f.svc.MoveDown(ctx, "missing", snap))

			require.NoError(t, f.svc.MoveDown(ctx, a, snap))
			assert.Equal(t, []string{"Bruno", "Ana", "Carla"}, activeNames(t, f.svc))

			e, err := f.svc.Get(ctx, a)
			require.NoError(t, err)
			assert.Equal(t, int64(21), e.OrderKey)
		})
	}
}

func TestMoveDown_StaleSnapshot(t *testing.T) {
	t.Run("plain store drifts", func(t *testing.T) {
		f := newMemoryFixture(t)
		ctx := context.Background()

		a := f.joinAt(t, "Ana", 10)
		b := f.joinAt(t, "Bruno", 20)
		f.joinAt(t, "Carla", 30)

		stale, err := f.svc.ListActive(ctx)
		require.NoError(t, err)

		fresh, err := f.svc.ListActive(ctx)
		require.NoError(t, err)
		require.NoError(t, f.svc.MoveDown(ctx, b, fresh))

		// Ana is spliced behind Bruno's old key, which no longer follows her,
		// so the move lands without changing her place
		require.NoError(t, f.svc.MoveDown(ctx, a, stale))
		assert.Equal(t, []string{"Ana", "Carla", "Bruno"}, activeNames(t, f.svc))

		e, err := f.svc.Get(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, int64(21), e.OrderKey)
	})

	t.Run("conditional store rejects", func(t *testing.T) {
		f := newRedisFixture(t)
		ctx := context.Background()

		a := f.joinAt(t, "Ana", 10)
		b := f.joinAt(t, "Bruno", 20)
		f.joinAt(t, "Carla", 30)

		stale, err := f.svc.ListActive(ctx)
		require.NoError(t, err)
		require.NoError(t, f.svc.MoveDown(ctx, b, stale))

		err = f.svc.MoveDown(ctx, a, stale)
		assert.ErrorIs(t, err, ErrStaleSnapshot)
		assert.Equal(t, []string{"Ana", "Carla", "Bruno"}, activeNames(t, f.svc))
	})
}

func TestJoin_ConcurrentDuplicates(t *testing.T) {
	t.Run("plain store admits both", func(t *testing.T) {
		queue := newBarrierRepo(2)
		f := newFixture(t, queue, memory.NewRevenueRepository())

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.svc.Join(context.Background(), JoinQueueInput{Name: "Ana"})
			}(i)
		}
		wg.Wait()

		assert.NoError(t, errs[0])
		assert.NoError(t, errs[1])
		assert.Equal(t, []string{"Ana", "Ana"}, activeNames(t, f.svc))
	})

	t.Run("conditional store admits one", func(t *testing.T) {
		f := newRedisFixture(t)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.svc.Join(context.Background(), JoinQueueInput{Name: "Ana"})
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrNameAlreadyQueued), errors.Is(err, repository.ErrConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, []string{"Ana"}, activeNames(t, f.svc))
	})
}

func TestPosition(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	a := f.joinAt(t, "Ana", 10)
	b := f.joinAt(t, "Bruno", 20)
	c := f.joinAt(t, "Carla", 30)
	require.NoError(t, f.svc.Serve(ctx, a))

	pos, err := f.svc.Position(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, PositionOutput{EntryID: c, Status: models.EntryStatusWaiting, Ahead: 1, Waiting: 2}, pos)

	pos, err = f.svc.Position(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 0, pos.Ahead)

	pos, err = f.svc.Position(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusServing, pos.Status)
	assert.Equal(t, -1, pos.Ahead)

	require.NoError(t, f.svc.Complete(ctx, a, 10))
	pos, err = f.svc.Position(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusDone, pos.Status)
	assert.Equal(t, -1, pos.Ahead)

	_, err = f.svc.Position(ctx, "missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestSubscribeActive(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			f := mk(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a := f.joinAt(t, "Ana", 10)

			snaps := make(chan []models.Entry, 16)
			unsub, err := f.svc.SubscribeActive(ctx, func(entries []models.Entry) {
				snaps <- entries
			})
			require.NoError(t, err)

			next := func() []string {
				select {
				case s := <-snaps:
					out := make([]string, len(s))
					for i, e := range s {
						out[i] = e.Name
					}
					return out
				case <-time.After(2 * time.Second):
					t.Fatal("timed out waiting for snapshot")
					return nil
				}
			}

			assert.Equal(t, []string{"Ana"}, next())

			f.joinAt(t, "Bruno", 5)
			assert.Equal(t, []string{"Bruno", "Ana"}, next())

			require.NoError(t, f.svc.Complete(ctx, a, 10))
			assert.Equal(t, []string{"Bruno"}, next())

			unsub()
			unsub()

			f.joinAt(t, "Carla", 40)
			select {
			case s := <-snaps:
				t.Fatalf("callback after unsubscribe: %v", s)
			case <-time.After(100 * time.Millisecond):
			}
		})
	}
}

func TestNewQueueService_NilPublisher(t *testing.T) {
	svc := NewQueueService(memory.NewQueueRepository(), memory.NewRevenueRepository(), nil, &fixedNow, nil, logger.NewNop())
	ctx := context.Background()

	id, err := svc.Join(ctx, JoinQueueInput{Name: "Ana"})
	require.NoError(t, err)
	require.NoError(t, svc.Complete(ctx, id, 12))
}

func TestMoveDown_RepeatOnConditionalStoreIsNoop(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()

	a := f.joinAt(t, "Ana", 10)
	f.joinAt(t, "Bruno", 20)
	f.joinAt(t, "Carla", 30)

	snap, err := f.svc.ListActive(ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.MoveDown(ctx, a, snap))
	require.NoError(t, f.svc.MoveDown(ctx, a, snap))
	assert.Equal(t, []string{"Bruno", "Ana", "Carla"}, activeNames(t, f.svc))

	e, err := f.svc.Get(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(21), e.OrderKey)

	moves := 0
	for _, typ := range f.pub.types() {
		if typ == models.QueueEventMoved {
			moves++
		}
	}
	assert.Equal(t, 1, moves)
}

func TestSubscribeActive_UnsubscribeWaitsForCallback(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var (
		mu       sync.Mutex
		finished bool
	)
	unsub, err := f.svc.SubscribeActive(ctx, func([]models.Entry) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		mu.Lock()
		finished = true
		mu.Unlock()
	})
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}

	done := make(chan struct{})
	go func() {
		unsub()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("unsubscribe returned while a callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unsubscribe did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, finished)
}

func TestLeave_OnlyOwningDevice(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	mine, err := f.svc.Join(ctx, JoinQueueInput{Name: "Ana", Channel: models.ChannelOnline, DeviceID: "ana-phone"})
	require.NoError(t, err)
	walkIn := f.joinAt(t, "Bruno", 1_700_000_001_000)

	assert.ErrorIs(t, f.svc.Leave(ctx, mine, ""), ErrNotEntryOwner)
	assert.ErrorIs(t, f.svc.Leave(ctx, mine, "other-phone"), ErrNotEntryOwner)
	assert.ErrorIs(t, f.svc.Leave(ctx, walkIn, ""), ErrNotEntryOwner)
	assert.ErrorIs(t, f.svc.Leave(ctx, "missing", "ana-phone"), ErrEntryNotFound)
	assert.Equal(t, []string{"Ana", "Bruno"}, activeNames(t, f.svc))

	require.NoError(t, f.svc.Leave(ctx, mine, "ana-phone"))
	require.NoError(t, f.svc.Leave(ctx, mine, "ana-phone"))
	assert.Equal(t, []string{"Bruno"}, activeNames(t, f.svc))
}
