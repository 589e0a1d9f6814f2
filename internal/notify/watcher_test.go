package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/namecheck"
	"github.com/vogiaan1904/barberqueue/internal/repository/memory"
	"github.com/vogiaan1904/barberqueue/internal/service"
	"github.com/vogiaan1904/barberqueue/internal/session"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
	"github.com/vogiaan1904/barberqueue/pkg/util"
)

type recordingSink struct {
	mu  sync.Mutex
	got []Notification
	err error
}

func (s *recordingSink) Notify(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return s.err
}

func (s *recordingSink) bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.got))
	for i, n := range s.got {
		out[i] = n.Body
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = nil
}

func entry(id, name string, status models.EntryStatus, key int64) models.Entry {
	return models.Entry{ID: id, Name: name, Status: status, OrderKey: key, Channel: models.ChannelWalkIn}
}

func online(id, name, device string, status models.EntryStatus, key int64) models.Entry {
	e := entry(id, name, status, key)
	e.Channel = models.ChannelOnline
	e.DeviceID = device
	e.ExpoPushToken = "expo-" + id
	return e
}

const (
	waiting = models.EntryStatusWaiting
	serving = models.EntryStatusServing
)

func TestWatcher_CustomerCountdown(t *testing.T) {
	sink := &recordingSink{}
	w := NewWatcher(nil, nil, []string{"dev-1"}, sink, logger.NewNop())
	ctx := context.Background()

	snap := func(others int) []models.Entry {
		var s []models.Entry
		for i := 0; i < others; i++ {
			s = append(s, entry(string(rune('a'+i)), "X", waiting, int64(i)))
		}
		return append(s, online("me", "Me", "dev-1", waiting, 100))
	}

	w.Observe(ctx, snap(4))
	assert.Empty(t, sink.got)

	w.Observe(ctx, snap(2))
	w.Observe(ctx, snap(2))
	w.Observe(ctx, snap(1))
	w.Observe(ctx, snap(0))
	assert.Equal(t, []string{
		"2 customers ahead of you.",
		"1 customer ahead of you.",
		"You are next in line.",
	}, sink.bodies())

	require.Len(t, sink.got, 3)
	assert.Equal(t, AudienceCustomer, sink.got[0].Audience)
	assert.Equal(t, "dev-1", sink.got[0].DeviceID)
	assert.Equal(t, "expo-me", sink.got[0].ExpoPushToken)
	assert.Equal(t, titleQueueMove, sink.got[0].Title)
}

func TestWatcher_ServingEntriesDoNotCountAhead(t *testing.T) {
	sink := &recordingSink{}
	w := NewWatcher(nil, nil, []string{"dev-1"}, sink, logger.NewNop())

	w.Observe(context.Background(), []models.Entry{
		entry("a", "A", serving, 1),
		entry("b", "B", waiting, 2),
		online("me", "Me", "dev-1", waiting, 3),
	})
	assert.Equal(t, []string{"1 customer ahead of you."}, sink.bodies())
}

func TestWatcher_YourTurnOncePerEntry(t *testing.T) {
	sink := &recordingSink{}
	w := NewWatcher(nil, nil, []string{"dev-1"}, sink, logger.NewNop())
	ctx := context.Background()

	mine := []models.Entry{online("me", "Me", "dev-1", serving, 1)}
	w.Observe(ctx, mine)
	w.Observe(ctx, mine)
	require.Len(t, sink.got, 1)
	assert.Equal(t, titleYourTurn, sink.got[0].Title)
	assert.Equal(t, bodyYourTurn, sink.got[0].Body)

	// Leaving the queue resets state so a later visit notifies again.
	w.Observe(ctx, nil)
	w.Observe(ctx, []models.Entry{online("me2", "Me", "dev-1", waiting, 5)})
	w.Observe(ctx, []models.Entry{online("me2", "Me", "dev-1", serving, 5)})
	assert.Equal(t, []string{bodyYourTurn, "You are next in line.", bodyYourTurn}, sink.bodies())
}

func TestWatcher_IgnoresWalkInsWithSameDevice(t *testing.T) {
	sink := &recordingSink{}
	w := NewWatcher(nil, nil, []string{"dev-1"}, sink, logger.NewNop())

	walkIn := entry("w", "W", serving, 1)
	walkIn.DeviceID = "dev-1"
	w.Observe(context.Background(), []models.Entry{walkIn})
	assert.Empty(t, sink.got)
}

func TestWatcher_AdminNotices(t *testing.T) {
	sink := &recordingSink{}
	bus := session.NewAdminBus(true)
	w := NewWatcher(nil, bus, nil, sink, logger.NewNop())
	stop := w.listenAdmin()
	defer stop()
	ctx := context.Background()

	w.Observe(ctx, []models.Entry{entry("a", "Ana", waiting, 1)})
	assert.Equal(t, []string{"Ana joined the queue."}, sink.bodies())
	sink.reset()

	// Only the first newcomer is announced.
	w.Observe(ctx, []models.Entry{
		entry("a", "Ana", waiting, 1),
		entry("b", "Bruno", waiting, 2),
		entry("c", "Carla", waiting, 3),
	})
	assert.Equal(t, []string{"Bruno joined the queue."}, sink.bodies())
	sink.reset()

	w.Observe(ctx, []models.Entry{
		entry("a", "Ana", serving, 1),
		entry("b", "Bruno", serving, 2),
		entry("c", "Carla", waiting, 3),
	})
	assert.Equal(t, []string{"Ana is now in service.", "Bruno is now in service."}, sink.bodies())
	assert.Equal(t, AudienceAdmin, sink.got[0].Audience)
	assert.Equal(t, titleNowServing, sink.got[0].Title)
}

func TestWatcher_AdminDisabledStillTracksPrevious(t *testing.T) {
	sink := &recordingSink{}
	bus := session.NewAdminBus(false)
	w := NewWatcher(nil, bus, nil, sink, logger.NewNop())
	stop := w.listenAdmin()
	defer stop()
	ctx := context.Background()

	w.Observe(ctx, []models.Entry{entry("a", "Ana", waiting, 1)})
	assert.Empty(t, sink.got)

	bus.Set(true)
	w.Observe(ctx, []models.Entry{entry("a", "Ana", waiting, 1)})
	assert.Empty(t, sink.got)

	w.Observe(ctx, []models.Entry{entry("a", "Ana", waiting, 1), entry("b", "Bruno", waiting, 2)})
	assert.Equal(t, []string{"Bruno joined the queue."}, sink.bodies())
}

func TestWatcher_SinkFailureDoesNotStopOthers(t *testing.T) {
	sink := &recordingSink{err: errors.New("down")}
	w := NewWatcher(nil, session.NewAdminBus(true), nil, sink, logger.NewNop())
	stop := w.listenAdmin()
	defer stop()
	ctx := context.Background()

	w.Observe(ctx, []models.Entry{entry("a", "Ana", waiting, 1)})
	w.Observe(ctx, []models.Entry{entry("a", "Ana", serving, 1), entry("b", "Bruno", waiting, 2)})
	assert.Len(t, sink.got, 3)
}

func TestWatcher_RunAgainstQueueService(t *testing.T) {
	clock := &util.FixedClock{T: time.UnixMilli(1_700_000_000_000)}
	svc := service.NewQueueService(memory.NewQueueRepository(), memory.NewRevenueRepository(),
		namecheck.New(), clock, nil, logger.NewNop())
	sink := &recordingSink{}
	w := NewWatcher(svc, session.NewAdminBus(false), []string{"dev-9"}, sink, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	id, err := svc.Join(ctx, service.JoinQueueInput{Name: "Dora", DeviceID: "dev-9", Channel: models.ChannelOnline})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(sink.bodies()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Serve(ctx, id))
	require.Eventually(t, func() bool {
		return len(sink.bodies()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"You are next in line.", bodyYourTurn}, sink.bodies())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_AdminNoticesFollowSubscription(t *testing.T) {
	sink := &recordingSink{}
	bus := session.NewAdminBus(true)
	w := NewWatcher(nil, bus, nil, sink, logger.NewNop())
	ctx := context.Background()

	w.Observe(ctx, []models.Entry{entry("a", "Ana", waiting, 1)})
	assert.Empty(t, sink.got, "no admin notices before listening")

	stop := w.listenAdmin()
	w.Observe(ctx, []models.Entry{entry("a", "Ana", waiting, 1), entry("b", "Bruno", waiting, 2)})
	assert.Equal(t, []string{"Bruno joined the queue."}, sink.bodies())

	stop()
	stop()
	bus.Set(true)
	w.Observe(ctx, []models.Entry{entry("c", "Carla", waiting, 3)})
	assert.Len(t, sink.got, 1)
}

func TestWatcher_ForgetsDevicesAfterTheirVisit(t *testing.T) {
	sink := &recordingSink{}
	w := NewWatcher(nil, nil, []string{"kiosk"}, sink, logger.NewNop())
	ctx := context.Background()

	w.Watch("dev-1")
	w.Observe(ctx, []models.Entry{online("me", "Me", "dev-1", waiting, 1)})
	assert.Len(t, w.devices, 2)

	w.Observe(ctx, nil)
	assert.Len(t, w.devices, 1)
	assert.Contains(t, w.devices, "kiosk")

	// Joining again starts a fresh countdown.
	w.Watch("dev-1")
	w.Observe(ctx, []models.Entry{online("me2", "Me", "dev-1", waiting, 5)})
	assert.Equal(t, []string{"You are next in line.", "You are next in line."}, sink.bodies())
}

func TestWatcher_ExpiresIdleRegistrations(t *testing.T) {
	now := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	w := NewWatcher(nil, nil, nil, &recordingSink{}, logger.NewNop())
	w.now = func() time.Time { return now }
	ctx := context.Background()

	w.Watch("dev-1")
	w.Observe(ctx, nil)
	assert.Len(t, w.devices, 1)

	now = now.Add(deviceIdleTTL + time.Minute)
	w.Observe(ctx, nil)
	assert.Empty(t, w.devices)
}

func TestWatcher_RunFollowsAdminBus(t *testing.T) {
	clock := &util.FixedClock{T: time.UnixMilli(1_700_000_000_000)}
	svc := service.NewQueueService(memory.NewQueueRepository(), memory.NewRevenueRepository(),
		namecheck.New(), clock, nil, logger.NewNop())
	sink := &recordingSink{}
	bus := session.NewAdminBus(false)
	w := NewWatcher(svc, bus, nil, sink, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	_, err := svc.Join(ctx, service.JoinQueueInput{Name: "Ana", Channel: models.ChannelWalkIn})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.bodies())

	bus.Set(true)
	_, err = svc.Join(ctx, service.JoinQueueInput{Name: "Bruno", Channel: models.ChannelWalkIn})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(sink.bodies()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Bruno joined the queue."}, sink.bodies())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.False(t, w.adminOn)
}
