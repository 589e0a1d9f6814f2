// Package notify turns queue snapshots into customer and admin
// notifications and hands them to a Sink.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/service"
	"github.com/vogiaan1904/barberqueue/internal/session"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
)

const (
	titleYourTurn   = "It is your turn"
	bodyYourTurn    = "Please go to the barber chair now."
	titleQueueMove  = "Queue update"
	titleNewEntry   = "New customer in queue"
	titleNowServing = "Customer is now serving"
)

// SnapshotSource is the part of the queue service the watcher consumes.
type SnapshotSource interface {
	SubscribeActive(ctx context.Context, cb func([]models.Entry)) (service.Unsubscribe, error)
}

// Devices registered without ever joining are forgotten after this long.
const deviceIdleTTL = 12 * time.Hour

type deviceState struct {
	lastAhead int
	servedID  string
	// seen is set once the device's entry has shown up in a snapshot.
	seen   bool
	pinned bool
	since  time.Time
}

func (st *deviceState) reset() {
	st.lastAhead = -1
	st.servedID = ""
}

// Watcher keeps per-device progress and the previous snapshot so each
// notification fires once per change. Admin notices follow the AdminBus
// while Run is active.
type Watcher struct {
	src  SnapshotSource
	bus  *session.AdminBus
	sink Sink
	l    logger.Logger
	now  func() time.Time

	mu      sync.Mutex
	devices map[string]*deviceState
	prev    []models.Entry
	adminOn bool
}

// NewWatcher follows deviceIDs for as long as it runs; devices added later
// through Watch are dropped once their entry leaves the queue.
func NewWatcher(src SnapshotSource, bus *session.AdminBus, deviceIDs []string, sink Sink, l logger.Logger) *Watcher {
	w := &Watcher{
		src:     src,
		bus:     bus,
		sink:    sink,
		l:       l,
		now:     time.Now,
		devices: make(map[string]*deviceState, len(deviceIDs)),
	}
	for _, id := range deviceIDs {
		if id != "" {
			w.devices[id] = &deviceState{lastAhead: -1, pinned: true}
		}
	}
	return w
}

// Watch starts following the entry owned by deviceID.
func (w *Watcher) Watch(deviceID string) {
	if deviceID == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.devices[deviceID]; !ok {
		w.devices[deviceID] = &deviceState{lastAhead: -1, since: w.now()}
	}
}

// Run observes snapshots until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	stopAdmin := w.listenAdmin()
	defer stopAdmin()

	unsubscribe, err := w.src.SubscribeActive(ctx, func(active []models.Entry) {
		w.Observe(ctx, active)
	})
	if err != nil {
		w.l.Errorf(ctx, "notify.Watcher.Run: %v", err)
		return err
	}
	defer unsubscribe()

	w.l.Infof(ctx, "notify watcher started")
	<-ctx.Done()
	return nil
}

// listenAdmin mirrors the bus into the watcher until the returned func is
// called.
func (w *Watcher) listenAdmin() func() {
	if w.bus == nil {
		return func() {}
	}
	stop := w.bus.Subscribe(func(on bool) {
		w.mu.Lock()
		w.adminOn = on
		w.mu.Unlock()
	})
	return func() {
		stop()
		w.mu.Lock()
		w.adminOn = false
		w.mu.Unlock()
	}
}

// Observe applies one active snapshot.
func (w *Watcher) Observe(ctx context.Context, active []models.Entry) {
	now := w.now()

	w.mu.Lock()
	var out []Notification
	for deviceID, st := range w.devices {
		mine := ownEntry(active, deviceID)
		if mine == nil {
			if !st.pinned && (st.seen || now.Sub(st.since) > deviceIdleTTL) {
				delete(w.devices, deviceID)
				continue
			}
			st.reset()
			continue
		}
		st.seen = true
		if n, ok := customerNotice(active, mine, st); ok {
			out = append(out, n)
		}
	}
	if w.adminOn {
		out = append(out, adminNotices(w.prev, active)...)
	}
	w.prev = active
	w.mu.Unlock()

	for _, n := range out {
		if err := w.sink.Notify(ctx, n); err != nil {
			w.l.Warnf(ctx, "notify.Watcher.Observe: %s: %v", n.Title, err)
		}
	}
}

func ownEntry(active []models.Entry, deviceID string) *models.Entry {
	for i := range active {
		e := &active[i]
		if e.Channel == models.ChannelOnline && e.DeviceID == deviceID && e.IsActive() {
			return e
		}
	}
	return nil
}

func customerNotice(active []models.Entry, mine *models.Entry, st *deviceState) (Notification, bool) {
	if mine.Status == models.EntryStatusServing {
		if st.servedID == mine.ID {
			return Notification{}, false
		}
		st.servedID = mine.ID
		return customerNotification(mine, titleYourTurn, bodyYourTurn), true
	}

	ahead := -1
	waiting := 0
	for i := range active {
		if active[i].Status != models.EntryStatusWaiting {
			continue
		}
		if active[i].ID == mine.ID {
			ahead = waiting
			break
		}
		waiting++
	}
	if ahead < 0 {
		return Notification{}, false
	}

	prev := st.lastAhead
	st.lastAhead = ahead
	if ahead > 2 || ahead == prev {
		return Notification{}, false
	}
	return customerNotification(mine, titleQueueMove, aheadBody(ahead)), true
}

func aheadBody(ahead int) string {
	switch ahead {
	case 0:
		return "You are next in line."
	case 1:
		return "1 customer ahead of you."
	default:
		return fmt.Sprintf("%d customers ahead of you.", ahead)
	}
}

func customerNotification(e *models.Entry, title, body string) Notification {
	return Notification{
		Audience:      AudienceCustomer,
		Title:         title,
		Body:          body,
		EntryID:       e.ID,
		DeviceID:      e.DeviceID,
		ExpoPushToken: e.ExpoPushToken,
		WebPushToken:  e.WebPushToken,
	}
}

func adminNotices(prev, active []models.Entry) []Notification {
	prevByID := make(map[string]models.EntryStatus, len(prev))
	for _, e := range prev {
		prevByID[e.ID] = e.Status
	}

	var out []Notification
	for _, e := range active {
		if e.Status != models.EntryStatusWaiting {
			continue
		}
		if st, ok := prevByID[e.ID]; ok && st == models.EntryStatusWaiting {
			continue
		}
		out = append(out, Notification{
			Audience: AudienceAdmin,
			Title:    titleNewEntry,
			Body:     e.Name + " joined the queue.",
			EntryID:  e.ID,
		})
		break
	}

	for _, e := range active {
		st, ok := prevByID[e.ID]
		if !ok || st == models.EntryStatusServing || e.Status != models.EntryStatusServing {
			continue
		}
		out = append(out, Notification{
			Audience: AudienceAdmin,
			Title:    titleNowServing,
			Body:     e.Name + " is now in service.",
			EntryID:  e.ID,
		})
	}
	return out
}
