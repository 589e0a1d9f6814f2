package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/service"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
)

const MessageTypeSnapshot = "queue.snapshot"

type SnapshotSource interface {
	SubscribeActive(ctx context.Context, cb func([]models.Entry)) (service.Unsubscribe, error)
}

type snapshotEntry struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	ServiceType models.ServiceType `json:"service_type,omitempty"`
	Channel     models.Channel     `json:"channel"`
	Status      models.EntryStatus `json:"status"`
	OrderKey    int64              `json:"order_key"`
	BookingFor  *int               `json:"booking_for,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

type snapshotMessage struct {
	Type    string          `json:"type"`
	Entries []snapshotEntry `json:"entries"`
}

func encodeSnapshot(active []models.Entry) ([]byte, error) {
	msg := snapshotMessage{
		Type:    MessageTypeSnapshot,
		Entries: make([]snapshotEntry, len(active)),
	}
	for i, e := range active {
		msg.Entries[i] = snapshotEntry{
			ID:          e.ID,
			Name:        e.Name,
			ServiceType: e.ServiceType,
			Channel:     e.Channel,
			Status:      e.Status,
			OrderKey:    e.OrderKey,
			BookingFor:  e.BookingFor,
			CreatedAt:   e.CreatedAt,
		}
	}
	return json.Marshal(msg)
}

// Feed copies every active snapshot into the hub.
type Feed struct {
	hub *Hub
	src SnapshotSource
	l   logger.Logger
}

func NewFeed(hub *Hub, src SnapshotSource, l logger.Logger) *Feed {
	return &Feed{hub: hub, src: src, l: l}
}

// Run broadcasts until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	unsubscribe, err := f.src.SubscribeActive(ctx, func(active []models.Entry) {
		payload, err := encodeSnapshot(active)
		if err != nil {
			f.l.Errorf(ctx, "delivery.realtime.Feed: %v", err)
			return
		}
		f.hub.Broadcast(payload)
	})
	if err != nil {
		f.l.Errorf(ctx, "delivery.realtime.Feed.Run: %v", err)
		return err
	}
	defer unsubscribe()

	<-ctx.Done()
	return nil
}
