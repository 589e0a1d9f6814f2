package service

import (
	"context"

	"github.com/vogiaan1904/barberqueue/internal/models"
)

// JoinQueueInput describes an admission. BookingFor is an hour of day;
// anything outside 0..23 is dropped.
type JoinQueueInput struct {
	Name          string
	ServiceType   models.ServiceType
	Channel       models.Channel
	DeviceID      string
	ExpoPushToken string
	WebPushToken  string
	BookingFor    *int
}

// PositionOutput reports where an entry stands. Ahead counts the waiting
// entries in front of it and is -1 unless Status is waiting.
type PositionOutput struct {
	EntryID string             `json:"entry_id"`
	Status  models.EntryStatus `json:"status"`
	Ahead   int                `json:"ahead"`
	Waiting int                `json:"waiting"`
}

// Unsubscribe stops a live subscription. It waits for a callback already
// in progress, and no callback starts after it returns. Calling it more than
// once is safe.
type Unsubscribe func()

// EventPublisher receives every successful queue transition and revenue
// append. Delivery is best effort.
type EventPublisher interface {
	PublishQueueEvent(ctx context.Context, evt models.QueueEvent) error
	PublishRevenueLogged(ctx context.Context, log models.RevenueLog) error
}
