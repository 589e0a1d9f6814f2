package kafka

import (
	"time"

	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/notify"
)

// Events published BY the queue service

type RevenueLoggedEvent struct {
	ID           string             `json:"id"`
	Amount       float64            `json:"amount"`
	ServiceType  models.ServiceType `json:"service_type"`
	CustomerName string             `json:"customer_name,omitempty"`
	LoggedAt     time.Time          `json:"logged_at"`
	Timestamp    time.Time          `json:"timestamp"`
}

type NotificationRequestedEvent struct {
	notify.Notification
	Timestamp time.Time `json:"timestamp"`
}

// Events consumed BY the queue service (from POS and booking systems)

type PaymentCompletedEvent struct {
	EntryID   string    `json:"entry_id"`
	PaymentID string    `json:"payment_id"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type VisitCancelledEvent struct {
	EntryID   string    `json:"entry_id"`
	Reason    string    `json:"reason"` // no_show, customer_left, booking_cancelled
	Timestamp time.Time `json:"timestamp"`
}
