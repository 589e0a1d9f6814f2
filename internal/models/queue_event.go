package models

import "time"

type QueueEventType string

const (
	QueueEventJoined  QueueEventType = "joined"
	QueueEventServing QueueEventType = "serving"
	QueueEventDone    QueueEventType = "done"
	QueueEventAbsent  QueueEventType = "absent"
	QueueEventMoved   QueueEventType = "moved"
)

// QueueEvent is emitted after every successful queue transition.
type QueueEvent struct {
	Type        QueueEventType `json:"type"`
	EntryID     string         `json:"entry_id"`
	Name        string         `json:"name,omitempty"`
	ServiceType ServiceType    `json:"service_type,omitempty"`
	Channel     Channel        `json:"channel,omitempty"`
	OrderKey    int64          `json:"order_key,omitempty"`
	Amount      *float64       `json:"amount,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
