package kafka

import "github.com/vogiaan1904/barberqueue/internal/models"

const (
	TopicQueueEntryJoined  = "queue.entry.joined"
	TopicQueueEntryServing = "queue.entry.serving"
	TopicQueueEntryDone    = "queue.entry.done"
	TopicQueueEntryAbsent  = "queue.entry.absent"
	TopicQueueEntryMoved   = "queue.entry.moved"
	TopicRevenueLogged     = "revenue.logged"

	TopicNotificationRequested = "notification.requested"

	TopicPaymentCompleted = "payment.completed"
	TopicVisitCancelled   = "visit.cancelled"
)

// HeaderTimestamp carries the produce time as ISO 8601 UTC.
const HeaderTimestamp = "timestamp"

// QueueEventTopic maps an event type to its topic. Unknown types map to "".
func QueueEventTopic(t models.QueueEventType) string {
	switch t {
	case models.QueueEventJoined:
		return TopicQueueEntryJoined
	case models.QueueEventServing:
		return TopicQueueEntryServing
	case models.QueueEventDone:
		return TopicQueueEntryDone
	case models.QueueEventAbsent:
		return TopicQueueEntryAbsent
	case models.QueueEventMoved:
		return TopicQueueEntryMoved
	default:
		return ""
	}
}
