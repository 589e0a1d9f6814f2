package http

import (
	"time"

	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/service"
)

type joinRequest struct {
	Name          string             `json:"name"`
	ServiceType   models.ServiceType `json:"service_type"`
	Channel       models.Channel     `json:"channel"`
	DeviceID      string             `json:"device_id"`
	ExpoPushToken string             `json:"expo_push_token"`
	WebPushToken  string             `json:"web_push_token"`
	BookingFor    *int               `json:"booking_for"`
}

func (r joinRequest) toInput(channel models.Channel) service.JoinQueueInput {
	return service.JoinQueueInput{
		Name:          r.Name,
		ServiceType:   r.ServiceType,
		Channel:       channel,
		DeviceID:      r.DeviceID,
		ExpoPushToken: r.ExpoPushToken,
		WebPushToken:  r.WebPushToken,
		BookingFor:    r.BookingFor,
	}
}

type joinResponse struct {
	ID       string                 `json:"id"`
	Position service.PositionOutput `json:"position"`
}

type completeRequest struct {
	Amount *float64 `json:"amount" binding:"required"`
}

type snapshotItem struct {
	ID       string `json:"id" binding:"required"`
	OrderKey int64  `json:"order_key"`
}

type moveDownRequest struct {
	Snapshot []snapshotItem `json:"snapshot"`
}

func (r moveDownRequest) entries() []models.Entry {
	out := make([]models.Entry, len(r.Snapshot))
	for i, it := range r.Snapshot {
		out[i] = models.Entry{ID: it.ID, OrderKey: it.OrderKey}
	}
	return out
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type notificationsRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type notificationsResponse struct {
	Enabled bool `json:"enabled"`
}

type deviceResponse struct {
	DeviceID string `json:"device_id"`
}

// queueEntryResp is the public view of an entry; device ids and push
// tokens stay server side.
type queueEntryResp struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	ServiceType models.ServiceType `json:"service_type"`
	Channel     models.Channel     `json:"channel"`
	Status      models.EntryStatus `json:"status"`
	OrderKey    int64              `json:"order_key"`
	BookingFor  *int               `json:"booking_for,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Position    int                `json:"position"`
}

type queueResponse struct {
	Entries []queueEntryResp `json:"entries"`
	Waiting int              `json:"waiting"`
	Serving int              `json:"serving"`
}

// newQueueResponse numbers entries 1..n in queue order.
func newQueueResponse(active []models.Entry) queueResponse {
	resp := queueResponse{Entries: make([]queueEntryResp, len(active))}
	for i, e := range active {
		resp.Entries[i] = queueEntryResp{
			ID:          e.ID,
			Name:        e.Name,
			ServiceType: e.ServiceType,
			Channel:     e.Channel,
			Status:      e.Status,
			OrderKey:    e.OrderKey,
			BookingFor:  e.BookingFor,
			CreatedAt:   e.CreatedAt,
			Position:    i + 1,
		}
		switch e.Status {
		case models.EntryStatusWaiting:
			resp.Waiting++
		case models.EntryStatusServing:
			resp.Serving++
		}
	}
	return resp
}

type monthDaysResponse struct {
	MonthStart int64              `json:"month_start"`
	Days       []models.DayBucket `json:"days"`
}
