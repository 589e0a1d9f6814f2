package models

import "time"

type ServiceType string

const (
	ServiceHair         ServiceType = "Hair"
	ServiceHairAndBeard ServiceType = "Hair & Beard"
	ServiceOrganizeTrim ServiceType = "Organize/Trim"
)

func (s ServiceType) Valid() bool {
	switch s {
	case ServiceHair, ServiceHairAndBeard, ServiceOrganizeTrim:
		return true
	}
	return false
}

type Channel string

const (
	ChannelOnline Channel = "online"
	ChannelWalkIn Channel = "walk-in"
)

func (c Channel) Valid() bool {
	return c == ChannelOnline || c == ChannelWalkIn
}

type EntryStatus string

const (
	EntryStatusWaiting EntryStatus = "waiting"
	EntryStatusServing EntryStatus = "serving"
	EntryStatusDone    EntryStatus = "done"
	EntryStatusAbsent  EntryStatus = "absent"
)

// Entry is one customer's record in the day's queue. OrderKey is the
// millisecond timestamp that alone defines position in line.
type Entry struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	NameKey       string      `json:"name_key"`
	ServiceType   ServiceType `json:"service_type,omitempty"`
	Channel       Channel     `json:"channel"`
	DeviceID      string      `json:"device_id,omitempty"`
	ExpoPushToken string      `json:"expo_push_token,omitempty"`
	WebPushToken  string      `json:"web_push_token,omitempty"`
	Status        EntryStatus `json:"status"`
	OrderKey      int64       `json:"order_key"`
	BookingFor    *int        `json:"booking_for,omitempty"`
	CompletedAt   *int64      `json:"completed_at,omitempty"`
	AmountPaid    *float64    `json:"amount_paid,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (e *Entry) IsActive() bool {
	return e.Status == EntryStatusWaiting || e.Status == EntryStatusServing
}

func (e *Entry) IsTerminal() bool {
	return e.Status == EntryStatusDone || e.Status == EntryStatusAbsent
}

// EntryUpdate is a partial record. Only non-nil fields are written.
type EntryUpdate struct {
	Status      *EntryStatus
	OrderKey    *int64
	CompletedAt *int64
	AmountPaid  *float64
}

func (u EntryUpdate) IsEmpty() bool {
	return u.Status == nil && u.OrderKey == nil && u.CompletedAt == nil && u.AmountPaid == nil
}

// Apply merges the update into e in place.
func (u EntryUpdate) Apply(e *Entry) {
	if u.Status != nil {
		e.Status = *u.Status
	}
	if u.OrderKey != nil {
		e.OrderKey = *u.OrderKey
	}
	if u.CompletedAt != nil {
		v := *u.CompletedAt
		e.CompletedAt = &v
	}
	if u.AmountPaid != nil {
		v := *u.AmountPaid
		e.AmountPaid = &v
	}
}

func StatusPtr(s EntryStatus) *EntryStatus { return &s }
func Int64Ptr(v int64) *int64               { return &v }
func Float64Ptr(v float64) *float64         { return &v }
