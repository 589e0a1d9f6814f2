package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vogiaan1904/barberqueue/internal/models"
)

const (
	fieldID            = "id"
	fieldName          = "name"
	fieldNameKey       = "name_key"
	fieldServiceType   = "service_type"
	fieldChannel       = "channel"
	fieldDeviceID      = "device_id"
	fieldExpoPushToken = "expo_push_token"
	fieldWebPushToken  = "web_push_token"
	fieldStatus        = "status"
	fieldOrderKey      = "order_key"
	fieldBookingFor    = "booking_for"
	fieldCompletedAt   = "completed_at"
	fieldAmountPaid    = "amount_paid"
	fieldCreatedAt     = "created_at"
)

func encodeEntry(e *models.Entry) map[string]interface{} {
	f := map[string]interface{}{
		fieldID:        e.ID,
		fieldName:      e.Name,
		fieldNameKey:   e.NameKey,
		fieldChannel:   string(e.Channel),
		fieldStatus:    string(e.Status),
		fieldOrderKey:  strconv.FormatInt(e.OrderKey, 10),
		fieldCreatedAt: strconv.FormatInt(e.CreatedAt.UnixMilli(), 10),
	}
	if e.ServiceType != "" {
		f[fieldServiceType] = string(e.ServiceType)
	}
	if e.DeviceID != "" {
		f[fieldDeviceID] = e.DeviceID
	}
	if e.ExpoPushToken != "" {
		f[fieldExpoPushToken] = e.ExpoPushToken
	}
	if e.WebPushToken != "" {
		f[fieldWebPushToken] = e.WebPushToken
	}
	if e.BookingFor != nil {
		f[fieldBookingFor] = strconv.Itoa(*e.BookingFor)
	}
	if e.CompletedAt != nil {
		f[fieldCompletedAt] = strconv.FormatInt(*e.CompletedAt, 10)
	}
	if e.AmountPaid != nil {
		f[fieldAmountPaid] = formatFloat(*e.AmountPaid)
	}
	return f
}

// encodeUpdate flattens the non-nil fields into HSET field/value pairs.
func encodeUpdate(u models.EntryUpdate) []interface{} {
	var args []interface{}
	if u.Status != nil {
		args = append(args, fieldStatus, string(*u.Status))
	}
	if u.OrderKey != nil {
		args = append(args, fieldOrderKey, strconv.FormatInt(*u.OrderKey, 10))
	}
	if u.CompletedAt != nil {
		args = append(args, fieldCompletedAt, strconv.FormatInt(*u.CompletedAt, 10))
	}
	if u.AmountPaid != nil {
		args = append(args, fieldAmountPaid, formatFloat(*u.AmountPaid))
	}
	return args
}

func decodeEntry(vals map[string]string) (models.Entry, error) {
	e := models.Entry{
		ID:            vals[fieldID],
		Name:          vals[fieldName],
		NameKey:       vals[fieldNameKey],
		ServiceType:   models.ServiceType(vals[fieldServiceType]),
		Channel:       models.Channel(vals[fieldChannel]),
		DeviceID:      vals[fieldDeviceID],
		ExpoPushToken: vals[fieldExpoPushToken],
		WebPushToken:  vals[fieldWebPushToken],
		Status:        models.EntryStatus(vals[fieldStatus]),
	}

	var err error
	if e.OrderKey, err = strconv.ParseInt(vals[fieldOrderKey], 10, 64); err != nil {
		return models.Entry{}, fmt.Errorf("decode %s of entry %s: %w", fieldOrderKey, e.ID, err)
	}

	if v, ok := vals[fieldCreatedAt]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.Entry{}, fmt.Errorf("decode %s of entry %s: %w", fieldCreatedAt, e.ID, err)
		}
		e.CreatedAt = time.UnixMilli(ms)
	}

	if v, ok := vals[fieldBookingFor]; ok {
		h, err := strconv.Atoi(v)
		if err != nil {
			return models.Entry{}, fmt.Errorf("decode %s of entry %s: %w", fieldBookingFor, e.ID, err)
		}
		e.BookingFor = &h
	}

	if v, ok := vals[fieldCompletedAt]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.Entry{}, fmt.Errorf("decode %s of entry %s: %w", fieldCompletedAt, e.ID, err)
		}
		e.CompletedAt = &ms
	}

	if v, ok := vals[fieldAmountPaid]; ok {
		amt, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return models.Entry{}, fmt.Errorf("decode %s of entry %s: %w", fieldAmountPaid, e.ID, err)
		}
		e.AmountPaid = &amt
	}

	return e, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
