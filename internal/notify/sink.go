package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vogiaan1904/barberqueue/config"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
)

type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceAdmin    Audience = "admin"
)

// Notification is one message for a customer device or for the admin.
// DeviceID and the push tokens are set only for customer notifications.
type Notification struct {
	Audience      Audience `json:"audience"`
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	EntryID       string   `json:"entry_id,omitempty"`
	DeviceID      string   `json:"device_id,omitempty"`
	ExpoPushToken string   `json:"expo_push_token,omitempty"`
	WebPushToken  string   `json:"web_push_token,omitempty"`
}

type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

var ErrWebhookRejected = errors.New("webhook rejected notification")

// NewSink builds the sink named by cfg.Sink. The kafka sink lives with the
// producer and is chosen by the caller.
func NewSink(cfg config.NotifyConfig, l logger.Logger) (Sink, error) {
	switch cfg.Sink {
	case "", "log":
		return NewLogSink(l), nil
	case "noop":
		return NoopSink{}, nil
	case "webhook":
		if cfg.WebhookURL == "" {
			l.Warnf(context.Background(), "notify.NewSink: webhook sink without url, falling back to log")
			return NewLogSink(l), nil
		}
		return NewWebhookSink(cfg.WebhookURL, cfg.WebhookToken), nil
	default:
		return nil, fmt.Errorf("unknown notify sink: %q", cfg.Sink)
	}
}

type logSink struct {
	l logger.Logger
}

func NewLogSink(l logger.Logger) Sink {
	return logSink{l: l}
}

func (s logSink) Notify(ctx context.Context, n Notification) error {
	s.l.Infof(ctx, "notify %s device=%q: %s: %s", n.Audience, n.DeviceID, n.Title, n.Body)
	return nil
}

type NoopSink struct{}

func (NoopSink) Notify(context.Context, Notification) error {
	return nil
}

type webhookSink struct {
	url    string
	token  string
	client *http.Client
}

func NewWebhookSink(url, token string) Sink {
	return &webhookSink{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *webhookSink) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrWebhookRejected, resp.StatusCode)
	}
	return nil
}
