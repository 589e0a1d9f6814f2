package realtime

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
)

const Prefix = "/realtime"

// NewHandler serves the sockjs endpoint under Prefix. Clients only
// receive; anything they send is ignored.
func NewHandler(hub *Hub, l logger.Logger) http.Handler {
	return sockjs.NewHandler(Prefix, sockjs.DefaultOptions, func(session sockjs.Session) {
		ctx := session.Request().Context()
		client := &Client{ID: uuid.NewString(), Send: make(chan []byte, clientBuffer)}
		hub.Register(client)
		defer hub.Unregister(client)

		l.Debugf(ctx, "realtime client %s connected", client.ID)

		go func() {
			for msg := range client.Send {
				if err := session.Send(string(msg)); err != nil {
					return
				}
			}
		}()

		for {
			if _, err := session.Recv(); err != nil {
				l.Debugf(ctx, "realtime client %s disconnected: %v", client.ID, err)
				return
			}
		}
	})
}
