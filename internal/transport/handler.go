package transport

import (
	"time"

	"github.com/foxseedlab/streamscribe/internal/session"
	"github.com/gorilla/websocket"
)

const defaultKeepAlive = 15 * time.Second

// Handler maps the push-stream, ingest and socket transports onto the session manager.
type Handler struct {
	manager   *session.Manager
	origins   OriginPolicy
	upgrader  websocket.Upgrader
	keepAlive time.Duration
}

func NewHandler(manager *session.Manager, origins OriginPolicy) *Handler {
	h := &Handler{
		manager:   manager,
		origins:   origins,
		keepAlive: defaultKeepAlive,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     origins.checkRequest,
	}
	return h
}
