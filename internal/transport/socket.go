package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/streamscribe/internal/session"
	"github.com/gorilla/websocket"
)

const (
	maxSocketMessageBytes = 8 << 20
	socketWriteTimeout    = 10 * time.Second
)

type socketSink struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (s *socketSink) Send(msg session.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *socketSink) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// HandleSocket serves the bidirectional transport. The session lives only as
// long as the connection and is never registered.
func (h *Handler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		writeError(w, http.StatusUpgradeRequired, "websocket upgrade required")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxSocketMessageBytes)

	ctx := context.WithoutCancel(r.Context())
	sink := &socketSink{conn: conn}
	s := h.manager.OpenLocal(ctx, sink)
	defer h.manager.CloseLocal(ctx, s)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("socket read failed", "session_id", s.ID, "error", err)
			}
			return
		}
		h.handleSocketMessage(ctx, s, sink, data)
	}
}

func (h *Handler) handleSocketMessage(ctx context.Context, s *session.Session, sink *socketSink, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.reply(s, sink, session.MalformedMessage(err))
		return
	}
	switch msg.Type {
	case inboundControl:
		if msg.Action != actionEnd {
			h.reply(s, sink, session.UnknownActionMessage(msg.Action))
			return
		}
		h.manager.Finalize(ctx, s)
	case inboundAudio, "":
		if msg.Seq != nil {
			s.RememberSeq(*msg.Seq)
		}
		// Decode failures are reported to the client by the manager.
		_ = h.manager.Accept(ctx, s, msg.chunk(false))
	default:
		h.reply(s, sink, session.UnknownTypeMessage(msg.Type))
	}
}

func (h *Handler) reply(s *session.Session, sink *socketSink, msg session.Message) {
	if err := sink.Send(msg); err != nil {
		slog.Debug("failed to reply on socket", "session_id", s.ID, "error", err)
	}
}
