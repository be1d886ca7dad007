package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/streamscribe/internal/session"
)

const maxIngestBytes = 8 << 20

var errSinkClosed = errors.New("sink closed")

// sseSink writes server-sent events. Writes after Close are rejected so a
// finished handler's ResponseWriter is never touched.
type sseSink struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
	done    chan struct{}
}

func newSSESink(w io.Writer, flusher http.Flusher) *sseSink {
	return &sseSink{w: w, flusher: flusher, done: make(chan struct{})}
}

func (s *sseSink) Send(msg session.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) keepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	if _, err := io.WriteString(s.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func (s *sseSink) Done() <-chan struct{} {
	return s.done
}

// HandleStream opens the push stream for a session and holds it until the
// client disconnects or the session is evicted.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if !h.origins.applyCORS(w, r) {
		writeError(w, http.StatusForbidden, "origin not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Event-stream headers go in first: results may be written as soon as the session is registered.
	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")

	ctx := context.WithoutCancel(r.Context())
	sink := newSSESink(w, flusher)
	s, err := h.manager.Open(ctx, r.URL.Query().Get("sessionId"), sink)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrSessionExists) {
			status = http.StatusConflict
		}
		hdr.Del("Cache-Control")
		writeError(w, status, err.Error())
		return
	}
	if err := sink.Send(session.ConnectedMessage(s.ID)); err != nil {
		slog.Debug("failed to send connected event", "session_id", s.ID, "error", err)
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	clientGone := true
loop:
	for {
		select {
		case <-r.Context().Done():
			break loop
		case <-sink.Done():
			// Evicted or shut down; teardown is already under way.
			clientGone = false
			break loop
		case <-ticker.C:
			if err := sink.keepAlive(); err != nil {
				break loop
			}
		}
	}

	_ = sink.Close()
	slog.Info("push stream closed", "session_id", s.ID, "client_gone", clientGone, "buffered", s.Buffered())
	if clientGone {
		h.manager.Disconnect(ctx, s)
	}
}

// HandleIngest accepts one audio message for an existing push-stream session.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if !h.origins.applyCORS(w, r) {
		writeError(w, http.StatusForbidden, "origin not allowed")
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var msg inboundMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBytes)).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed body: %v", err))
		return
	}
	if msg.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	s, err := h.manager.Lookup(msg.SessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if err := h.manager.Accept(ctx, s, msg.chunk(msg.Final)); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrShuttingDown) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{SessionID: s.ID, Buffered: s.Buffered()})
}
