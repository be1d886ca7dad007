package transport

import (
	"encoding/json"
	"net/http"

	"github.com/foxseedlab/streamscribe/internal/session"
)

const (
	inboundAudio   = "audio"
	inboundControl = "control"
	actionEnd      = "end"
)

// inboundMessage is the union of the ingest body and socket frames.
type inboundMessage struct {
	Type      string `json:"type"`
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
	PCM       string `json:"pcm"`
	Seq       *int64 `json:"seq"`
	Format    string `json:"format"`
	Lang      string `json:"lang"`
	Translate bool   `json:"translate"`
	Prompt    string `json:"prompt"`
	Final     bool   `json:"final"`
}

func (m inboundMessage) chunk(final bool) session.Chunk {
	return session.Chunk{
		PCM:    m.PCM,
		Format: m.Format,
		Final:  final,
		Instructions: session.Instructions{
			Language:  m.Lang,
			Translate: m.Translate,
			Prompt:    m.Prompt,
		},
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type ingestResponse struct {
	SessionID string `json:"sessionId"`
	Buffered  int    `json:"buffered"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
