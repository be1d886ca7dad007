package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/foxseedlab/streamscribe/internal/repository"
)

type archivedResult struct {
	Position   int       `json:"position"`
	Seq        int64     `json:"seq"`
	Type       string    `json:"type"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	EmittedAt  time.Time `json:"emittedAt"`
}

type archivedSession struct {
	RunID      string           `json:"runId"`
	SessionID  string           `json:"sessionId"`
	Transport  string           `json:"transport"`
	Status     string           `json:"status"`
	StartedAt  time.Time        `json:"startedAt"`
	EndedAt    *time.Time       `json:"endedAt,omitempty"`
	StopReason string           `json:"stopReason,omitempty"`
	Results    []archivedResult `json:"results"`
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	sess, err := s.repo.GetSession(r.Context(), runID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Error("failed to read archived session", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive unavailable"})
		return
	}
	results, err := s.repo.ListResults(r.Context(), runID)
	if err != nil {
		slog.Error("failed to read archived results", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive unavailable"})
		return
	}

	out := archivedSession{
		RunID:      sess.ID,
		SessionID:  sess.SessionID,
		Transport:  sess.Transport,
		Status:     string(sess.Status),
		StartedAt:  sess.StartedAt,
		EndedAt:    sess.EndedAt,
		StopReason: sess.StopReason,
		Results:    make([]archivedResult, 0, len(results)),
	}
	for _, res := range results {
		out.Results = append(out.Results, archivedResult{
			Position:   res.Position,
			Seq:        res.Seq,
			Type:       res.Kind,
			Text:       res.Text,
			Confidence: res.Confidence,
			EmittedAt:  res.EmittedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
