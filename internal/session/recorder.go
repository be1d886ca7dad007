package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/foxseedlab/streamscribe/internal/events"
	"github.com/foxseedlab/streamscribe/internal/metrics"
	"github.com/foxseedlab/streamscribe/internal/notify"
	"github.com/foxseedlab/streamscribe/internal/repository"
)

const (
	archiveTimeout = 5 * time.Second
	notifyTimeout  = 30 * time.Second
)

// Recorder archives sessions, publishes every emitted message and sends the
// assembled transcript when a session ends. None of its failures reach clients.
type Recorder struct {
	repo      repository.Repository
	publisher events.Publisher
	sender    notify.Sender
	metrics   *metrics.Metrics
}

func NewRecorder(repo repository.Repository, publisher events.Publisher, sender notify.Sender, m *metrics.Metrics) *Recorder {
	return &Recorder{repo: repo, publisher: publisher, sender: sender, metrics: m}
}

func (r *Recorder) SessionStarted(ctx context.Context, s *Session) {
	r.metrics.SessionOpened(s.Transport)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := r.repo.CreateSession(ctx, repository.CreateSessionInput{
		ID:        s.RunID,
		SessionID: s.ID,
		Transport: s.Transport,
		StartedAt: s.CreatedAt,
	}); err != nil {
		slog.Error("failed to archive session", "session_id", s.ID, "run_id", s.RunID, "error", err)
	}
}

func (r *Recorder) ResultEmitted(ctx context.Context, s *Session, msg Message, position int, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := r.repo.InsertResult(ctx, repository.InsertResultInput{
		RunID:      s.RunID,
		Position:   position,
		Seq:        msg.Seq,
		Kind:       msg.Type,
		Text:       msg.transcriptText(),
		Confidence: msg.Confidence,
		EmittedAt:  at,
	}); err != nil {
		slog.Error("failed to archive result", "session_id", s.ID, "run_id", s.RunID, "seq", msg.Seq, "error", err)
	}
	if err := r.publisher.Publish(ctx, events.Event{
		SessionID:  s.ID,
		Transport:  s.Transport,
		Type:       msg.Type,
		Seq:        msg.Seq,
		Text:       msg.Text,
		Confidence: msg.Confidence,
		Message:    msg.Error,
		At:         at,
	}); err != nil {
		slog.Warn("failed to publish result event", "session_id", s.ID, "type", msg.Type, "error", err)
	}
}

func (r *Recorder) SessionEnded(ctx context.Context, s *Session, reason string) {
	r.metrics.SessionClosed()
	if reason == ReasonIdle {
		r.metrics.SessionReaped()
	}
	endedAt := time.Now()

	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := r.repo.CompleteSession(archiveCtx, repository.CompleteSessionInput{
		ID:      s.RunID,
		EndedAt: endedAt,
		Reason:  reason,
	}); err != nil {
		slog.Error("failed to complete archived session", "session_id", s.ID, "run_id", s.RunID, "error", err)
	}

	payload, ok := notify.BuildPayload(notify.Meta{
		SessionID: s.ID,
		Transport: s.Transport,
		StartedAt: s.CreatedAt,
		EndedAt:   endedAt,
		Reason:    reason,
	}, s.Entries())
	if !ok {
		slog.Debug("no transcript to send", "session_id", s.ID)
		return
	}
	notifyCtx, cancelNotify := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancelNotify()
	if err := r.sender.SendTranscript(notifyCtx, payload); err != nil {
		slog.Error("failed to send transcript", "session_id", s.ID, "segments", payload.SegmentCount, "error", err)
		return
	}
	slog.Info("transcript sent", "session_id", s.ID, "segments", payload.SegmentCount)
}
