package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/streamscribe/internal/events"
	"github.com/foxseedlab/streamscribe/internal/metrics"
	"github.com/foxseedlab/streamscribe/internal/notify"
	"github.com/foxseedlab/streamscribe/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeRepository struct {
	mu        sync.Mutex
	created   []repository.CreateSessionInput
	inserted  []repository.InsertResultInput
	completed []repository.CompleteSessionInput
	err       error
}

func (f *fakeRepository) CreateSession(_ context.Context, in repository.CreateSessionInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return f.err
}

func (f *fakeRepository) CompleteSession(_ context.Context, in repository.CompleteSessionInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, in)
	return f.err
}

func (f *fakeRepository) GetSession(context.Context, string) (*repository.Session, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeRepository) InsertResult(_ context.Context, in repository.InsertResultInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, in)
	return f.err
}

func (f *fakeRepository) ListResults(context.Context, string) ([]repository.Result, error) {
	return nil, nil
}

func (f *fakeRepository) Close() error { return nil }

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

type fakeSender struct {
	payloads []notify.TranscriptPayload
	err      error
}

func (f *fakeSender) SendTranscript(_ context.Context, p notify.TranscriptPayload) error {
	f.payloads = append(f.payloads, p)
	return f.err
}

func TestRecorder_ArchivesAndPublishes(t *testing.T) {
	repo := &fakeRepository{}
	pub := &fakePublisher{}
	sender := &fakeSender{}
	m := metrics.New(prometheus.NewRegistry())
	r := NewRecorder(repo, pub, sender, m)
	ctx := context.Background()
	s := newSession("abc", TransportStream, &fakeSink{})

	r.SessionStarted(ctx, s)
	if len(repo.created) != 1 || repo.created[0].ID != s.RunID || repo.created[0].SessionID != "abc" {
		t.Fatalf("unexpected archived session: %+v", repo.created)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Fatalf("expected 1 active session, got %v", got)
	}

	msg := ResultMessage(false, 4, "hello", 0.8)
	at := time.Now()
	pos := s.record(msg, at)
	r.ResultEmitted(ctx, s, msg, pos, at)
	if len(repo.inserted) != 1 || repo.inserted[0].RunID != s.RunID || repo.inserted[0].Seq != 4 || repo.inserted[0].Kind != MessagePartial {
		t.Fatalf("unexpected archived result: %+v", repo.inserted)
	}
	if len(pub.events) != 1 || pub.events[0].SessionID != "abc" || pub.events[0].Text != "hello" {
		t.Fatalf("unexpected event: %+v", pub.events)
	}

	r.SessionEnded(ctx, s, ReasonIdle)
	if len(repo.completed) != 1 || repo.completed[0].Reason != ReasonIdle {
		t.Fatalf("unexpected completion: %+v", repo.completed)
	}
	if len(sender.payloads) != 1 || sender.payloads[0].Transcript != "hello" || sender.payloads[0].Reason != ReasonIdle {
		t.Fatalf("unexpected transcript: %+v", sender.payloads)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 0 {
		t.Fatalf("expected 0 active sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsReaped); got != 1 {
		t.Fatalf("expected 1 reaped session, got %v", got)
	}
}

func TestRecorder_SkipsEmptyTranscript(t *testing.T) {
	sender := &fakeSender{}
	r := NewRecorder(&fakeRepository{}, &fakePublisher{}, sender, nil)
	s := newSession("abc", TransportSocket, &fakeSink{})
	s.record(TranscriptionFailedMessage(errors.New("boom")), time.Now())

	r.SessionEnded(context.Background(), s, ReasonClosed)
	if len(sender.payloads) != 0 {
		t.Fatalf("expected no transcript for a session without text, got %+v", sender.payloads)
	}
}

func TestRecorder_FailuresDoNotPanic(t *testing.T) {
	fail := errors.New("down")
	r := NewRecorder(&fakeRepository{err: fail}, &fakePublisher{err: fail}, &fakeSender{err: fail}, nil)
	ctx := context.Background()
	s := newSession("abc", TransportStream, &fakeSink{})
	msg := ResultMessage(true, 0, "x", 1)

	r.SessionStarted(ctx, s)
	r.ResultEmitted(ctx, s, msg, s.record(msg, time.Now()), time.Now())
	r.SessionEnded(ctx, s, ReasonDisconnect)
}
