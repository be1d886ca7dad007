package session

import (
	"sync"
	"time"

	"github.com/foxseedlab/streamscribe/internal/audio"
	"github.com/foxseedlab/streamscribe/internal/notify"
	"github.com/google/uuid"
)

const (
	TransportStream = "stream"
	TransportSocket = "socket"
)

// Sink delivers outbound messages to one client. Implementations must be
// safe for concurrent use and Close must be idempotent.
type Sink interface {
	Send(msg Message) error
	Close() error
}

// Instructions are the per-session provider hints. Every inbound audio
// message overwrites them.
type Instructions struct {
	Language  string
	Translate bool
	Prompt    string
}

type Session struct {
	ID        string
	RunID     string
	Transport string
	CreatedAt time.Time

	sink Sink

	mu           sync.Mutex
	idle         *sync.Cond
	buffer       *audio.WindowBuffer
	instructions Instructions
	processing   bool
	closed       bool
	resultSeq    int64
	clientSeq    *int64
	lastActivity time.Time
	entries      []notify.Entry
}

func newSession(id, transport string, sink Sink) *Session {
	now := time.Now()
	s := &Session{
		ID:           id,
		RunID:        uuid.NewString(),
		Transport:    transport,
		CreatedAt:    now,
		sink:         sink,
		buffer:       audio.NewWindowBuffer(),
		lastActivity: now,
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

func (s *Session) Sink() Sink {
	return s.sink
}

func (s *Session) ApplyInstructions(ins Instructions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructions = ins
	s.lastActivity = time.Now()
}

func (s *Session) Instructions() Instructions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instructions
}

// Push appends decoded samples and returns the buffered length.
func (s *Session) Push(samples []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.Push(samples)
	s.lastActivity = time.Now()
	return s.buffer.Len()
}

func (s *Session) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Len()
}

// Reset drops any buffered audio.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.Reset()
}

// RememberSeq records the latest client sequence number. Only the most
// recent one survives until the next result consumes it.
func (s *Session) RememberSeq(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientSeq = &seq
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// nextSeq labels a result with the remembered client sequence number when
// there is one, and with the session counter otherwise.
func (s *Session) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientSeq != nil {
		seq := *s.clientSeq
		s.clientSeq = nil
		return seq
	}
	seq := s.resultSeq
	s.resultSeq++
	return seq
}

// beginRun moves the session to processing and extracts the samples for the
// run. It reports false when a run is already in flight, the session is
// closed, or a non-forced run lacks a full window.
func (s *Session) beginRun(window int, force bool) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing || s.closed {
		return nil, false
	}
	take := window
	if force {
		take = s.buffer.Len()
	} else if s.buffer.Len() < window {
		return nil, false
	}
	s.processing = true
	return s.buffer.Extract(take), true
}

// continueRun extracts the next window while enough audio remains, keeping
// the session in processing. Otherwise it returns the session to idle.
func (s *Session) continueRun(window int) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.buffer.Len() >= window {
		return s.buffer.Extract(window), true
	}
	s.processing = false
	s.idle.Broadcast()
	return nil, false
}

// WaitIdle blocks until no run is in flight. It reports false once the
// session is closed.
func (s *Session) WaitIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.processing {
		s.idle.Wait()
	}
	return !s.closed
}

// close waits for the in-flight run and marks the session closed so no
// further run can start. It reports false if the session was already closed.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.processing {
		s.idle.Wait()
	}
	if s.closed {
		return false
	}
	s.closed = true
	s.buffer.Reset()
	return true
}

// record appends an emitted message to the transcript log and returns its position.
func (s *Session) record(msg Message, at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, notify.Entry{
		Seq:        msg.Seq,
		Kind:       msg.Type,
		Text:       msg.transcriptText(),
		Confidence: msg.Confidence,
		EmittedAt:  at,
	})
	return len(s.entries) - 1
}

func (s *Session) Entries() []notify.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
