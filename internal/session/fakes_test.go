package session

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/streamscribe/internal/audio"
	"github.com/foxseedlab/streamscribe/internal/transcriber"
)

type fakeSink struct {
	mu       sync.Mutex
	messages []Message
	closed   int
	sendErr  error
	closeErr error
}

func (f *fakeSink) Send(msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return f.closeErr
}

func (f *fakeSink) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeSink) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeTranscriber records the sample count of every call. When gate is set,
// each call blocks until it receives one token.
type fakeTranscriber struct {
	mu      sync.Mutex
	calls   []transcriber.Request
	errs    []error
	text    string
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req transcriber.Request) (transcriber.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return transcriber.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return transcriber.Result{}, err
	}
	return transcriber.Result{Text: f.text, Confidence: 0.5}, nil
}

// SampleCounts returns the number of samples in each call's container.
func (f *fakeTranscriber) SampleCounts() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, (len(c.Audio)-audio.WAVHeaderSize)/2)
	}
	return out
}

func (f *fakeTranscriber) Calls() []transcriber.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transcriber.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

type endedSession struct {
	session *Session
	reason  string
}

type fakeObserver struct {
	mu      sync.Mutex
	started []*Session
	emitted []Message
	ended   []endedSession
}

func (f *fakeObserver) SessionStarted(_ context.Context, s *Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, s)
}

func (f *fakeObserver) ResultEmitted(_ context.Context, _ *Session, msg Message, _ int, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, msg)
}

func (f *fakeObserver) SessionEnded(_ context.Context, s *Session, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, endedSession{session: s, reason: reason})
}

func (f *fakeObserver) Ended() []endedSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]endedSession, len(f.ended))
	copy(out, f.ended)
	return out
}

func samples(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%100) / 100
	}
	return out
}

func float32PCM(n int) string {
	raw := make([]byte, 4*n)
	for i, s := range samples(n) {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
