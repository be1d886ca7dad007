package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/streamscribe/internal/audio"
	"github.com/foxseedlab/streamscribe/internal/metrics"
	"github.com/foxseedlab/streamscribe/internal/transcriber"
)

// Observer is told about session lifecycle and every message a session emits.
type Observer interface {
	SessionStarted(ctx context.Context, s *Session)
	ResultEmitted(ctx context.Context, s *Session, msg Message, position int, at time.Time)
	SessionEnded(ctx context.Context, s *Session, reason string)
}

type DispatcherConfig struct {
	WindowSamples   int
	SampleRate      int
	ProviderTimeout time.Duration
}

// Dispatcher runs at most one provider call per session and keeps draining
// full windows until less than one remains.
type Dispatcher struct {
	cfg         DispatcherConfig
	transcriber transcriber.Transcriber
	observer    Observer
	metrics     *metrics.Metrics

	wg sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, stt transcriber.Transcriber, observer Observer, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{cfg: cfg, transcriber: stt, observer: observer, metrics: m}
}

func (d *Dispatcher) WindowSamples() int {
	return d.cfg.WindowSamples
}

// Dispatch starts a run in the background. It reports false without doing
// anything when the session is already processing or, for a non-forced run,
// holds less than one window.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, force bool) bool {
	samples, ok := s.beginRun(d.cfg.WindowSamples, force)
	if !ok {
		return false
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.drain(ctx, s, samples, force)
	}()
	return true
}

// Finalize waits for any in-flight run and then forces one final run over
// whatever is buffered, including nothing. It blocks until that run and its
// drain complete.
func (d *Dispatcher) Finalize(ctx context.Context, s *Session) {
	d.settle(ctx, s, true)
}

// Flush is Finalize for sessions with buffered audio; it does nothing when
// the buffer is empty.
func (d *Dispatcher) Flush(ctx context.Context, s *Session) {
	d.settle(ctx, s, false)
}

func (d *Dispatcher) settle(ctx context.Context, s *Session, always bool) {
	for {
		if !s.WaitIdle() {
			return
		}
		if !always && s.Buffered() == 0 {
			return
		}
		if d.Dispatch(ctx, s, true) {
			break
		}
	}
	s.WaitIdle()
}

// Wait blocks until every background run has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) drain(ctx context.Context, s *Session, samples []float32, force bool) {
	for {
		d.run(ctx, s, samples, force)
		next, ok := s.continueRun(d.cfg.WindowSamples)
		if !ok {
			return
		}
		samples, force = next, false
	}
}

func (d *Dispatcher) run(ctx context.Context, s *Session, samples []float32, force bool) {
	ins := s.Instructions()
	req := transcriber.Request{
		Audio:      audio.EncodeWAV(samples, d.cfg.SampleRate),
		SampleRate: d.cfg.SampleRate,
		Language:   ins.Language,
		Translate:  ins.Translate,
		Prompt:     ins.Prompt,
	}

	callCtx := ctx
	if d.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.cfg.ProviderTimeout)
		defer cancel()
	}

	started := time.Now()
	res, err := d.transcriber.Transcribe(callCtx, req)
	d.metrics.ProviderCall(time.Since(started), err)
	if err != nil {
		slog.Warn("transcription failed", "session_id", s.ID, "transport", s.Transport, "samples", len(samples), "final", force, "error", err)
		d.emit(ctx, s, TranscriptionFailedMessage(err))
		return
	}

	seq := s.nextSeq()
	slog.Debug("transcription completed", "session_id", s.ID, "seq", seq, "samples", len(samples), "final", force, "elapsed", time.Since(started))
	d.emit(ctx, s, ResultMessage(force, seq, res.Text, res.Confidence))
}

// emit delivers msg best-effort. A closed or broken sink does not fail the session.
func (d *Dispatcher) emit(ctx context.Context, s *Session, msg Message) {
	at := time.Now()
	position := s.record(msg, at)
	if err := s.sink.Send(msg); err != nil {
		slog.Debug("dropping message for unreachable client", "session_id", s.ID, "type", msg.Type, "error", err)
	}
	if d.observer != nil {
		d.observer.ResultEmitted(ctx, s, msg, position, at)
	}
}
