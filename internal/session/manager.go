package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/streamscribe/internal/audio"
	"github.com/foxseedlab/streamscribe/internal/metrics"
	"github.com/foxseedlab/streamscribe/internal/transcriber"
	"github.com/google/uuid"
)

type ManagerConfig struct {
	Dispatcher      DispatcherConfig
	IdleTimeout     time.Duration
	ReaperInterval  time.Duration
	DisconnectGrace time.Duration
}

// Chunk is one inbound audio message after transport framing is removed.
type Chunk struct {
	PCM    string
	Format string
	Final  bool
	Instructions
}

// Manager is the transport-independent core: it owns the registry, the
// dispatcher and the teardown of every session.
type Manager struct {
	cfg        ManagerConfig
	registry   *Registry
	dispatcher *Dispatcher
	observer   Observer
	metrics    *metrics.Metrics

	wg           sync.WaitGroup
	stopping     chan struct{}
	stoppingOnce sync.Once

	mu     sync.Mutex
	locals map[*Session]struct{}
}

func NewManager(cfg ManagerConfig, stt transcriber.Transcriber, observer Observer, m *metrics.Metrics) *Manager {
	mgr := &Manager{
		cfg:        cfg,
		dispatcher: NewDispatcher(cfg.Dispatcher, stt, observer, m),
		observer:   observer,
		metrics:    m,
		stopping:   make(chan struct{}),
		locals:     make(map[*Session]struct{}),
	}
	mgr.registry = NewRegistry(cfg.IdleTimeout, mgr.handleRemoved)
	return mgr
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

func (m *Manager) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// Open registers a push-stream session. An empty id gets a generated one.
func (m *Manager) Open(ctx context.Context, id string, sink Sink) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	s, err := m.registry.Create(id, TransportStream, sink)
	if err != nil {
		return nil, err
	}
	slog.Info("session opened", "session_id", s.ID, "run_id", s.RunID, "transport", s.Transport)
	if m.observer != nil {
		m.observer.SessionStarted(ctx, s)
	}
	return s, nil
}

// OpenLocal creates a socket session that is never registered.
func (m *Manager) OpenLocal(ctx context.Context, sink Sink) *Session {
	s := newSession(uuid.NewString(), TransportSocket, sink)
	m.mu.Lock()
	m.locals[s] = struct{}{}
	m.mu.Unlock()
	slog.Info("session opened", "session_id", s.ID, "run_id", s.RunID, "transport", s.Transport)
	if m.observer != nil {
		m.observer.SessionStarted(ctx, s)
	}
	return s
}

func (m *Manager) Lookup(id string) (*Session, error) {
	return m.registry.Get(id)
}

// Accept applies the chunk's instructions, buffers its audio and triggers
// the dispatcher. Undecodable audio is reported to the client and returned.
func (m *Manager) Accept(ctx context.Context, s *Session, c Chunk) error {
	if m.isStopping() {
		return ErrShuttingDown
	}
	s.ApplyInstructions(c.Instructions)

	samples, err := decodeChunk(c)
	if err != nil {
		slog.Debug("rejecting undecodable audio", "session_id", s.ID, "format", c.Format, "error", err)
		m.dispatcher.emit(ctx, s, InvalidAudioMessage(err))
		return err
	}
	buffered := s.Push(samples)
	m.metrics.SamplesAccepted(len(samples))

	if c.Final {
		m.Finalize(ctx, s)
		return nil
	}
	if buffered >= m.dispatcher.WindowSamples() {
		m.dispatcher.Dispatch(ctx, s, false)
	}
	return nil
}

func decodeChunk(c Chunk) ([]float32, error) {
	format, err := audio.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	return audio.DecodeBase64(c.PCM, format)
}

// Finalize forces a final run in the background once any in-flight run completes.
func (m *Manager) Finalize(ctx context.Context, s *Session) {
	if m.isStopping() {
		return
	}
	m.spawn(func() { m.dispatcher.Finalize(ctx, s) })
}

// Disconnect handles a push-stream client going away: buffered audio is
// flushed once and the session is removed after the grace delay. A session
// already evicted from the registry is left to its teardown and not flushed.
func (m *Manager) Disconnect(ctx context.Context, s *Session) {
	if m.isStopping() || !m.registry.Holds(s) {
		return
	}
	m.spawn(func() {
		m.dispatcher.Flush(ctx, s)
		select {
		case <-time.After(m.cfg.DisconnectGrace):
		case <-m.stopping:
		}
		m.registry.RemoveSession(s, ReasonDisconnect)
	})
}

// CloseLocal handles a socket closing: buffered audio is flushed, the local
// buffer cleared, and the session ended once its last run completes.
func (m *Manager) CloseLocal(ctx context.Context, s *Session) {
	if m.isStopping() {
		return
	}
	m.spawn(func() {
		m.dispatcher.Flush(ctx, s)
		s.Reset()
		m.mu.Lock()
		delete(m.locals, s)
		m.mu.Unlock()
		m.end(s, ReasonClosed)
	})
}

// RunReaper evicts idle registered sessions until ctx is done.
func (m *Manager) RunReaper(ctx context.Context) {
	m.registry.RunReaper(ctx, m.cfg.ReaperInterval)
}

// Shutdown ends every session and waits for background work or ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stoppingOnce.Do(func() { close(m.stopping) })

	n := m.registry.RemoveAll(ReasonShutdown)
	m.mu.Lock()
	locals := make([]*Session, 0, len(m.locals))
	for s := range m.locals {
		locals = append(locals, s)
	}
	m.mu.Unlock()
	for _, s := range locals {
		m.spawn(func() { m.end(s, ReasonShutdown) })
	}
	slog.Info("ending sessions for shutdown", "registered", n, "local", len(locals))

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		m.dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) handleRemoved(s *Session, reason string) {
	m.spawn(func() { m.end(s, reason) })
}

// end runs once per session, after its last run has completed.
func (m *Manager) end(s *Session, reason string) {
	if !s.close() {
		return
	}
	if err := s.sink.Close(); err != nil {
		slog.Debug("ignoring sink close error", "session_id", s.ID, "error", err)
	}
	slog.Info("session ended", "session_id", s.ID, "run_id", s.RunID, "transport", s.Transport, "reason", reason, "lifetime", time.Since(s.CreatedAt))
	if m.observer != nil {
		m.observer.SessionEnded(context.Background(), s, reason)
	}
}

// isStopping reports whether Shutdown has begun; Shutdown then owns teardown.
func (m *Manager) isStopping() bool {
	select {
	case <-m.stopping:
		return true
	default:
		return false
	}
}

func (m *Manager) spawn(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}
