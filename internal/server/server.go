package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/foxseedlab/streamscribe/internal/metrics"
	"github.com/foxseedlab/streamscribe/internal/repository"
	"github.com/foxseedlab/streamscribe/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

type Config struct {
	Addr           string
	MetricsEnabled bool
}

// Server exposes the transports, health, metrics and the archive readback.
// Write timeouts stay disabled because push streams and sockets are long-lived.
type Server struct {
	server   *http.Server
	handler  *transport.Handler
	repo     repository.Repository
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
}

func New(cfg Config, handler *transport.Handler, repo repository.Repository, gatherer prometheus.Gatherer, m *metrics.Metrics) *Server {
	s := &Server{handler: handler, repo: repo, metrics: m}
	if cfg.MetricsEnabled {
		s.gatherer = gatherer
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stream", s.instrument("/stream", s.handler.HandleStream))
	mux.HandleFunc("POST /ingest", s.instrument("/ingest", s.handler.HandleIngest))
	mux.HandleFunc("OPTIONS /ingest", s.instrument("/ingest", s.handler.HandleIngest))
	mux.HandleFunc("GET /ws", s.instrument("/ws", s.handler.HandleSocket))
	mux.HandleFunc("GET /healthz", s.instrument("/healthz", handleHealth))
	mux.HandleFunc("GET /archive/{runID}", s.instrument("/archive", s.handleArchive))
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens on the configured address and serves in the background.
// It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	slog.Info("http server listening", "addr", ln.Addr().String(), "metrics", s.gatherer != nil)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests or ctx.
// Push streams and sockets only return once their sessions are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
