// Package statusapi exposes the sync engine's state over HTTP: a status
// snapshot, the pending log, a websocket feed of status changes, and
// Prometheus metrics.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/roach88/possync/internal/engine"
	"github.com/roach88/possync/internal/ops"
)

// Source is the engine surface the API reads from.
type Source interface {
	Online() bool
	PendingCount() int
	Pending() []ops.Operation
	Unsaved() int
	Subscribe(fn engine.Listener) func()
}

// Status is the body of GET /status and of every websocket message.
type Status struct {
	Pending int  `json:"pending"`
	Online  bool `json:"online"`
	Unsaved int  `json:"unsaved,omitempty"`
}

// PendingOp is one entry of GET /pending.
type PendingOp struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Kind      ops.Kind  `json:"kind"`
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
}

// Server serves the status API.
type Server struct {
	src      Source
	gatherer prometheus.Gatherer
	router   *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves /metrics from g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New builds a Server over src.
func New(src Source, opts ...Option) *Server {
	s := &Server{src: src, router: mux.NewRouter()}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/pending", s.handlePending).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// Handler returns the routed handler with CORS enabled for the POS front end.
func (s *Server) Handler() http.Handler {
	return cors.Default().Handler(s.router)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) snapshot() Status {
	return Status{
		Pending: s.src.PendingCount(),
		Online:  s.src.Online(),
		Unsaved: s.src.Unsaved(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.snapshot())
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	list := s.src.Pending()
	out := make([]PendingOp, 0, len(list))
	for _, op := range list {
		out = append(out, PendingOp{
			ID:        op.ID,
			Seq:       op.Seq,
			Kind:      op.Kind(),
			OrderID:   op.OrderID,
			CreatedAt: op.CreatedAt,
			Attempts:  op.Attempts,
			LastError: op.LastError,
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}
