// Package status serves the read-only observability listener: the latest
// progress snapshot, a health probe and the prometheus instruments
package status

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dpwharvest/internal/platform/logger"
)

// Server is the optional status listener; nothing in the harvest path
// depends on it
type Server struct {
	addr string
	prom *prometheus.Registry
	log  logger.Logger

	mu     sync.RWMutex
	latest []byte
}

// New builds the listener for addr (host:port)
func New(addr string, prom *prometheus.Registry) *Server {
	return &Server{
		addr: addr,
		prom: prom,
		log:  *logger.Named("status"),
	}
}

// SetSnapshot stores the most recent progress document; wired as the
// snapshotter's listener hook
func (s *Server) SetSnapshot(b []byte) {
	s.mu.Lock()
	s.latest = b
	s.mu.Unlock()
}

// Handler builds the route tree; split out so tests can drive it without a
// listener
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/progress", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.RLock()
		b := s.latest
		s.mu.RUnlock()
		if len(b) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.prom, promhttp.HandlerOpts{}))
	return r
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", s.addr).Msg("status listener up")

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
