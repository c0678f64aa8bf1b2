// Package api serves flowlens's small admin HTTP surface: a liveness
// probe, a status summary, and a Prometheus scrape endpoint. Grounded in
// the gorilla/mux admin server pattern from this codebase's reference
// corpus, trimmed to those three routes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	applog "github.com/flowlens/flowlens/internal/log"
	"github.com/flowlens/flowlens/internal/metrics"
	"github.com/flowlens/flowlens/internal/session"
)

// Server is flowlens's admin HTTP server.
type Server struct {
	httpServer *http.Server
	startTime  time.Time
	logger     *zap.Logger
}

// NewServer builds the admin server. table is read-only from this server's
// perspective (Len() only); it never mutates the Session Table, preserving
// the single-writer discipline spec.md §4.D and §5 require.
func NewServer(addr string, m *metrics.Collector, table *session.Table, logger *zap.Logger) *Server {
	r := mux.NewRouter()
	s := &Server{startTime: time.Now(), logger: logger}

	r.HandleFunc("/healthz", s.healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/status", s.statusHandler(table)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in the background. ListenAndServe errors other than
// a clean Shutdown are logged at ERROR (spec.md §7, process-fatal errors
// are reserved for capture/config; an admin-port bind failure should not
// take the capture pipeline down with it).
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.LogError(s.logger, err, "admin server exited")
		}
	}()
}

// Stop gracefully shuts the admin server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(table *session.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"uptime_seconds":  int(time.Since(s.startTime).Seconds()),
			"go_version":      runtime.Version(),
			"goroutines":      runtime.NumGoroutine(),
			"sessions_active": table.Len(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
