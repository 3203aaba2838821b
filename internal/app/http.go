package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/semmidev/custos/internal/domain"
	"github.com/semmidev/custos/internal/infrastructure/logger"
)

type StatusProvider interface {
	Status(ctx context.Context) (domain.StatusReport, error)
}

// HTTPServer serves metrics, the status report and optionally the Drive
// OAuth helper.
type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

func NewHTTPServer(addr string, status StatusProvider, gatherer prometheus.Gatherer, oauth *DriveOAuth, logger *logger.Logger) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           newMux(status, gatherer, oauth),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func newMux(status StatusProvider, gatherer prometheus.Gatherer, oauth *DriveOAuth) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		report, err := status.Status(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	})

	if oauth != nil {
		oauth.Register(mux)
	}
	return mux
}

func (s *HTTPServer) Start() {
	go func() {
		s.logger.Infof("HTTP server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("HTTP server error: %v", err)
		}
	}()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	s.logger.Infof("HTTP server stopped")
	return nil
}
