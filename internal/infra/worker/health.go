// Package worker holds the operational pieces of the long-running relay
// process: the health server and the cleanup job metrics.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthServer serves the liveness and readiness probes:
//   - /health: always 200 {"status":"ok"}
//   - /health/ready: 200 once SetReady(true) was called and every
//     registered check passes, 503 otherwise
//
// Readiness starts false; the relay flips it after startup reconciliation.
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	isReady atomic.Bool
	checks  []ReadinessCheck
	server  *http.Server
}

// ReadinessCheck reports a reason the process cannot serve, or nil.
type ReadinessCheck func() error

type healthResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// NewHealthServer creates a server for addr (":9091"). Call Start to serve.
func NewHealthServer(addr string, logger *slog.Logger, checks ...ReadinessCheck) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthServer{
		addr:   addr,
		logger: logger,
		checks: checks,
	}
}

// Handler returns the probe routes, for tests and for embedding elsewhere.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	return mux
}

// Start serves until ctx is canceled and then shuts down within 5 seconds.
// A clean shutdown returns nil.
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}
	return h.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (h *HealthServer) Serve(ctx context.Context, ln net.Listener) error {
	h.server = &http.Server{
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", ln.Addr().String()))
		errChan <- h.server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return nil

	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		h.logger.Error("health server failed", slog.Any("error", err))
		return err
	}
}

// SetReady changes the readiness state reported by /health/ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// Ready reports the readiness state and the first failing check.
func (h *HealthServer) Ready() (bool, error) {
	if !h.isReady.Load() {
		return false, errors.New("starting")
	}
	for _, check := range h.checks {
		if err := check(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if ok, err := h.Ready(); !ok {
		h.write(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready", Reason: err.Error()})
		return
	}
	h.write(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) write(w http.ResponseWriter, code int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
