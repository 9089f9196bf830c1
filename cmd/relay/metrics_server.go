package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/observability/tracing"
	"feed-relay/internal/resilience/circuitbreaker"
)

// HealthResponse represents a simple health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// PipelineHealthResponse describes the delivery pipeline.
type PipelineHealthResponse struct {
	Healthy    bool            `json:"healthy"`
	QueueDepth int             `json:"queue_depth"`
	Pending    int             `json:"pending"`
	StoreItems int             `json:"store_items"`
	Breakers   []BreakerStatus `json:"breakers"`
}

// BreakerStatus is the state of one circuit breaker.
type BreakerStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Open  bool   `json:"open"`
}

type breaker interface {
	CircuitBreaker() *circuitbreaker.CircuitBreaker
}

type queueLen interface{ Len() int }

type storeCounts interface {
	Len() int
	Pending() []*entity.Item
}

// pipelineStatus snapshots the runtime state served on /health/pipeline and
// used as the readiness check.
type pipelineStatus struct {
	queue    queueLen
	store    storeCounts
	breakers []breaker
}

func (p *pipelineStatus) snapshot() PipelineHealthResponse {
	resp := PipelineHealthResponse{
		Healthy:    true,
		QueueDepth: p.queue.Len(),
		Pending:    len(p.store.Pending()),
		StoreItems: p.store.Len(),
		Breakers:   make([]BreakerStatus, 0, len(p.breakers)),
	}
	for _, b := range p.breakers {
		cb := b.CircuitBreaker()
		status := BreakerStatus{Name: cb.Name(), State: cb.State().String(), Open: cb.IsOpen()}
		if status.Open {
			resp.Healthy = false
		}
		resp.Breakers = append(resp.Breakers, status)
	}
	return resp
}

// check fails while any breaker is open.
func (p *pipelineStatus) check() error {
	for _, b := range p.breakers {
		if cb := b.CircuitBreaker(); cb.IsOpen() {
			return fmt.Errorf("circuit breaker %s is open", cb.Name())
		}
	}
	return nil
}

// metricsHandler exposes:
//   - GET /metrics: Prometheus metrics
//   - GET /health: liveness, always 200
//   - GET /health/pipeline: queue depth, pending count and breaker states;
//     503 while a breaker is open
func metricsHandler(pipeline *pipelineStatus) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/pipeline", pipelineHealthHandler(pipeline))
	return tracing.Middleware(mux, tracing.WithoutPaths("/metrics"))
}

// serveMetrics runs the metrics server until ctx is canceled, then shuts it
// down within 5 seconds. A clean shutdown returns nil.
func serveMetrics(ctx context.Context, port int, pipeline *pipelineStatus, logger *slog.Logger) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      metricsHandler(pipeline),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("metrics server shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
			return err
		}
		logger.Info("metrics server stopped")
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}

// healthHandler handles GET /health requests (liveness probe).
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
}

func pipelineHealthHandler(pipeline *pipelineStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := pipeline.snapshot()

		statusCode := http.StatusOK
		if !resp.Healthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
