package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, path string) (int, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal %s response: %v", path, err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	return rec.Code, body
}

func TestHealthServer_Liveness(t *testing.T) {
	server := NewHealthServer(":0", discardLogger())

	code, body := get(t, server.Handler(), "/health")
	if code != http.StatusOK {
		t.Errorf("expected status 200, got %d", code)
	}
	if body.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", body.Status)
	}
}

func TestHealthServer_Readiness(t *testing.T) {
	var pipelineErr error
	server := NewHealthServer(":0", discardLogger(), func() error { return pipelineErr })

	code, body := get(t, server.Handler(), "/health/ready")
	if code != http.StatusServiceUnavailable || body.Status != "not ready" || body.Reason != "starting" {
		t.Errorf("before SetReady: got %d %+v", code, body)
	}

	server.SetReady(true)
	code, body = get(t, server.Handler(), "/health/ready")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("after SetReady: got %d %+v", code, body)
	}

	pipelineErr = errors.New("publish circuit open")
	code, body = get(t, server.Handler(), "/health/ready")
	if code != http.StatusServiceUnavailable || body.Reason != "publish circuit open" {
		t.Errorf("failing check: got %d %+v", code, body)
	}

	pipelineErr = nil
	server.SetReady(false)
	if ok, _ := server.Ready(); ok {
		t.Error("expected not ready after SetReady(false)")
	}
}

func TestHealthServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := NewHealthServer(ln.Addr().String(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("failed to call /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHealthServer_StartListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	server := NewHealthServer(ln.Addr().String(), discardLogger())
	if err := server.Start(context.Background()); err == nil {
		t.Error("expected error when the address is in use")
	}
}
