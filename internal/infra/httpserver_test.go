package infra

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestStartReturnsNilAfterShutdown(t *testing.T) {
	cfg := &Config{
		Port:             "0",
		HTTPReadTimeout:  time.Second,
		HTTPWriteTimeout: time.Second,
		HTTPIdleTimeout:  time.Second,
	}
	srv := NewHTTPServer(cfg, http.NewServeMux())

	done := make(chan error, 1)
	go func() {
		done <- srv.Start()
	}()

	// Give ListenAndServe a moment to bind before shutting down.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() after graceful shutdown = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after shutdown")
	}
}

func TestStartSurfacesBindError(t *testing.T) {
	cfg := &Config{Port: "nope"}
	srv := NewHTTPServer(cfg, http.NewServeMux())
	if err := srv.Start(); err == nil {
		t.Fatal("Start() on an invalid port = nil, want error")
	}
}
