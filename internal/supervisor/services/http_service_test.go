// Viewguard - View Tracking Integrity Service
// Copyright 2026 Husarkar (husarkar-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/husarkar-hub/viewguard

package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type mockHTTPServer struct {
	listenErr   error
	listenBlock chan struct{}
	shutdownErr error
	shutdownHit bool
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenBlock != nil {
		<-m.listenBlock
		return http.ErrServerClosed
	}
	return m.listenErr
}

func (m *mockHTTPServer) Shutdown(ctx context.Context) error {
	m.shutdownHit = true
	if m.listenBlock != nil {
		close(m.listenBlock)
	}
	return m.shutdownErr
}

func TestHTTPServiceListenFailure(t *testing.T) {
	boom := errors.New("bind: address already in use")
	svc := NewHTTPServerService(&mockHTTPServer{listenErr: boom}, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("Serve() = %v, want wrapped %v", err, boom)
	}
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	server := &mockHTTPServer{listenBlock: make(chan struct{})}
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Give the listener goroutine a moment to start before canceling.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if !server.shutdownHit {
		t.Error("Shutdown was not called on cancel")
	}
}

func TestHTTPServiceShutdownError(t *testing.T) {
	server := &mockHTTPServer{
		listenBlock: make(chan struct{}),
		shutdownErr: errors.New("shutdown deadline exceeded"),
	}
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil || errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want shutdown error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestHTTPServiceString(t *testing.T) {
	svc := NewHTTPServerService(&mockHTTPServer{}, 0)
	if got := svc.String(); got != "http-server" {
		t.Errorf("String() = %q, want %q", got, "http-server")
	}
}
