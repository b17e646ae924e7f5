// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deckforge/deckforge/internal/database"
	"github.com/deckforge/deckforge/internal/models"
)

// fakeHTTPServer implements HTTPServer for tests.
type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error
	listening   chan struct{}
	release     chan struct{}
	shutdowns   atomic.Int64
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{
		listening: make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	close(f.listening)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.release
	return nil
}

func (f *fakeHTTPServer) Shutdown(_ context.Context) error {
	f.shutdowns.Add(1)
	close(f.release)
	return f.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newFakeHTTPServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	<-srv.listening
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d, want 1", srv.shutdowns.Load())
	}
}

func TestHTTPServerServiceStartFailure(t *testing.T) {
	srv := newFakeHTTPServer()
	srv.listenErr = errors.New("address already in use")
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve() with failing listener should return an error")
	}
}

func TestHTTPServerServiceString(t *testing.T) {
	svc := NewHTTPServerService(newFakeHTTPServer(), 0)
	if svc.String() != "http-server" {
		t.Errorf("String() = %q, want http-server", svc.String())
	}
}

// fakeRunner counts scheduled chunks.
type fakeRunner struct {
	runs atomic.Int64
	err  error
}

func (f *fakeRunner) RunFromLatest(_ context.Context) (*models.BatchCheckpoint, error) {
	f.runs.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &models.BatchCheckpoint{
		ID:     uuid.New(),
		Status: models.BatchCompleted,
	}, nil
}

func TestBatchServiceRunsOnStartupAndOnTicks(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewBatchService(runner, BatchServiceConfig{
		RunOnStartup: true,
		Interval:     20 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && runner.runs.Load() < 3 {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}

	if runner.runs.Load() < 3 {
		t.Errorf("runs = %d, want at least 3 (startup plus ticks)", runner.runs.Load())
	}
}

func TestBatchServiceSurvivesConflicts(t *testing.T) {
	runner := &fakeRunner{err: database.ErrConflictingRun}
	svc := NewBatchService(runner, BatchServiceConfig{
		RunOnStartup: true,
		Interval:     20 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && runner.runs.Load() < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-errCh

	// Conflicts are skipped, not fatal; the loop kept ticking
	if runner.runs.Load() < 2 {
		t.Errorf("runs = %d, want at least 2 despite conflicts", runner.runs.Load())
	}
}

func TestBatchServiceString(t *testing.T) {
	svc := NewBatchService(&fakeRunner{}, BatchServiceConfig{}, zerolog.Nop())
	if svc.String() != "batch-scheduler" {
		t.Errorf("String() = %q, want batch-scheduler", svc.String())
	}
}
