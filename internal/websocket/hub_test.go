// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deckforge/deckforge/internal/logging"
	"github.com/deckforge/deckforge/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub creates and starts a new hub for testing. The hub is
// stopped via t.Cleanup.
func setupHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("hub did not stop within timeout")
		}
	})
	time.Sleep(10 * time.Millisecond)
	return hub
}

// createTestClient creates a client without a network connection.
func createTestClient(hub *Hub) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: nil,
		send: make(chan Message, 256),
	}
}

// registerClient registers a client and waits for registration to
// complete.
func registerClient(hub *Hub, client *Client) {
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
}

func testCheckpoint(status models.BatchStatus) *models.BatchCheckpoint {
	return &models.BatchCheckpoint{
		ID:                  uuid.New(),
		Status:              status,
		Cursor:              40,
		ItemsProcessed:      40,
		ComparisonsMade:     3960,
		AssociationsCreated: 120,
		TotalItems:          100,
		Threshold:           0.55,
		StartedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	checks := []struct {
		name   string
		check  bool
		errMsg string
	}{
		{"clients map", hub.clients != nil, "clients map not initialized"},
		{"broadcast channel", hub.broadcast != nil, "broadcast channel not initialized"},
		{"Register channel", hub.Register != nil, "Register channel not initialized"},
		{"Unregister channel", hub.Unregister != nil, "Unregister channel not initialized"},
		{"empty clients", len(hub.clients) == 0, "clients map should be empty"},
	}

	for _, c := range checks {
		if !c.check {
			t.Errorf("%s: %s", c.name, c.errMsg)
		}
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)

	registerClient(hub, client)
	if got := hub.GetClientCount(); got != 1 {
		t.Fatalf("after register: client count = %d, want 1", got)
	}

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)
	if got := hub.GetClientCount(); got != 0 {
		t.Fatalf("after unregister: client count = %d, want 0", got)
	}

	// Unregistering closes the send channel.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected send channel to be closed")
		}
	default:
		t.Error("send channel should be closed and readable")
	}
}

func TestHubBroadcastBatchProgress(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(hub, client)

	cp := testCheckpoint(models.BatchProcessing)
	hub.BroadcastBatchProgress(cp)

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeBatchProgress {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypeBatchProgress)
		}
		data, ok := msg.Data.(BatchProgressData)
		if !ok {
			t.Fatalf("message data has type %T, want BatchProgressData", msg.Data)
		}
		if data.RunID != cp.ID.String() {
			t.Errorf("run_id = %q, want %q", data.RunID, cp.ID.String())
		}
		if data.ItemsProcessed != 40 {
			t.Errorf("items_processed = %d, want 40", data.ItemsProcessed)
		}
		if data.ProgressPercent != 40 {
			t.Errorf("progress_percent = %v, want 40", data.ProgressPercent)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast message")
	}
}

func TestHubBroadcastTerminalTypes(t *testing.T) {
	tests := []struct {
		status   models.BatchStatus
		wantType string
	}{
		{models.BatchProcessing, MessageTypeBatchProgress},
		{models.BatchCompleted, MessageTypeBatchCompleted},
		{models.BatchFailed, MessageTypeBatchFailed},
	}

	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(hub, client)

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			hub.BroadcastBatchProgress(testCheckpoint(tt.status))

			select {
			case msg := <-client.send:
				if msg.Type != tt.wantType {
					t.Errorf("message type = %q, want %q", msg.Type, tt.wantType)
				}
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for broadcast message")
			}
		})
	}
}

func TestHubBroadcastReset(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(hub, client)

	hub.BroadcastReset()

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeReset {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypeReset)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reset message")
	}
}

func TestHubRemovesClientWithFullChannel(t *testing.T) {
	hub := setupHub(t)

	healthy := createTestClient(hub)
	registerClient(hub, healthy)

	// A client whose send buffer is already full cannot accept the
	// broadcast and gets dropped.
	stuck := &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		send: make(chan Message),
	}
	registerClient(hub, stuck)

	hub.BroadcastReset()
	time.Sleep(20 * time.Millisecond)

	if got := hub.GetClientCount(); got != 1 {
		t.Fatalf("client count = %d, want 1 after dropping stuck client", got)
	}

	select {
	case msg := <-healthy.send:
		if msg.Type != MessageTypeReset {
			t.Errorf("healthy client got message type %q, want %q", msg.Type, MessageTypeReset)
		}
	case <-time.After(time.Second):
		t.Fatal("healthy client did not receive broadcast")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	client := createTestClient(hub)
	registerClient(hub, client)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop after context cancellation")
	}

	if got := hub.GetClientCount(); got != 0 {
		t.Errorf("client count = %d, want 0 after shutdown", got)
	}
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected send channel to be closed")
		}
	default:
		t.Error("send channel should be closed and readable")
	}
}
