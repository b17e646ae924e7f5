// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

// Package websocket pushes batch run progress and catalog events to
// connected clients.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/deckforge/deckforge/internal/logging"
	"github.com/deckforge/deckforge/internal/metrics"
	"github.com/deckforge/deckforge/internal/models"
)

// Message types for WebSocket communication
const (
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeBatchProgress  = "batch_progress"
	MessageTypeBatchCompleted = "batch_completed"
	MessageTypeBatchFailed    = "batch_failed"
	MessageTypeReset          = "reset"
)

// Message represents a WebSocket message.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to
// them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext starts the hub with context support for graceful
// shutdown, for use under supervision. Lifecycle events take priority
// over broadcasts so client state is consistent before messages flow.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("websocket client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	// Context cancellation is the expected shutdown path, so it is
	// logged as information, not as an error.
	logging.Info().
		Str("component", "websocket-hub").
		AnErr("cause", ctx.Err()).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// broadcastToClients sends a message to all connected clients in
// ascending client ID order, so delivery order is reproducible.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WebSocketMessagesSent.Inc()
		default:
			// Channel full or closed, mark for removal
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketConnections.Set(float64(len(h.clients)))
}

// closeAllClients closes all connected clients in ID order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketConnections.Set(0)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BatchProgressData is the payload of batch progress messages.
type BatchProgressData struct {
	RunID               string  `json:"run_id"`
	Status              string  `json:"status"`
	Cursor              int64   `json:"cursor"`
	ItemsProcessed      int64   `json:"items_processed"`
	ComparisonsMade     int64   `json:"comparisons_made"`
	AssociationsCreated int64   `json:"associations_created"`
	ProgressPercent     float64 `json:"progress_percent"`
	Error               string  `json:"error,omitempty"`
}

// BroadcastBatchProgress pushes a batch checkpoint snapshot to all
// clients. The message type reflects the run state so clients can
// distinguish live progress from terminal events.
func (h *Hub) BroadcastBatchProgress(cp *models.BatchCheckpoint) {
	msgType := MessageTypeBatchProgress
	switch cp.Status {
	case models.BatchCompleted:
		msgType = MessageTypeBatchCompleted
	case models.BatchFailed:
		msgType = MessageTypeBatchFailed
	}

	h.send(Message{
		Type: msgType,
		Data: BatchProgressData{
			RunID:               cp.ID.String(),
			Status:              string(cp.Status),
			Cursor:              cp.Cursor,
			ItemsProcessed:      cp.ItemsProcessed,
			ComparisonsMade:     cp.ComparisonsMade,
			AssociationsCreated: cp.AssociationsCreated,
			ProgressPercent:     cp.ProgressPercent(),
			Error:               cp.Error,
		},
	})
}

// BroadcastReset notifies clients that the association store was
// cleared.
func (h *Hub) BroadcastReset() {
	h.send(Message{
		Type: MessageTypeReset,
		Data: map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339)},
	})
}

func (h *Hub) send(message Message) {
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
	}
}
