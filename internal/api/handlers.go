// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

// Package api provides the HTTP surface of Deckforge: card catalog
// management, synergy queries, batch run control, deck assembly and
// the real-time progress WebSocket.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deckforge/deckforge/internal/assembler"
	"github.com/deckforge/deckforge/internal/batch"
	"github.com/deckforge/deckforge/internal/config"
	"github.com/deckforge/deckforge/internal/database"
	"github.com/deckforge/deckforge/internal/encoding"
	"github.com/deckforge/deckforge/internal/logging"
	"github.com/deckforge/deckforge/internal/synergy"
	ws "github.com/deckforge/deckforge/internal/websocket"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across multiple files:
//   - handlers.go: Handler struct, constructor, WebSocket upgrade (this file)
//   - handlers_helpers.go: Shared helper functions
//   - handlers_health.go: Health and probe endpoints
//   - handlers_cards.go: Card catalog and neighbor endpoints
//   - handlers_batch.go: Batch run control endpoints
//   - handlers_decks.go: Deck assembly endpoint
//   - handlers_admin.go: Administrative endpoints
type Handler struct {
	db        *database.DB
	encoder   *encoding.Encoder
	scorer    *synergy.Scorer
	builder   *batch.Builder
	assembler *assembler.Assembler
	config    *config.Config
	wsHub     *ws.Hub
	startTime time.Time
}

// NewHandler creates a new API handler with all required dependencies.
func NewHandler(db *database.DB, enc *encoding.Encoder, scorer *synergy.Scorer, builder *batch.Builder, asm *assembler.Assembler, cfg *config.Config, wsHub *ws.Hub) *Handler {
	return &Handler{
		db:        db,
		encoder:   enc,
		scorer:    scorer,
		builder:   builder,
		assembler: asm,
		config:    cfg,
		wsHub:     wsHub,
		startTime: time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins.
// Browser WebSockets always include Origin; an empty header means a
// non-browser client and is rejected so CORS cannot be bypassed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.config == nil {
		return true
	}

	for _, allowedOrigin := range h.config.API.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and registers the client with the
// hub for batch progress notifications.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}
