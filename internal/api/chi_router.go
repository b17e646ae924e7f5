// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deckforge/deckforge/internal/middleware"
)

// Router sets up HTTP routes using the Chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router around the handler and middleware config.
func NewRouter(handler *Handler, chiMW *ChiMiddleware) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: chiMW,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler, so the handler-level middleware
// works with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi builds the production route tree.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to ALL routes in order
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is handled

	// Health and probes: never rate limited, never compressed
	r.Get("/health", router.handler.Health)
	r.Get("/health/live", router.handler.HealthLive)
	r.Get("/health/ready", router.handler.HealthReady)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket upgrade: bypasses compression and the Prometheus
	// wrapper, which cannot hijack the connection
	r.Get("/api/v1/ws", router.handler.WebSocket)

	// Card catalog and synergy queries
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))

		r.Post("/cards", router.handler.CardUpsert)
		r.Post("/cards/import", router.handler.CardImport)
		r.Get("/cards/{cardID}", router.handler.CardGet)
		r.Get("/cards/{cardID}/vector", router.handler.CardVectorGet)
		r.Get("/cards/{cardID}/neighbors", router.handler.CardNeighbors)

		r.Get("/associations", router.handler.AssociationGet)
		r.Get("/score", router.handler.ScorePreview)

		r.Post("/batch/runs", router.handler.BatchStart)
		r.Get("/batch/runs/{runID}", router.handler.BatchRunGet)
		r.Get("/batch/status", router.handler.BatchStatus)

		r.Post("/decks/assemble", router.handler.DeckAssemble)

		r.Post("/admin/reset", router.handler.AdminReset)
		r.Post("/admin/reencode", router.handler.AdminReencode)
	})

	return r
}
