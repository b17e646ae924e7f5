// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

// Package metrics provides Prometheus instrumentation for the API,
// database, batch builder, and deck assembler.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Batch Builder Metrics
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_runs_total",
			Help: "Total number of batch scoring runs by outcome",
		},
		[]string{"outcome"}, // "completed", "failed", "conflict"
	)

	BatchComparisonsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "batch_comparisons_total",
			Help: "Total number of pairwise comparisons scored",
		},
	)

	BatchAssociationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "batch_associations_created_total",
			Help: "Total number of associations persisted by batch runs",
		},
	)

	BatchItemDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batch_item_duration_seconds",
			Help:    "Time to sweep one chunk card against the catalog",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchRunProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "batch_run_progress_percent",
			Help: "Progress of the active batch run in percent",
		},
	)

	// Deck Assembler Metrics
	DeckAssembliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deck_assemblies_total",
			Help: "Total number of deck assembly requests by result status",
		},
		[]string{"status"}, // "complete", "partial", "error"
	)

	DeckAssemblyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deck_assembly_duration_seconds",
			Help:    "Deck assembly duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WebSocket Metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages broadcast",
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDBQuery records one database operation.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordBatchRun records a finished or rejected batch run.
func RecordBatchRun(outcome string) {
	BatchRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordDeckAssembly records one deck assembly request.
func RecordDeckAssembly(status string, duration time.Duration) {
	DeckAssembliesTotal.WithLabelValues(status).Inc()
	DeckAssemblyDuration.Observe(duration.Seconds())
}
