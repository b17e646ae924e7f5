// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

// Package main is the entry point for the Deckforge server.
//
// Deckforge encodes cards into versioned characteristic vectors, scores
// card pairs for synergy, persists the resulting association graph in
// DuckDB, and assembles decks by greedy growth over that graph.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, YAML file, DECKFORGE_* env vars (Koanf v2)
//  2. Database: DuckDB with the card, vector, association, and checkpoint tables
//  3. Engine: characteristic encoder, pairwise scorer, batch builder, assembler
//  4. WebSocket hub: live batch run progress for connected clients
//  5. HTTP server: REST API under /api/v1 plus health and Prometheus endpoints
//
// All long-running components run under a suture supervisor tree with
// an engine layer (WebSocket hub, optional batch scheduler) and an API
// layer (HTTP server), so a crashed service restarts without taking
// the process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - DECKFORGE_* environment variables (DECKFORGE_SERVER_PORT=8480)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// server stops accepting connections and drains in-flight requests,
// any in-progress batch run persists its checkpoint, and the database
// is closed last.
//
// # Example Usage
//
// Development with an in-memory database:
//
//	export DECKFORGE_DATABASE_PATH=:memory:
//	export DECKFORGE_LOGGING_FORMAT=console
//	./deckforge
//
// Production with periodic background scoring runs:
//
//	export DECKFORGE_DATABASE_PATH=/data/deckforge.duckdb
//	export DECKFORGE_BATCH_ENABLED=true
//	export DECKFORGE_BATCH_INTERVAL=6h
//	export DECKFORGE_API_CORS_ORIGINS=https://decks.example.com
//	./deckforge
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deckforge/deckforge/internal/api"
	"github.com/deckforge/deckforge/internal/assembler"
	"github.com/deckforge/deckforge/internal/batch"
	"github.com/deckforge/deckforge/internal/config"
	"github.com/deckforge/deckforge/internal/database"
	"github.com/deckforge/deckforge/internal/encoding"
	"github.com/deckforge/deckforge/internal/logging"
	"github.com/deckforge/deckforge/internal/supervisor"
	"github.com/deckforge/deckforge/internal/supervisor/services"
	"github.com/deckforge/deckforge/internal/synergy"
	ws "github.com/deckforge/deckforge/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Default logger; config not yet available
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Int("schema_version", cfg.Encoder.SchemaVersion).
		Bool("batch_enabled", cfg.Batch.Enabled).
		Msg("Starting Deckforge")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// Engine components. The encoder owns the schema; the scorer's rule
	// table is compiled against the same schema so stored vectors and
	// scoring stay in lockstep.
	encoder := encoding.NewEncoder(encoding.EncoderConfig{
		Schema: encoding.SchemaConfig{
			Version:    cfg.Encoder.SchemaVersion,
			Tribes:     cfg.Encoder.Tribes,
			Archetypes: cfg.Encoder.Archetypes,
			Colors:     cfg.Encoder.Colors,
		},
	})
	scorer := synergy.NewScorer(encoder.Schema(), synergy.Config{})
	logging.Info().
		Int("schema_version", encoder.Schema().Version()).
		Int("predicates", encoder.Schema().Len()).
		Msg("Characteristic encoder ready")

	builder := batch.NewBuilder(db, scorer, batch.Config{
		BatchSize:          cfg.Batch.Size,
		Threshold:          cfg.Batch.Threshold,
		CheckpointInterval: cfg.Batch.CheckpointInterval,
	})

	asm := assembler.NewAssembler(db, assembler.Config{
		TargetSize:     cfg.Assembler.TargetSize,
		MinAvgScore:    cfg.Assembler.MinAvgScore,
		MaxCopies:      cfg.Assembler.MaxCopies,
		PerRound:       cfg.Assembler.PerRound,
		CandidateLimit: cfg.Assembler.CandidateLimit,
		ExcludeLands:   cfg.Assembler.ExcludeLands,
	})

	// Create WebSocket hub before the builder's progress hook so batch
	// checkpoints stream to connected clients as they flush.
	wsHub := ws.NewHub()
	builder.OnProgress(wsHub.BroadcastBatchProgress)

	handler := api.NewHandler(db, encoder, scorer, builder, asm, cfg, wsHub)

	middleware := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.API.CORSOrigins,
		RateLimitRequests:  cfg.API.RateLimit,
		RateLimitWindow:    time.Minute,
		RateLimitDisabled:  cfg.API.RateLimit == 0,
	})
	if cfg.API.RateLimit == 0 {
		logging.Warn().Msg("Rate limiting is DISABLED (DECKFORGE_API_RATE_LIMIT=0)")
	}
	router := api.NewRouter(handler, middleware)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for the sutureslog hook
	slogLogger := logging.NewSlogLogger()
	tree := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())

	// Engine layer services
	tree.AddEngineService(services.NewWebSocketHubService(wsHub))
	if cfg.Batch.Enabled {
		tree.AddEngineService(services.NewBatchService(builder, services.BatchServiceConfig{
			RunOnStartup: true,
			Interval:     cfg.Batch.Interval,
		}, logging.Logger()))
		logging.Info().
			Dur("interval", cfg.Batch.Interval).
			Msg("Batch scheduler added to supervisor tree")
	}

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor goroutine closes the channel
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
