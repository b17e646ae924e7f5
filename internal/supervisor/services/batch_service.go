// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/deckforge/deckforge/internal/database"
	"github.com/deckforge/deckforge/internal/models"
)

// BatchRunner matches *batch.Builder's scheduled entry point without
// importing the batch package.
type BatchRunner interface {
	RunFromLatest(ctx context.Context) (*models.BatchCheckpoint, error)
}

// BatchServiceConfig holds configuration for the scheduled batch
// service.
type BatchServiceConfig struct {
	// RunOnStartup triggers a sweep chunk when the service starts.
	RunOnStartup bool

	// Interval is how often to run the next chunk.
	Interval time.Duration
}

// BatchService runs batch scoring chunks on a schedule, resuming from
// the last recorded cursor. A chunk that loses the claim to a manually
// triggered run is skipped, not retried.
type BatchService struct {
	runner BatchRunner
	config BatchServiceConfig
	logger zerolog.Logger
	name   string
}

// NewBatchService creates a new scheduled batch service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBatchService(runner BatchRunner, cfg BatchServiceConfig, logger zerolog.Logger) *BatchService {
	return &BatchService{
		runner: runner,
		config: cfg,
		logger: logger.With().Str("service", "batch").Logger(),
		name:   "batch-scheduler",
	}
}

// Serve implements the suture.Service interface.
func (s *BatchService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("run_on_startup", s.config.RunOnStartup).
		Dur("interval", s.config.Interval).
		Msg("batch scheduler starting")

	if s.config.RunOnStartup {
		s.runChunk(ctx)
	}

	if s.config.Interval <= 0 {
		s.config.Interval = 6 * time.Hour
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("batch scheduler shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.runChunk(ctx)
		}
	}
}

// runChunk executes one scheduled chunk. Failures are logged, not
// propagated: the next tick retries from the persisted cursor.
func (s *BatchService) runChunk(ctx context.Context) {
	start := time.Now()
	cp, err := s.runner.RunFromLatest(ctx)
	if err != nil {
		if errors.Is(err, database.ErrConflictingRun) {
			s.logger.Debug().Msg("scheduled chunk skipped, another run holds the claim")
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn().Err(err).Msg("scheduled chunk failed")
		return
	}

	s.logger.Info().
		Str("run_id", cp.ID.String()).
		Int64("cursor", cp.Cursor).
		Int64("items_processed", cp.ItemsProcessed).
		Int64("associations_created", cp.AssociationsCreated).
		Dur("duration", time.Since(start)).
		Msg("scheduled chunk complete")
}

// String returns the service name for logging.
func (s *BatchService) String() string {
	return s.name
}
