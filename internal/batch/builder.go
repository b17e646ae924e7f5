// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

// Package batch sweeps the card catalog in resumable chunks, scoring
// every unordered pair and persisting associations above a per-run
// threshold.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/deckforge/deckforge/internal/database"
	"github.com/deckforge/deckforge/internal/encoding"
	"github.com/deckforge/deckforge/internal/logging"
	"github.com/deckforge/deckforge/internal/metrics"
	"github.com/deckforge/deckforge/internal/models"
)

// Store is the persistence surface the builder needs. *database.DB
// satisfies it; tests substitute an in-memory implementation.
type Store interface {
	CountCardsAfter(ctx context.Context, cursor int64) (int64, error)
	GetCardVectorsAfter(ctx context.Context, cursor int64, limit int) ([]database.CardVector, error)
	GetAllCardVectors(ctx context.Context) ([]database.CardVector, error)
	ClaimCheckpoint(ctx context.Context, startCursor, totalItems int64, threshold float64) (*models.BatchCheckpoint, error)
	GetLatestCheckpoint(ctx context.Context) (*models.BatchCheckpoint, error)
	UpdateCheckpoint(ctx context.Context, cp *models.BatchCheckpoint) error
	FinalizeCheckpoint(ctx context.Context, id uuid.UUID, status models.BatchStatus, errMsg string) error
	UpsertAssociation(ctx context.Context, cardA, cardB int64, score float64, synergyType string) error
}

// Scorer computes the synergy score and type for one vector pair.
type Scorer interface {
	Score(a, b *encoding.Vector) (float64, string, error)
}

// Config holds builder defaults. Each run may override the chunk size
// and threshold through RunOptions.
type Config struct {
	BatchSize          int
	Threshold          float64
	CheckpointInterval time.Duration
}

// RunOptions parameterizes a single run. Zero values fall back to the
// builder's configured defaults. StartCursor and Threshold are
// pointers because 0 is a legitimate value for both, distinct from
// "use the default": a nil StartCursor resumes from the most recent
// checkpoint's cursor, while an explicit 0 re-sweeps from the start.
type RunOptions struct {
	StartCursor *int64
	BatchSize   int
	Threshold   *float64
}

// Builder orchestrates batch scoring runs. Safe for concurrent Run
// calls: the checkpoint claim guarantees at most one proceeds.
type Builder struct {
	store      Store
	scorer     Scorer
	cfg        Config
	onProgress func(*models.BatchCheckpoint)
}

// NewBuilder creates a batch builder. Zero-value config fields get
// working defaults.
func NewBuilder(store Store, scorer Scorer, cfg Config) *Builder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.55
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 2 * time.Second
	}
	return &Builder{
		store:  store,
		scorer: scorer,
		cfg:    cfg,
	}
}

// OnProgress registers a callback invoked after every checkpoint
// flush, for live progress broadcasting. Must be set before Run.
func (b *Builder) OnProgress(fn func(*models.BatchCheckpoint)) {
	b.onProgress = fn
}

// RunFromLatest resumes the sweep from the most recent checkpoint's
// cursor, or starts fresh when no run has been recorded. It is the
// entry point for scheduled background runs. A run already processing
// fails the claim with ErrConflictingRun.
func (b *Builder) RunFromLatest(ctx context.Context) (*models.BatchCheckpoint, error) {
	return b.Run(ctx, RunOptions{})
}

// resolveCursor turns a nil start cursor into the latest checkpoint's
// cursor, treating an empty checkpoint table as cursor 0.
func (b *Builder) resolveCursor(ctx context.Context, startCursor *int64) (int64, error) {
	if startCursor != nil {
		return *startCursor, nil
	}
	latest, err := b.store.GetLatestCheckpoint(ctx)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("failed to load latest checkpoint: %w", err)
	}
	return latest.Cursor, nil
}

// Run executes one batch scoring chunk: up to batchSize cards with
// ID > StartCursor, each compared against the full catalog of cards
// with a materialized vector. Associations scoring at or above the
// run's threshold are upserted. The run claims the single processing
// slot atomically; a concurrent run fails with ErrConflictingRun
// instead of racing.
func (b *Builder) Run(ctx context.Context, opts RunOptions) (*models.BatchCheckpoint, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = b.cfg.BatchSize
	}
	threshold := b.cfg.Threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be in [0,1], got %v", threshold)
	}
	startCursor, err := b.resolveCursor(ctx, opts.StartCursor)
	if err != nil {
		return nil, err
	}

	total, err := b.store.CountCardsAfter(ctx, startCursor)
	if err != nil {
		return nil, fmt.Errorf("failed to size batch run: %w", err)
	}
	if total > int64(batchSize) {
		total = int64(batchSize)
	}

	cp, err := b.store.ClaimCheckpoint(ctx, startCursor, total, threshold)
	if err != nil {
		if errors.Is(err, database.ErrConflictingRun) {
			metrics.RecordBatchRun("conflict")
		}
		return nil, err
	}

	logging.Info().
		Str("run_id", cp.ID.String()).
		Int64("start_cursor", startCursor).
		Int("batch_size", batchSize).
		Float64("threshold", threshold).
		Msg("Batch run started")

	if err := b.sweep(ctx, cp, batchSize, threshold); err != nil {
		metrics.RecordBatchRun("failed")
		// The sweep error may be the context's own cancellation, so the
		// terminal writes must not ride on the canceled context or the
		// claim stays processing forever.
		finCtx := context.WithoutCancel(ctx)
		if flushErr := b.store.UpdateCheckpoint(finCtx, cp); flushErr != nil {
			logging.Warn().Err(flushErr).Str("run_id", cp.ID.String()).Msg("Failed to flush checkpoint of failed run")
		}
		if finErr := b.store.FinalizeCheckpoint(finCtx, cp.ID, models.BatchFailed, err.Error()); finErr != nil {
			logging.Error().Err(finErr).Str("run_id", cp.ID.String()).Msg("Failed to mark batch run as failed")
		}
		cp.Status = models.BatchFailed
		cp.Error = err.Error()
		b.notify(cp)
		return cp, err
	}

	if err := b.store.UpdateCheckpoint(ctx, cp); err != nil {
		logging.Warn().Err(err).Str("run_id", cp.ID.String()).Msg("Failed to flush final checkpoint")
	}
	if err := b.store.FinalizeCheckpoint(ctx, cp.ID, models.BatchCompleted, ""); err != nil {
		return cp, fmt.Errorf("failed to complete batch run: %w", err)
	}
	cp.Status = models.BatchCompleted
	b.notify(cp)

	metrics.RecordBatchRun("completed")
	metrics.BatchRunProgress.Set(100)

	logging.Info().
		Str("run_id", cp.ID.String()).
		Int64("items", cp.ItemsProcessed).
		Int64("comparisons", cp.ComparisonsMade).
		Int64("associations", cp.AssociationsCreated).
		Msg("Batch run completed")

	return cp, nil
}

// sweep performs the N x M comparison loop and advances the checkpoint.
func (b *Builder) sweep(ctx context.Context, cp *models.BatchCheckpoint, batchSize int, threshold float64) error {
	catalog, err := b.store.GetAllCardVectors(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog vectors: %w", err)
	}
	chunk, err := b.store.GetCardVectorsAfter(ctx, cp.Cursor, batchSize)
	if err != nil {
		return fmt.Errorf("failed to load chunk vectors: %w", err)
	}

	limiter := rate.NewLimiter(rate.Every(b.cfg.CheckpointInterval), 1)

	for _, item := range chunk {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch run canceled at cursor %d: %w", cp.Cursor, err)
		}
		itemStart := time.Now()

		for _, other := range catalog {
			if other.CardID == item.CardID {
				continue
			}
			score, synergyType, err := b.scorer.Score(item.Vector, other.Vector)
			if err != nil {
				return fmt.Errorf("failed to score pair (%d,%d): %w", item.CardID, other.CardID, err)
			}
			cp.ComparisonsMade++
			metrics.BatchComparisonsTotal.Inc()

			if score < threshold {
				continue
			}
			if err := b.store.UpsertAssociation(ctx, item.CardID, other.CardID, score, synergyType); err != nil {
				return fmt.Errorf("failed to persist association (%d,%d): %w", item.CardID, other.CardID, err)
			}
			cp.AssociationsCreated++
			metrics.BatchAssociationsCreated.Inc()
		}

		cp.Cursor = item.CardID
		cp.ItemsProcessed++
		metrics.BatchItemDuration.Observe(time.Since(itemStart).Seconds())
		metrics.BatchRunProgress.Set(cp.ProgressPercent())

		// Checkpoint flushes are rate limited so large catalogs do
		// not spend their time writing progress rows.
		if limiter.Allow() {
			if err := b.store.UpdateCheckpoint(ctx, cp); err != nil {
				logging.Warn().Err(err).Str("run_id", cp.ID.String()).Msg("Failed to flush checkpoint")
			}
			b.notify(cp)
		}
	}
	return nil
}

func (b *Builder) notify(cp *models.BatchCheckpoint) {
	if b.onProgress != nil {
		snapshot := *cp
		b.onProgress(&snapshot)
	}
}
