// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deckforge/deckforge/internal/logging"
	"github.com/deckforge/deckforge/internal/models"
)

// ClaimCheckpoint atomically creates a new processing checkpoint,
// failing with ErrConflictingRun if any run already holds the
// processing state. The guard is part of the INSERT itself, not a
// separate read, so two concurrent claims can never both succeed.
func (db *DB) ClaimCheckpoint(ctx context.Context, startCursor, totalItems int64, threshold float64) (*models.BatchCheckpoint, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	cp := &models.BatchCheckpoint{
		ID:         uuid.New(),
		Status:     models.BatchProcessing,
		Cursor:     startCursor,
		TotalItems: totalItems,
		Threshold:  threshold,
		StartedAt:  now,
		UpdatedAt:  now,
	}

	query := `INSERT INTO batch_checkpoints (
			id, status, last_cursor, items_processed, comparisons_made,
			associations_created, total_items, threshold, last_error, started_at, updated_at
		)
		SELECT ?, ?, ?, 0, 0, 0, ?, ?, NULL, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM batch_checkpoints WHERE status = ?
		)`

	res, err := db.conn.ExecContext(ctx, query,
		cp.ID, cp.Status, cp.Cursor, cp.TotalItems, cp.Threshold,
		cp.StartedAt, cp.UpdatedAt, models.BatchProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch checkpoint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to verify batch checkpoint claim: %w", err)
	}
	if affected == 0 {
		return nil, ErrConflictingRun
	}

	logging.Info().
		Str("run_id", cp.ID.String()).
		Int64("start_cursor", startCursor).
		Float64("threshold", threshold).
		Msg("Batch run claimed")

	return cp, nil
}

// RecoverInterruptedRuns marks every checkpoint still in the
// processing state as failed. A single process owns the database, so a
// processing row found at startup belongs to a run that died without
// finalizing; left alone it would hold the claim forever and wedge
// both future runs and resets. The row's cursor is preserved, so the
// next run resumes where the interrupted one stopped.
func (db *DB) RecoverInterruptedRuns(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE batch_checkpoints SET status = ?, last_error = ?, updated_at = ? WHERE status = ?`
	res, err := db.conn.ExecContext(ctx, query,
		models.BatchFailed, "run interrupted before completion", time.Now().UTC(), models.BatchProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to recover interrupted batch runs: %w", err)
	}
	recovered, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to verify interrupted run recovery: %w", err)
	}
	if recovered > 0 {
		logging.Warn().Int64("runs", recovered).Msg("Recovered interrupted batch runs")
	}
	return recovered, nil
}

// UpdateCheckpoint flushes run progress. Only non-terminal fields move;
// status transitions go through FinalizeCheckpoint.
func (db *DB) UpdateCheckpoint(ctx context.Context, cp *models.BatchCheckpoint) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	cp.UpdatedAt = time.Now().UTC()

	query := `UPDATE batch_checkpoints SET
			last_cursor = ?, items_processed = ?, comparisons_made = ?,
			associations_created = ?, updated_at = ?
		WHERE id = ?`

	res, err := db.conn.ExecContext(ctx, query,
		cp.Cursor, cp.ItemsProcessed, cp.ComparisonsMade,
		cp.AssociationsCreated, cp.UpdatedAt, cp.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update checkpoint %s: %w", cp.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to verify checkpoint update %s: %w", cp.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("checkpoint %s: %w", cp.ID, ErrNotFound)
	}
	return nil
}

// FinalizeCheckpoint moves a run to a terminal state, releasing the
// processing claim. errMsg is recorded only for failed runs.
func (db *DB) FinalizeCheckpoint(ctx context.Context, id uuid.UUID, status models.BatchStatus, errMsg string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if !status.Terminal() {
		return fmt.Errorf("cannot finalize checkpoint %s to non-terminal status %q", id, status)
	}

	var lastError interface{}
	if status == models.BatchFailed && errMsg != "" {
		lastError = errMsg
	}

	query := `UPDATE batch_checkpoints SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`
	res, err := db.conn.ExecContext(ctx, query, status, lastError, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to finalize checkpoint %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to verify checkpoint finalize %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetLatestCheckpoint returns the most recently started run, or
// ErrNotFound when no run has ever been recorded.
func (db *DB) GetLatestCheckpoint(ctx context.Context) (*models.BatchCheckpoint, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, status, last_cursor, items_processed, comparisons_made,
			associations_created, total_items, threshold, last_error, started_at, updated_at
		FROM batch_checkpoints
		ORDER BY started_at DESC, id DESC
		LIMIT 1`

	return db.scanCheckpoint(db.conn.QueryRowContext(ctx, query))
}

// GetCheckpoint returns a specific run by ID.
func (db *DB) GetCheckpoint(ctx context.Context, id uuid.UUID) (*models.BatchCheckpoint, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, status, last_cursor, items_processed, comparisons_made,
			associations_created, total_items, threshold, last_error, started_at, updated_at
		FROM batch_checkpoints WHERE id = ?`

	return db.scanCheckpoint(db.conn.QueryRowContext(ctx, query, id))
}

func (db *DB) scanCheckpoint(row *sql.Row) (*models.BatchCheckpoint, error) {
	cp := &models.BatchCheckpoint{}
	var lastError sql.NullString
	err := row.Scan(
		&cp.ID, &cp.Status, &cp.Cursor, &cp.ItemsProcessed, &cp.ComparisonsMade,
		&cp.AssociationsCreated, &cp.TotalItems, &cp.Threshold, &lastError,
		&cp.StartedAt, &cp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("batch checkpoint: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
	}
	cp.Error = lastError.String
	return cp, nil
}

// ResetSynergyData clears all associations and checkpoints. The reset
// is rejected while a run holds the processing claim so it cannot pull
// state out from under an active sweep.
func (db *DB) ResetSynergyData(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var processing int64
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM batch_checkpoints WHERE status = ?", models.BatchProcessing,
	).Scan(&processing)
	if err != nil {
		return fmt.Errorf("failed to check for active batch run: %w", err)
	}
	if processing > 0 {
		return ErrResetWhileProcessing
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM associations"); err != nil {
		return fmt.Errorf("failed to clear associations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM batch_checkpoints"); err != nil {
		return fmt.Errorf("failed to clear batch checkpoints: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	logging.Info().Msg("Synergy data reset")
	return nil
}
