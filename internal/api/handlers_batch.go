// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/deckforge/deckforge/internal/batch"
	"github.com/deckforge/deckforge/internal/database"
	"github.com/deckforge/deckforge/internal/logging"
	"github.com/deckforge/deckforge/internal/models"
)

// BatchRunRequest parameterizes a batch scoring run. All fields are
// optional. An omitted start_cursor resumes from the latest
// checkpoint; an explicit 0 re-sweeps from the start.
type BatchRunRequest struct {
	StartCursor *int64   `json:"start_cursor" validate:"omitempty,gte=0"`
	BatchSize   int      `json:"batch_size" validate:"gte=0"`
	Threshold   *float64 `json:"threshold" validate:"omitempty,score_range"`
}

// BatchStart launches a batch scoring run in the background and
// returns immediately. The run claims the single processing slot; a
// second concurrent start is rejected with 409.
func (h *Handler) BatchStart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BatchRunRequest
	if err := decodeJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	// Fast-path conflict check before spawning the worker. The claim
	// inside Run remains the authoritative guard against races.
	if latest, err := h.db.GetLatestCheckpoint(r.Context()); err == nil && latest.Status == models.BatchProcessing {
		respondError(w, http.StatusConflict, "BATCH_CONFLICT", "A batch run is already processing", nil)
		return
	}

	opts := batch.RunOptions{
		StartCursor: req.StartCursor,
		BatchSize:   req.BatchSize,
		Threshold:   req.Threshold,
	}

	go func() {
		cp, err := h.builder.Run(context.Background(), opts)
		if err != nil {
			if errors.Is(err, database.ErrConflictingRun) {
				logging.Warn().Msg("Batch run lost the claim to a concurrent run")
				return
			}
			logging.Error().Err(err).Msg("Batch run failed")
			return
		}
		logging.Info().
			Str("run_id", cp.ID.String()).
			Int64("items_processed", cp.ItemsProcessed).
			Int64("associations_created", cp.AssociationsCreated).
			Msg("Batch run completed")
	}()

	body := map[string]interface{}{"message": "batch run started"}
	if req.StartCursor != nil {
		body["start_cursor"] = *req.StartCursor
	}
	respondSuccess(w, http.StatusAccepted, body, start)
}

// BatchStatus returns the most recent checkpoint, processing or
// terminal. With no run recorded yet the status is not_started.
func (h *Handler) BatchStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	cp, err := h.db.GetLatestCheckpoint(r.Context())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondSuccess(w, http.StatusOK, map[string]interface{}{
				"status": string(models.BatchNotStarted),
			}, start)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load batch status", err)
		return
	}

	respondSuccess(w, http.StatusOK, checkpointView(cp), start)
}

// BatchRunGet returns a specific checkpoint by run ID.
func (h *Handler) BatchRunGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Run ID must be a UUID", nil)
		return
	}

	cp, err := h.db.GetCheckpoint(r.Context(), runID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Batch run not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load batch run", err)
		return
	}

	respondSuccess(w, http.StatusOK, checkpointView(cp), start)
}

// checkpointView augments a checkpoint with derived progress fields.
func checkpointView(cp *models.BatchCheckpoint) map[string]interface{} {
	view := map[string]interface{}{
		"run":              cp,
		"progress_percent": cp.ProgressPercent(),
	}
	if cp.Status == models.BatchProcessing {
		view["estimated_remaining_seconds"] = cp.EstimateRemaining(time.Now()).Seconds()
	}
	return view
}
