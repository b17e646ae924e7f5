// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/deckforge/deckforge/internal/database"
	"github.com/deckforge/deckforge/internal/logging"
)

// AdminReset clears all associations and checkpoints. Cards and their
// vectors survive, so a subsequent batch run rebuilds the graph from
// scratch. Rejected while a run is processing.
func (h *Handler) AdminReset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := h.db.ResetSynergyData(r.Context()); err != nil {
		if errors.Is(err, database.ErrResetWhileProcessing) {
			respondError(w, http.StatusConflict, "BATCH_CONFLICT", "Cannot reset while a batch run is processing", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to reset synergy data", err)
		return
	}

	logging.Ctx(r.Context()).Info().Msg("Synergy data reset")
	if h.wsHub != nil {
		h.wsHub.BroadcastReset()
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "associations and batch checkpoints cleared",
	}, start)
}

// reencodePageSize bounds how many cards are loaded per page during a
// catalog re-encode.
const reencodePageSize = 500

// AdminReencode re-materializes every card's characteristic vector
// under the encoder's current schema. Required after a schema version
// bump: stored vectors from the old version would otherwise fail
// scoring with a schema mismatch. Cards that cannot be encoded are
// skipped and counted, matching import semantics.
func (h *Handler) AdminReencode(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var reencoded, skipped int
	for offset := 0; ; offset += reencodePageSize {
		cards, err := h.db.GetCards(ctx, reencodePageSize, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list cards", err)
			return
		}
		if len(cards) == 0 {
			break
		}
		for _, card := range cards {
			vec, err := h.encoder.Encode(card)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Int64("card_id", card.ID).Msg("Skipping unencodable card during re-encode")
				skipped++
				continue
			}
			if err := h.db.UpsertCardVector(ctx, card.ID, vec); err != nil {
				respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to store re-encoded vector", err)
				return
			}
			reencoded++
		}
		if len(cards) < reencodePageSize {
			break
		}
	}

	logging.Ctx(ctx).Info().
		Int("reencoded", reencoded).
		Int("skipped", skipped).
		Int("schema_version", h.encoder.Schema().Version()).
		Msg("Catalog re-encoded")

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"reencoded":      reencoded,
		"skipped":        skipped,
		"schema_version": h.encoder.Schema().Version(),
	}, start)
}
