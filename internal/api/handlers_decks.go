// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/deckforge/deckforge/internal/assembler"
	"github.com/deckforge/deckforge/internal/database"
)

// DeckAssembleRequest parameterizes a deck assembly. Only the seed is
// required; the remaining knobs fall back to configured defaults.
type DeckAssembleRequest struct {
	SeedCardID   int64    `json:"seed_card_id" validate:"required,gt=0"`
	TargetSize   int      `json:"target_size" validate:"gte=0,lte=1000"`
	MinAvgScore  *float64 `json:"min_avg_score" validate:"omitempty,score_range"`
	MaxCopies    int      `json:"max_copies" validate:"gte=0,lte=100"`
	PerRound     int      `json:"per_round" validate:"gte=0,lte=100"`
	ExcludeLands *bool    `json:"exclude_lands"`
}

// DeckAssemble grows a deck selection around a seed card and returns
// it. A partial deck (candidate pool exhausted before target size) is
// a success, distinguished by the status field.
func (h *Handler) DeckAssemble(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req DeckAssembleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	opts := assembler.Options{
		TargetSize:   req.TargetSize,
		MaxCopies:    req.MaxCopies,
		PerRound:     req.PerRound,
		ExcludeLands: h.config.Assembler.ExcludeLands,
	}
	if req.MinAvgScore != nil {
		opts.MinAvgScore = *req.MinAvgScore
	}
	if req.ExcludeLands != nil {
		opts.ExcludeLands = *req.ExcludeLands
	}

	deck, err := h.assembler.Assemble(r.Context(), req.SeedCardID, opts)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Seed card not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "ASSEMBLY_ERROR", "Deck assembly failed", err)
		return
	}

	respondSuccess(w, http.StatusOK, deck, start)
}
