// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deckforge/deckforge/internal/database"
	"github.com/deckforge/deckforge/internal/encoding"
	"github.com/deckforge/deckforge/internal/logging"
	"github.com/deckforge/deckforge/internal/models"
)

// CardRequest is the payload for card upsert and import endpoints.
type CardRequest struct {
	ID         int64    `json:"id" validate:"required,gt=0"`
	Name       string   `json:"name" validate:"required"`
	OracleText *string  `json:"oracle_text"`
	TypeLine   *string  `json:"type_line"`
	Colors     []string `json:"colors" validate:"omitempty,dive,oneof=W U B R G"`
	ManaValue  *float64 `json:"mana_value" validate:"omitempty,gte=0"`
	IsLand     bool     `json:"is_land"`
}

func (req *CardRequest) toCard() *models.Card {
	return &models.Card{
		ID:         req.ID,
		Name:       req.Name,
		OracleText: req.OracleText,
		TypeLine:   req.TypeLine,
		Colors:     req.Colors,
		ManaValue:  req.ManaValue,
		IsLand:     req.IsLand,
	}
}

// CardImportRequest is the payload for bulk card import.
type CardImportRequest struct {
	Cards []CardRequest `json:"cards" validate:"required,min=1,dive"`
}

// CardUpsert stores or updates a single card and materializes its
// characteristic vector.
func (h *Handler) CardUpsert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CardRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	card := req.toCard()
	if err := h.db.UpsertCard(r.Context(), card); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to store card", err)
		return
	}

	vec, err := h.encoder.Encode(card)
	if err != nil {
		respondError(w, http.StatusBadRequest, "ENCODING_ERROR", "Failed to encode card characteristics", err)
		return
	}
	if err := h.db.UpsertCardVector(r.Context(), card.ID, vec); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to store card vector", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"card": card,
		"vector": map[string]interface{}{
			"version":     vec.SchemaVersion(),
			"length":      vec.Len(),
			"set_bits":    vec.PopCount(),
			"fingerprint": vec.Encode(),
		},
	}, start)
}

// CardImport bulk-loads cards. Each card is upserted and encoded
// independently so one malformed entry does not poison the batch.
// Entries that fail to encode are stored without a vector and reported
// in the skipped count.
func (h *Handler) CardImport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CardImportRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	var imported, encoded, skipped int
	for i := range req.Cards {
		card := req.Cards[i].toCard()
		if err := h.db.UpsertCard(r.Context(), card); err != nil {
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to store card", err)
			return
		}
		imported++

		vec, err := h.encoder.Encode(card)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Int64("card_id", card.ID).Err(err).Msg("Skipping vector for unencodable card")
			skipped++
			continue
		}
		if err := h.db.UpsertCardVector(r.Context(), card.ID, vec); err != nil {
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to store card vector", err)
			return
		}
		encoded++
	}

	logging.Ctx(r.Context()).Info().
		Int("imported", imported).
		Int("encoded", encoded).
		Int("skipped", skipped).
		Msg("Card import completed")

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"imported": imported,
		"encoded":  encoded,
		"skipped":  skipped,
	}, start)
}

// CardGet returns a single card by ID.
func (h *Handler) CardGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parsePathID(chi.URLParam(r, "cardID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Card ID must be a positive integer", nil)
		return
	}

	card, err := h.db.GetCard(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Card not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load card", err)
		return
	}

	respondSuccess(w, http.StatusOK, card, start)
}

// CardVectorGet returns the stored characteristic vector for a card.
func (h *Handler) CardVectorGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parsePathID(chi.URLParam(r, "cardID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Card ID must be a positive integer", nil)
		return
	}

	vec, err := h.db.GetCardVector(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Card has no stored vector", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load card vector", err)
		return
	}

	names := make([]string, 0, vec.PopCount())
	schema := h.encoder.Schema()
	if schema.Version() == vec.SchemaVersion() {
		for i := 0; i < vec.Len(); i++ {
			if vec.Bit(i) {
				if name, err := schema.Name(i); err == nil {
					names = append(names, name)
				}
			}
		}
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"card_id":     id,
		"version":     vec.SchemaVersion(),
		"length":      vec.Len(),
		"set_bits":    vec.PopCount(),
		"fingerprint": vec.Encode(),
		"predicates":  names,
	}, start)
}

// CardNeighbors returns the associated cards of a card, ordered by
// score descending with ascending ID tie-break.
func (h *Handler) CardNeighbors(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := parsePathID(chi.URLParam(r, "cardID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Card ID must be a positive integer", nil)
		return
	}

	if _, err := h.db.GetCard(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Card not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load card", err)
		return
	}

	minScore := getFloatParam(r, "min_score", h.config.API.NeighborMinScore)
	if minScore < 0 || minScore > 1 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "min_score must be between 0 and 1", nil)
		return
	}

	limit := getIntParam(r, "limit", h.config.API.DefaultPageSize)
	if limit < 1 {
		limit = h.config.API.DefaultPageSize
	}
	if limit > h.config.API.MaxPageSize {
		limit = h.config.API.MaxPageSize
	}

	neighbors, err := h.db.GetNeighbors(r.Context(), id, minScore, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load neighbors", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"card_id":   id,
		"min_score": minScore,
		"count":     len(neighbors),
		"neighbors": neighbors,
	}, start)
}

// AssociationGet returns the stored association for a card pair. The
// pair is unordered; either parameter order finds the same row.
func (h *Handler) AssociationGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	cardA := getInt64Param(r, "card_a", 0)
	cardB := getInt64Param(r, "card_b", 0)
	if cardA <= 0 || cardB <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "card_a and card_b must be positive integers", nil)
		return
	}
	if cardA == cardB {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "card_a and card_b must differ", nil)
		return
	}

	assoc, err := h.db.GetAssociation(r.Context(), cardA, cardB)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "No association stored for this pair", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load association", err)
		return
	}

	respondSuccess(w, http.StatusOK, assoc, start)
}

// ScorePreview scores two cards on the fly without touching the
// association store.
func (h *Handler) ScorePreview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	cardA := getInt64Param(r, "card_a", 0)
	cardB := getInt64Param(r, "card_b", 0)
	if cardA <= 0 || cardB <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "card_a and card_b must be positive integers", nil)
		return
	}
	if cardA == cardB {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "card_a and card_b must differ", nil)
		return
	}

	vecA, err := h.loadVector(w, r, cardA)
	if err != nil {
		return
	}
	vecB, err := h.loadVector(w, r, cardB)
	if err != nil {
		return
	}

	score, synergyType, err := h.scorer.Score(vecA, vecB)
	if err != nil {
		respondError(w, http.StatusConflict, "SCHEMA_MISMATCH", "Card vectors were encoded under different schemas", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"card_a":       cardA,
		"card_b":       cardB,
		"score":        score,
		"synergy_type": synergyType,
	}, start)
}

// loadVector fetches a stored vector and writes the error response
// itself when the lookup fails.
func (h *Handler) loadVector(w http.ResponseWriter, r *http.Request, cardID int64) (*encoding.Vector, error) {
	vec, err := h.db.GetCardVector(r.Context(), cardID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Card has no stored vector", nil)
			return nil, err
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load card vector", err)
		return nil, err
	}
	return vec, nil
}
