// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package models

import (
	"time"

	"github.com/google/uuid"
)

// Association is a persisted, scored relationship between two distinct
// cards. The pair is canonical: CardA < CardB always holds, and at most one
// Association exists per unordered pair.
type Association struct {
	// CardA is the smaller card ID of the canonical pair.
	CardA int64 `json:"card_a"`

	// CardB is the larger card ID of the canonical pair.
	CardB int64 `json:"card_b"`

	// Score is the synergy score in [0, 1].
	Score float64 `json:"score"`

	// SynergyType is the discrete category explaining why the pair scores
	// well together (e.g. "tribal_goblin", "token_swarm", "general").
	SynergyType string `json:"synergy_type"`

	// UpdatedAt advances on every upsert, including idempotent re-scores.
	UpdatedAt time.Time `json:"updated_at"`
}

// Neighbor is one edge of a card's synergy neighborhood, as returned by
// neighbor queries ordered by descending score then ascending card ID.
type Neighbor struct {
	CardID      int64   `json:"card_id"`
	Name        string  `json:"name,omitempty"`
	Score       float64 `json:"score"`
	SynergyType string  `json:"synergy_type"`
}

// BatchStatus is the lifecycle state of a batch scoring run.
type BatchStatus string

const (
	// BatchNotStarted means no run has been recorded yet.
	BatchNotStarted BatchStatus = "not_started"
	// BatchProcessing means a run is actively scoring pairs.
	BatchProcessing BatchStatus = "processing"
	// BatchCompleted means the run finished its chunk.
	BatchCompleted BatchStatus = "completed"
	// BatchFailed means the run aborted on an unrecoverable error.
	BatchFailed BatchStatus = "failed"
)

// Valid reports whether s is a known batch status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchNotStarted, BatchProcessing, BatchCompleted, BatchFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is an end state.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// BatchCheckpoint records the resumable progress of one batch scoring run.
// At most one checkpoint is in the processing state at a time; the claim is
// enforced atomically by the store.
type BatchCheckpoint struct {
	// ID identifies the run.
	ID uuid.UUID `json:"id"`

	// Status is the run lifecycle state.
	Status BatchStatus `json:"status"`

	// Cursor is the highest card ID processed so far. A subsequent run
	// with StartCursor = Cursor resumes where this run left off.
	Cursor int64 `json:"cursor"`

	// ItemsProcessed counts chunk cards fully swept.
	ItemsProcessed int64 `json:"items_processed"`

	// ComparisonsMade counts scored pairs (skipped pairs excluded).
	ComparisonsMade int64 `json:"comparisons_made"`

	// AssociationsCreated counts upserts that met the threshold.
	AssociationsCreated int64 `json:"associations_created"`

	// TotalItems is the catalog size above the start cursor when the run
	// began, used for progress estimation.
	TotalItems int64 `json:"total_items"`

	// Threshold is the minimum score persisted by this run. Each run
	// carries its own threshold; it is configuration, not a constant.
	Threshold float64 `json:"threshold"`

	// StartedAt is when the run claimed the processing state.
	StartedAt time.Time `json:"started_at"`

	// UpdatedAt is the last progress flush.
	UpdatedAt time.Time `json:"updated_at"`

	// Error holds the failure cause when Status is failed.
	Error string `json:"error,omitempty"`
}

// ProgressPercent derives completion from processed count over total.
// Returns 100 for completed runs regardless of counters.
func (c *BatchCheckpoint) ProgressPercent() float64 {
	if c.Status == BatchCompleted {
		return 100
	}
	if c.TotalItems <= 0 {
		return 0
	}
	pct := float64(c.ItemsProcessed) / float64(c.TotalItems) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// EstimateRemaining derives the remaining duration from average per-item
// time, or zero when no items completed yet or the run is terminal.
func (c *BatchCheckpoint) EstimateRemaining(now time.Time) time.Duration {
	if c.Status.Terminal() || c.ItemsProcessed <= 0 {
		return 0
	}
	remaining := c.TotalItems - c.ItemsProcessed
	if remaining <= 0 {
		return 0
	}
	elapsed := now.Sub(c.StartedAt)
	perItem := elapsed / time.Duration(c.ItemsProcessed)
	return perItem * time.Duration(remaining)
}

// DeckStatus distinguishes full assemblies from early-terminated ones.
type DeckStatus string

const (
	// DeckComplete means the selection reached the target size.
	DeckComplete DeckStatus = "complete"
	// DeckPartial means candidates ran out before the target size.
	// Partial is a distinguishable result, not an error.
	DeckPartial DeckStatus = "partial"
)

// DeckEntry is one selected card with its multiplicity.
type DeckEntry struct {
	CardID int64  `json:"card_id"`
	Name   string `json:"name,omitempty"`
	Copies int    `json:"copies"`

	// AvgScore is the average synergy against the selection at the time
	// the card was added. Zero for the seed.
	AvgScore float64 `json:"avg_score"`
}

// DeckSelection is a bounded, multiplicity-capped card subset grown around
// a seed card. Total copies never exceed TargetSize and no entry exceeds
// the configured per-card cap.
type DeckSelection struct {
	SeedCardID int64       `json:"seed_card_id"`
	TargetSize int         `json:"target_size"`
	TotalCards int         `json:"total_cards"`
	Status     DeckStatus  `json:"status"`
	Entries    []DeckEntry `json:"entries"`
	Rounds     int         `json:"rounds"`
}
