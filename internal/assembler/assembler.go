// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

// Package assembler grows a deck around a seed card by greedily adding
// a small batch of the candidates with the best average synergy
// against the current selection each round. The heuristic is local:
// candidate ordering is fully deterministic so identical inputs always
// produce identical decks.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/deckforge/deckforge/internal/database"
	"github.com/deckforge/deckforge/internal/logging"
	"github.com/deckforge/deckforge/internal/metrics"
	"github.com/deckforge/deckforge/internal/models"
)

// Store is the association store surface the assembler reads from.
// *database.DB satisfies it.
type Store interface {
	GetCard(ctx context.Context, id int64) (*models.Card, error)
	GetNeighbors(ctx context.Context, cardID int64, minScore float64, limit int) ([]models.Neighbor, error)
	GetAssociation(ctx context.Context, cardA, cardB int64) (*models.Association, error)
}

// Options parameterizes one assembly request. Zero values fall back to
// the assembler's configured defaults.
type Options struct {
	TargetSize     int
	MinAvgScore    float64
	MaxCopies      int
	PerRound       int // qualifying candidates added per growth round
	CandidateLimit int // neighbor rows fetched per selected card
	ExcludeLands   bool
}

// Config holds assembly defaults, overridable per request.
type Config struct {
	TargetSize     int
	MinAvgScore    float64
	MaxCopies      int
	PerRound       int
	CandidateLimit int
	ExcludeLands   bool
}

// Assembler builds deck selections from the association store.
type Assembler struct {
	store Store
	cfg   Config
}

// NewAssembler creates an assembler. Zero-value config fields get
// working defaults.
func NewAssembler(store Store, cfg Config) *Assembler {
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = 60
	}
	if cfg.MinAvgScore <= 0 {
		cfg.MinAvgScore = 0.15
	}
	if cfg.MaxCopies <= 0 {
		cfg.MaxCopies = 4
	}
	if cfg.PerRound <= 0 {
		cfg.PerRound = 5
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 40
	}
	return &Assembler{store: store, cfg: cfg}
}

// Assemble grows a selection from the seed card toward the target
// size. Each round ranks unselected neighbors of the current selection
// by their average association score against it and adds up to
// PerRound qualifying candidates in rank order (ties broken by
// ascending card ID), each with a multiplicity derived from its
// average and capped by the room left. When a round adds nothing the
// deck is returned as-is with status partial.
func (a *Assembler) Assemble(ctx context.Context, seedID int64, opts Options) (*models.DeckSelection, error) {
	start := time.Now()
	opts = a.applyDefaults(opts)

	seed, err := a.store.GetCard(ctx, seedID)
	if err != nil {
		metrics.RecordDeckAssembly("error", time.Since(start))
		return nil, fmt.Errorf("failed to load seed card %d: %w", seedID, err)
	}

	deck := &models.DeckSelection{
		SeedCardID: seedID,
		TargetSize: opts.TargetSize,
		Status:     models.DeckComplete,
		Entries: []models.DeckEntry{
			{CardID: seed.ID, Name: seed.Name, Copies: 1},
		},
	}
	selected := map[int64]int{seedID: 0} // card ID -> entry index
	total := 1

	for total < opts.TargetSize {
		if err := ctx.Err(); err != nil {
			metrics.RecordDeckAssembly("error", time.Since(start))
			return nil, fmt.Errorf("assembly canceled after %d rounds: %w", deck.Rounds, err)
		}

		ranked, err := a.rankCandidates(ctx, selected, opts)
		if err != nil {
			metrics.RecordDeckAssembly("error", time.Since(start))
			return nil, err
		}
		if len(ranked) == 0 {
			deck.Status = models.DeckPartial
			break
		}

		// Candidates past the remaining room are discarded; they get
		// re-ranked next round if growth continues.
		added := 0
		for _, cand := range ranked {
			if total >= opts.TargetSize || added >= opts.PerRound {
				break
			}
			card, err := a.store.GetCard(ctx, cand.id)
			if err != nil {
				metrics.RecordDeckAssembly("error", time.Since(start))
				return nil, fmt.Errorf("failed to load candidate card %d: %w", cand.id, err)
			}

			copies := copiesForScore(cand.avg, opts.MaxCopies)
			if remaining := opts.TargetSize - total; copies > remaining {
				copies = remaining
			}

			selected[card.ID] = len(deck.Entries)
			deck.Entries = append(deck.Entries, models.DeckEntry{
				CardID:   card.ID,
				Name:     card.Name,
				Copies:   copies,
				AvgScore: cand.avg,
			})
			total += copies
			added++
		}
		deck.Rounds++
	}

	deck.TotalCards = total
	metrics.RecordDeckAssembly(string(deck.Status), time.Since(start))

	logging.Debug().
		Int64("seed", seedID).
		Int("total_cards", total).
		Int("rounds", deck.Rounds).
		Str("status", string(deck.Status)).
		Msg("Deck assembled")

	return deck, nil
}

func (a *Assembler) applyDefaults(opts Options) Options {
	if opts.TargetSize <= 0 {
		opts.TargetSize = a.cfg.TargetSize
	}
	if opts.MinAvgScore <= 0 {
		opts.MinAvgScore = a.cfg.MinAvgScore
	}
	if opts.MaxCopies <= 0 {
		opts.MaxCopies = a.cfg.MaxCopies
	}
	if opts.PerRound <= 0 {
		opts.PerRound = a.cfg.PerRound
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = a.cfg.CandidateLimit
	}
	return opts
}

// rankedCandidate pairs a candidate with its average association score
// against the selection at the start of the round.
type rankedCandidate struct {
	id  int64
	avg float64
}

// rankCandidates scores the selection's unselected neighbors against
// every selected card and returns those meeting the minimum average,
// ordered by average descending with ties broken by ascending card ID.
func (a *Assembler) rankCandidates(ctx context.Context, selected map[int64]int, opts Options) ([]rankedCandidate, error) {
	candidates, err := a.gatherCandidates(ctx, selected, opts)
	if err != nil {
		return nil, err
	}

	// Selected IDs in ascending order so score accumulation visits
	// pairs in a stable order.
	selectedIDs := make([]int64, 0, len(selected))
	for id := range selected {
		selectedIDs = append(selectedIDs, id)
	}
	sort.Slice(selectedIDs, func(i, j int) bool { return selectedIDs[i] < selectedIDs[j] })

	var ranked []rankedCandidate
	for _, candID := range candidates {
		sum := 0.0
		for _, selID := range selectedIDs {
			assoc, err := a.store.GetAssociation(ctx, candID, selID)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					continue // unscored pair contributes zero
				}
				return nil, fmt.Errorf("failed to score candidate %d: %w", candID, err)
			}
			sum += assoc.Score
		}
		avg := sum / float64(len(selectedIDs))
		if avg < opts.MinAvgScore {
			continue
		}
		ranked = append(ranked, rankedCandidate{id: candID, avg: avg})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].avg != ranked[j].avg {
			return ranked[i].avg > ranked[j].avg
		}
		return ranked[i].id < ranked[j].id
	})
	return ranked, nil
}

// gatherCandidates collects unselected neighbor IDs of the current
// selection, in ascending ID order.
func (a *Assembler) gatherCandidates(ctx context.Context, selected map[int64]int, opts Options) ([]int64, error) {
	seen := make(map[int64]struct{})

	ids := make([]int64, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		neighbors, err := a.store.GetNeighbors(ctx, id, opts.MinAvgScore, opts.CandidateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to load neighbors of card %d: %w", id, err)
		}
		for _, n := range neighbors {
			if _, ok := selected[n.CardID]; ok {
				continue
			}
			if _, ok := seen[n.CardID]; ok {
				continue
			}
			if opts.ExcludeLands {
				card, err := a.store.GetCard(ctx, n.CardID)
				if err != nil {
					return nil, fmt.Errorf("failed to load candidate card %d: %w", n.CardID, err)
				}
				if card.IsLand {
					continue
				}
			}
			seen[n.CardID] = struct{}{}
		}
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// copiesForScore maps an average synergy score to a multiplicity band,
// capped by the per-card maximum.
func copiesForScore(avg float64, maxCopies int) int {
	var copies int
	switch {
	case avg >= 0.85:
		copies = 4
	case avg >= 0.70:
		copies = 3
	case avg >= 0.50:
		copies = 2
	default:
		copies = 1
	}
	if copies > maxCopies {
		copies = maxCopies
	}
	return copies
}
