// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

// Package encoding turns cards into fixed-width boolean characteristic
// vectors. Each position in the vector corresponds to a named predicate
// in a versioned schema, so vectors produced under the same schema
// version are always directly comparable.
package encoding

import (
	"fmt"
	"sort"
	"strings"
)

// Predicate name prefixes for the parameterized families. The base
// predicates carry no prefix.
const (
	TribalPrefix    = "tribal:"
	ArchetypePrefix = "archetype:"
	ColorPrefix     = "color:"
)

// Base predicate names, in schema order. Order is part of the schema
// contract: changing it requires a version bump.
const (
	PredProducesMana    = "produces_mana"
	PredReducesCost     = "reduces_cost"
	PredDrawsCards      = "draws_cards"
	PredCreatesTokens   = "creates_tokens"
	PredAnthemEffect    = "anthem_effect"
	PredSacrificeOutlet = "sacrifice_outlet"
	PredDeathPayoff     = "death_payoff"
	PredComboPiece      = "combo_piece"
)

var basePredicates = []string{
	PredProducesMana,
	PredReducesCost,
	PredDrawsCards,
	PredCreatesTokens,
	PredAnthemEffect,
	PredSacrificeOutlet,
	PredDeathPayoff,
	PredComboPiece,
}

// DefaultSchemaVersion identifies the predicate vocabulary compiled
// into this build. Stored vectors stamped with a different version are
// rejected at comparison time rather than silently reinterpreted.
const DefaultSchemaVersion = 1

// SchemaConfig controls which parameterized predicates a schema
// carries beyond the base set.
type SchemaConfig struct {
	Version    int
	Tribes     []string
	Archetypes []string
	Colors     []string
}

// DefaultSchemaConfig returns the vocabulary used when no explicit
// configuration is supplied.
func DefaultSchemaConfig() SchemaConfig {
	return SchemaConfig{
		Version:    DefaultSchemaVersion,
		Tribes:     []string{"Goblin", "Elf", "Zombie", "Human", "Dragon", "Spirit", "Vampire", "Merfolk"},
		Archetypes: []string{"aggro", "control", "combo", "midrange", "ramp"},
		Colors:     []string{"W", "U", "B", "R", "G"},
	}
}

// Schema is an ordered, versioned list of predicate names. The index
// of a name within the schema is the bit position it occupies in every
// vector encoded under that schema.
type Schema struct {
	version    int
	predicates []string
	index      map[string]int
}

// NewSchema builds a schema from the configured vocabulary. Tribes,
// archetypes, and colors are deduplicated and sorted within their
// family so the resulting bit layout is deterministic regardless of
// configuration order.
func NewSchema(cfg SchemaConfig) *Schema {
	if cfg.Version == 0 {
		cfg.Version = DefaultSchemaVersion
	}

	preds := make([]string, 0, len(basePredicates)+len(cfg.Tribes)+len(cfg.Archetypes)+len(cfg.Colors))
	preds = append(preds, basePredicates...)
	preds = append(preds, prefixed(TribalPrefix, cfg.Tribes)...)
	preds = append(preds, prefixed(ArchetypePrefix, cfg.Archetypes)...)
	preds = append(preds, prefixed(ColorPrefix, cfg.Colors)...)

	idx := make(map[string]int, len(preds))
	for i, p := range preds {
		idx[p] = i
	}

	return &Schema{
		version:    cfg.Version,
		predicates: preds,
		index:      idx,
	}
}

func prefixed(prefix string, names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := prefix + n
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Version returns the schema version stamped onto encoded vectors.
func (s *Schema) Version() int { return s.version }

// Len returns the number of predicates, and therefore the fixed width
// of every vector encoded under this schema.
func (s *Schema) Len() int { return len(s.predicates) }

// Predicates returns the ordered predicate names. The returned slice
// must not be modified.
func (s *Schema) Predicates() []string { return s.predicates }

// Index returns the bit position of the named predicate.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Name returns the predicate name at position i.
func (s *Schema) Name(i int) (string, error) {
	if i < 0 || i >= len(s.predicates) {
		return "", fmt.Errorf("predicate index %d out of range [0,%d)", i, len(s.predicates))
	}
	return s.predicates[i], nil
}

// NewVector allocates an empty vector of this schema's width, stamped
// with its version.
func (s *Schema) NewVector() *Vector {
	return newVector(s.version, len(s.predicates))
}
