// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

// Package synergy scores pairs of characteristic vectors. Scoring is a
// pure function of the two vectors and the configured rule weights, so
// the same pair always produces the same score and type.
package synergy

import (
	"errors"
	"strings"

	"github.com/deckforge/deckforge/internal/encoding"
)

// ErrSchemaMismatch is returned when two vectors were encoded under
// different schema versions or widths. Mixed-schema comparisons are
// never silently truncated or padded.
var ErrSchemaMismatch = errors.New("vectors encoded under different schemas")

// TypeGeneral is the fallback synergy type when no named category
// matches a scoring pair.
const TypeGeneral = "general"

// Named synergy categories, highest priority first. Tribal, archetype,
// and color categories are derived per schema entry and slot in after
// these.
const (
	TypeComboEngine          = "combo_engine"
	TypeResourceAcceleration = "resource_acceleration"
	TypeCardAdvantage        = "card_advantage"
	TypeTokenSwarm           = "token_swarm"
	TypeSacrificePayoff      = "sacrifice_payoff"
)

// Weights holds the fixed increment each rule family contributes when
// it fires. All increments are positive; the final score is clamped to
// [0,1].
type Weights struct {
	ComboEngine          float64
	ComboSupport         float64
	ResourceAcceleration float64
	SharedManaProduction float64
	CardAdvantage        float64
	TokenSwarm           float64
	TokenFodder          float64
	SacrificePayoff      float64
	TribalMatch          float64
	ArchetypeMatch       float64
	ColorMatch           float64
}

// DefaultWeights returns the tuning used when no explicit weights are
// configured.
func DefaultWeights() Weights {
	return Weights{
		ComboEngine:          0.40,
		ComboSupport:         0.25,
		ResourceAcceleration: 0.30,
		SharedManaProduction: 0.15,
		CardAdvantage:        0.20,
		TokenSwarm:           0.35,
		TokenFodder:          0.25,
		SacrificePayoff:      0.35,
		TribalMatch:          0.40,
		ArchetypeMatch:       0.20,
		ColorMatch:           0.10,
	}
}

// Config controls scorer construction. A zero value uses the default
// weights.
type Config struct {
	Weights Weights
}

// rule tests predicate a on one vector against predicate b on the
// other, in both directions. A satisfied rule contributes its weight
// once to the score. Rules are held in priority order: the category of
// the first satisfied rule is the pair's synergy type.
type rule struct {
	a, b     int
	weight   float64
	category string
}

// Scorer evaluates a fixed rule table against vector pairs. The rule
// table is built once per schema at construction; scorers are safe for
// concurrent use.
type Scorer struct {
	schemaVersion int
	schemaLen     int
	rules         []rule
}

// NewScorer compiles the rule table for the given schema. Rules whose
// predicates are absent from the schema are dropped.
func NewScorer(schema *encoding.Schema, cfg Config) *Scorer {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	w := cfg.Weights

	s := &Scorer{
		schemaVersion: schema.Version(),
		schemaLen:     schema.Len(),
	}

	// Combo-specific categories come first: their rules win type
	// classification over tribal, archetype, and color matches.
	s.addRule(schema, encoding.PredComboPiece, encoding.PredComboPiece, w.ComboEngine, TypeComboEngine)
	s.addRule(schema, encoding.PredComboPiece, encoding.PredProducesMana, w.ComboSupport, TypeComboEngine)
	s.addRule(schema, encoding.PredProducesMana, encoding.PredReducesCost, w.ResourceAcceleration, TypeResourceAcceleration)
	s.addRule(schema, encoding.PredProducesMana, encoding.PredProducesMana, w.SharedManaProduction, TypeResourceAcceleration)
	s.addRule(schema, encoding.PredDrawsCards, encoding.PredDrawsCards, w.CardAdvantage, TypeCardAdvantage)
	s.addRule(schema, encoding.PredDrawsCards, encoding.PredComboPiece, w.CardAdvantage, TypeCardAdvantage)
	s.addRule(schema, encoding.PredCreatesTokens, encoding.PredAnthemEffect, w.TokenSwarm, TypeTokenSwarm)
	s.addRule(schema, encoding.PredSacrificeOutlet, encoding.PredDeathPayoff, w.SacrificePayoff, TypeSacrificePayoff)
	s.addRule(schema, encoding.PredCreatesTokens, encoding.PredSacrificeOutlet, w.TokenFodder, TypeSacrificePayoff)
	s.addRule(schema, encoding.PredCreatesTokens, encoding.PredDeathPayoff, w.TokenFodder, TypeSacrificePayoff)

	// Parameterized families, one shared-bit rule per schema entry.
	// Schema predicate order is deterministic, so the rule table and
	// the resulting classifications are too.
	for _, name := range schema.Predicates() {
		switch {
		case strings.HasPrefix(name, encoding.TribalPrefix):
			s.addRule(schema, name, name, w.TribalMatch, categoryLabel("tribal_", name, encoding.TribalPrefix))
		}
	}
	for _, name := range schema.Predicates() {
		switch {
		case strings.HasPrefix(name, encoding.ArchetypePrefix):
			s.addRule(schema, name, name, w.ArchetypeMatch, categoryLabel("archetype_", name, encoding.ArchetypePrefix))
		}
	}
	for _, name := range schema.Predicates() {
		switch {
		case strings.HasPrefix(name, encoding.ColorPrefix):
			s.addRule(schema, name, name, w.ColorMatch, categoryLabel("color_", name, encoding.ColorPrefix))
		}
	}

	return s
}

func (s *Scorer) addRule(schema *encoding.Schema, predA, predB string, weight float64, category string) {
	ia, okA := schema.Index(predA)
	ib, okB := schema.Index(predB)
	if !okA || !okB || weight <= 0 {
		return
	}
	s.rules = append(s.rules, rule{a: ia, b: ib, weight: weight, category: category})
}

func categoryLabel(labelPrefix, predicate, predPrefix string) string {
	return labelPrefix + strings.ToLower(strings.TrimPrefix(predicate, predPrefix))
}

// Score computes the synergy score and type for a pair of vectors.
// Every rule is tested in both directions, so Score(a,b) always equals
// Score(b,a). Vectors from different schema versions are a hard error.
func (s *Scorer) Score(a, b *encoding.Vector) (float64, string, error) {
	if a == nil || b == nil {
		return 0, "", ErrSchemaMismatch
	}
	if a.SchemaVersion() != b.SchemaVersion() || a.Len() != b.Len() {
		return 0, "", ErrSchemaMismatch
	}
	if a.SchemaVersion() != s.schemaVersion || a.Len() != s.schemaLen {
		return 0, "", ErrSchemaMismatch
	}

	score := 0.0
	synergyType := TypeGeneral
	for _, r := range s.rules {
		if (a.Bit(r.a) && b.Bit(r.b)) || (a.Bit(r.b) && b.Bit(r.a)) {
			score += r.weight
			if synergyType == TypeGeneral {
				synergyType = r.category
			}
		}
	}

	if score > 1 {
		score = 1
	}
	return score, synergyType, nil
}

// SchemaVersion returns the schema version the scorer was compiled for.
func (s *Scorer) SchemaVersion() int { return s.schemaVersion }
