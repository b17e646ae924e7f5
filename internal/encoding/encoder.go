// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package encoding

import (
	"errors"
	"strings"

	"github.com/deckforge/deckforge/internal/models"
)

// ErrMissingIdentity is returned when a card cannot be encoded because
// it lacks a usable identifier. Callers treat it as a per-card skip,
// not a batch failure.
var ErrMissingIdentity = errors.New("card has no identity")

// Marker phrases for the base predicates. Matching is lowercase
// substring search over the card's rules text; a missing text field
// simply means every text predicate is false.
var (
	manaMarkers = []string{
		"add {", "add one mana", "add two mana", "add three mana",
		"add x mana", "add mana of any color",
	}
	costReductionMarkers = []string{
		"costs {1} less", "costs {2} less", "cost {1} less", "cost {2} less",
		"costs less to cast", "cost less to cast",
	}
	drawMarkers = []string{
		"draw a card", "draw two cards", "draw three cards", "draw cards",
		"draws a card",
	}
	tokenMarkers = []string{
		"create a", "create two", "create three", "create x",
	}
	anthemMarkers = []string{
		"creatures you control get +", "other creatures you control get +",
	}
	sacrificeMarkers = []string{
		"sacrifice a creature:", "sacrifice another creature:",
		"sacrifice a permanent:", "sacrifice an artifact:",
	}
	deathPayoffMarkers = []string{
		"whenever a creature dies", "whenever another creature dies",
		"whenever a creature you control dies", "dies, ",
	}
	comboMarkers = []string{
		"untap all", "untap target permanent", "take an extra turn",
		"copy target spell", "copy that spell", "without paying its mana cost",
	}
)

// Default keyword markers for the archetype predicates. Keys must match
// the archetype names in the schema configuration.
func defaultArchetypeMarkers() map[string][]string {
	return map[string][]string{
		"aggro":    {"haste", "first strike", "attacks each combat", "can't block"},
		"control":  {"counter target spell", "destroy all", "return target", "exile target"},
		"combo":    {"search your library", "untap all", "without paying its mana cost"},
		"midrange": {"+1/+1 counter", "when this creature enters", "enters the battlefield"},
		"ramp":     {"search your library for a land", "add {", "additional land"},
	}
}

// EncoderConfig controls the predicate vocabulary and the marker
// phrases used to evaluate it.
type EncoderConfig struct {
	Schema           SchemaConfig
	ArchetypeMarkers map[string][]string
}

// Encoder evaluates a schema's predicates against cards, producing
// deterministic fixed-width vectors.
type Encoder struct {
	schema           *Schema
	archetypeMarkers map[string][]string
}

// NewEncoder creates an encoder. Zero-value configuration fields fall
// back to the compiled-in defaults.
func NewEncoder(cfg EncoderConfig) *Encoder {
	if cfg.Schema.Version == 0 && len(cfg.Schema.Tribes) == 0 &&
		len(cfg.Schema.Archetypes) == 0 && len(cfg.Schema.Colors) == 0 {
		cfg.Schema = DefaultSchemaConfig()
	}
	if cfg.ArchetypeMarkers == nil {
		cfg.ArchetypeMarkers = defaultArchetypeMarkers()
	}
	return &Encoder{
		schema:           NewSchema(cfg.Schema),
		archetypeMarkers: cfg.ArchetypeMarkers,
	}
}

// Schema returns the schema the encoder encodes under.
func (e *Encoder) Schema() *Schema { return e.schema }

// Encode produces the card's characteristic vector. Encoding is a pure
// function of the card's fields: the same card always yields the same
// vector under the same schema. Cards without an identifier cannot be
// stored or compared, so they are rejected with ErrMissingIdentity.
func (e *Encoder) Encode(card *models.Card) (*Vector, error) {
	if card == nil || card.ID == 0 {
		return nil, ErrMissingIdentity
	}

	text := strings.ToLower(card.Text())
	typeLine := strings.ToLower(card.Type())
	v := e.schema.NewVector()

	e.setIf(v, PredProducesMana, containsAny(text, manaMarkers))
	e.setIf(v, PredReducesCost, containsAny(text, costReductionMarkers))
	e.setIf(v, PredDrawsCards, containsAny(text, drawMarkers))
	e.setIf(v, PredCreatesTokens, containsAny(text, tokenMarkers) && strings.Contains(text, "token"))
	e.setIf(v, PredAnthemEffect, containsAny(text, anthemMarkers))
	e.setIf(v, PredSacrificeOutlet, containsAny(text, sacrificeMarkers))
	e.setIf(v, PredDeathPayoff, containsAny(text, deathPayoffMarkers))
	e.setIf(v, PredComboPiece, containsAny(text, comboMarkers))

	for _, name := range e.schema.Predicates() {
		switch {
		case strings.HasPrefix(name, TribalPrefix):
			tribe := strings.ToLower(strings.TrimPrefix(name, TribalPrefix))
			e.setIf(v, name, tribeMatches(typeLine, text, tribe))
		case strings.HasPrefix(name, ArchetypePrefix):
			arch := strings.TrimPrefix(name, ArchetypePrefix)
			e.setIf(v, name, containsAny(text, e.archetypeMarkers[arch]))
		case strings.HasPrefix(name, ColorPrefix):
			color := strings.TrimPrefix(name, ColorPrefix)
			e.setIf(v, name, hasColor(card.Colors, color))
		}
	}

	return v, nil
}

func (e *Encoder) setIf(v *Vector, name string, on bool) {
	if !on {
		return
	}
	if i, ok := e.schema.Index(name); ok {
		v.Set(i)
	}
}

// tribeMatches checks the type line for tribe membership and the rules
// text for tribal payoffs referencing the tribe or for creation of
// tokens belonging to it.
func tribeMatches(typeLine, text, tribe string) bool {
	if strings.Contains(typeLine, tribe) {
		return true
	}
	return strings.Contains(text, tribe+" you control") ||
		strings.Contains(text, tribe+"s you control") ||
		strings.Contains(text, "other "+tribe) ||
		strings.Contains(text, tribe+" creature token") ||
		strings.Contains(text, tribe+" token")
}

func containsAny(text string, markers []string) bool {
	if text == "" {
		return false
	}
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func hasColor(colors []string, want string) bool {
	for _, c := range colors {
		if strings.EqualFold(c, want) {
			return true
		}
	}
	return false
}
