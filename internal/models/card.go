// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package models

import "time"

// Card represents a catalog entry with the attributes the characteristic
// encoder consumes. Optional attributes use pointer fields resolved once at
// load time; code downstream never re-probes for presence.
type Card struct {
	// ID is the stable catalog identifier. A card without an ID cannot be
	// encoded or associated.
	ID int64 `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// OracleText is the rules text. Nil when the card has no text box;
	// text-derived predicates evaluate to false in that case.
	OracleText *string `json:"oracle_text,omitempty"`

	// TypeLine is the full type line (e.g. "Creature - Goblin Shaman").
	TypeLine *string `json:"type_line,omitempty"`

	// Colors holds the color tags (W, U, B, R, G). Empty for colorless.
	Colors []string `json:"colors,omitempty"`

	// ManaValue is the converted cost. Nil when the card has no cost.
	ManaValue *float64 `json:"mana_value,omitempty"`

	// IsLand marks basic-resource cards the assembler can exclude.
	// Resolved from the type line at load time.
	IsLand bool `json:"is_land"`

	// CreatedAt is when the card was first stored.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the card attributes last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Text returns the oracle text or empty string when absent.
func (c *Card) Text() string {
	if c.OracleText == nil {
		return ""
	}
	return *c.OracleText
}

// Type returns the type line or empty string when absent.
func (c *Card) Type() string {
	if c.TypeLine == nil {
		return ""
	}
	return *c.TypeLine
}
