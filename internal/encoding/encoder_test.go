// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package encoding

import (
	"errors"
	"testing"

	"github.com/deckforge/deckforge/internal/models"
)

func strPtr(s string) *string { return &s }

func testCard(id int64, name, text, typeLine string, colors ...string) *models.Card {
	return &models.Card{
		ID:         id,
		Name:       name,
		OracleText: strPtr(text),
		TypeLine:   strPtr(typeLine),
		Colors:     colors,
	}
}

func TestEncodeDeterministic(t *testing.T) {
	enc := NewEncoder(EncoderConfig{})
	card := testCard(1, "Goblin Chieftain",
		"Haste. Other Goblins you control get +1/+1 and have haste.",
		"Creature — Goblin", "R")

	v1, err := enc.Encode(card)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	v2, err := enc.Encode(card)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !v1.Equal(v2) {
		t.Error("Encode() is not deterministic for identical input")
	}
}

func TestEncodeFixedWidth(t *testing.T) {
	enc := NewEncoder(EncoderConfig{})
	want := enc.Schema().Len()

	cards := []*models.Card{
		testCard(1, "Mountain", "", "Basic Land — Mountain"),
		testCard(2, "Opt", "Scry 1. Draw a card.", "Instant", "U"),
		{ID: 3, Name: "Bare Card"},
	}
	for _, card := range cards {
		v, err := enc.Encode(card)
		if err != nil {
			t.Fatalf("Encode(%q) error = %v", card.Name, err)
		}
		if v.Len() != want {
			t.Errorf("Encode(%q) width = %d, want %d", card.Name, v.Len(), want)
		}
		if v.SchemaVersion() != enc.Schema().Version() {
			t.Errorf("Encode(%q) version = %d, want %d", card.Name, v.SchemaVersion(), enc.Schema().Version())
		}
	}
}

func TestEncodePredicates(t *testing.T) {
	enc := NewEncoder(EncoderConfig{})
	schema := enc.Schema()

	tests := []struct {
		name string
		card *models.Card
		on   []string
		off  []string
	}{
		{
			name: "goblin lord",
			card: testCard(1, "Goblin Chieftain",
				"Haste. Other Goblins you control get +1/+1 and have haste.",
				"Creature — Goblin", "R"),
			on:  []string{"tribal:Goblin", "archetype:aggro", "color:R"},
			off: []string{"tribal:Elf", "color:U", PredDrawsCards},
		},
		{
			name: "cantrip",
			card: testCard(2, "Opt", "Scry 1. Draw a card.", "Instant", "U"),
			on:   []string{PredDrawsCards, "color:U"},
			off:  []string{PredProducesMana, "tribal:Goblin"},
		},
		{
			name: "token maker",
			card: testCard(3, "Krenko's Command",
				"Create two 1/1 red Goblin creature tokens.", "Sorcery", "R"),
			on:  []string{PredCreatesTokens, "tribal:Goblin"},
			off: []string{PredAnthemEffect},
		},
		{
			name: "token maker without creature wording",
			card: testCard(6, "Dwindling Horde",
				"Sacrifice a creature: Create two 1/1 black Zombie tokens.", "Enchantment", "B"),
			on:  []string{PredCreatesTokens, "tribal:Zombie", PredSacrificeOutlet},
			off: []string{"tribal:Goblin"},
		},
		{
			name: "mana producer",
			card: testCard(4, "Llanowar Elves", "{T}: Add {G}.", "Creature — Elf Druid", "G"),
			on:   []string{PredProducesMana, "tribal:Elf", "color:G"},
			off:  []string{PredComboPiece},
		},
		{
			name: "missing optional fields are false",
			card: &models.Card{ID: 5, Name: "Blank"},
			off:  append([]string{}, schema.Predicates()...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := enc.Encode(tt.card)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			for _, p := range tt.on {
				i, ok := schema.Index(p)
				if !ok {
					t.Fatalf("schema is missing predicate %q", p)
				}
				if !v.Bit(i) {
					t.Errorf("predicate %q = false, want true", p)
				}
			}
			for _, p := range tt.off {
				i, ok := schema.Index(p)
				if !ok {
					t.Fatalf("schema is missing predicate %q", p)
				}
				if v.Bit(i) {
					t.Errorf("predicate %q = true, want false", p)
				}
			}
		})
	}
}

func TestEncodeMissingIdentity(t *testing.T) {
	enc := NewEncoder(EncoderConfig{})

	if _, err := enc.Encode(nil); !errors.Is(err, ErrMissingIdentity) {
		t.Errorf("Encode(nil) error = %v, want ErrMissingIdentity", err)
	}
	if _, err := enc.Encode(&models.Card{Name: "No ID"}); !errors.Is(err, ErrMissingIdentity) {
		t.Errorf("Encode(no id) error = %v, want ErrMissingIdentity", err)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	enc := NewEncoder(EncoderConfig{})
	card := testCard(7, "Goblin Chieftain",
		"Haste. Other Goblins you control get +1/+1 and have haste.",
		"Creature — Goblin", "R")

	v, err := enc.Encode(card)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := DecodeVector(v.SchemaVersion(), v.Len(), v.Encode())
	if err != nil {
		t.Fatalf("DecodeVector() error = %v", err)
	}
	if !v.Equal(decoded) {
		t.Error("decoded vector does not match original")
	}
}

func TestDecodeVectorRejectsBadPayload(t *testing.T) {
	if _, err := DecodeVector(1, 16, "zz"); err == nil {
		t.Error("DecodeVector() with non-hex payload should fail")
	}
	if _, err := DecodeVector(1, 16, "abcd"); err == nil {
		t.Error("DecodeVector() with truncated payload should fail")
	}
	if _, err := DecodeVector(1, 0, ""); err == nil {
		t.Error("DecodeVector() with zero width should fail")
	}
}

func TestSchemaStableLayout(t *testing.T) {
	a := NewSchema(SchemaConfig{Tribes: []string{"Goblin", "Elf"}, Colors: []string{"R", "G"}})
	b := NewSchema(SchemaConfig{Tribes: []string{"Elf", "Goblin"}, Colors: []string{"G", "R"}})

	if a.Len() != b.Len() {
		t.Fatalf("schema widths differ: %d vs %d", a.Len(), b.Len())
	}
	for i, name := range a.Predicates() {
		if b.Predicates()[i] != name {
			t.Errorf("predicate order differs at %d: %q vs %q", i, name, b.Predicates()[i])
		}
	}
}
