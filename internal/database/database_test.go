// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deckforge/deckforge/internal/config"
	"github.com/deckforge/deckforge/internal/encoding"
	"github.com/deckforge/deckforge/internal/models"
)

// testDBSemaphore limits concurrent in-memory DuckDB instances. DuckDB
// CGO calls can hang under CI resource pressure when multiple
// connections operate concurrently, so each test holds the semaphore
// for its full lifetime.
var testDBSemaphore = make(chan struct{}, 1)

var testDBMutex sync.Mutex

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	testDBMutex.Lock()
	db, err := New(cfg)
	testDBMutex.Unlock()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

func insertTestCard(t *testing.T, db *DB, id int64, name string) {
	t.Helper()
	if err := db.UpsertCard(context.Background(), &models.Card{ID: id, Name: name}); err != nil {
		t.Fatalf("UpsertCard(%d) error = %v", id, err)
	}
}

func TestUpsertAndGetCard(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	text := "Haste. Other Goblins you control get +1/+1."
	typeLine := "Creature — Goblin"
	card := &models.Card{
		ID:         42,
		Name:       "Goblin Chieftain",
		OracleText: &text,
		TypeLine:   &typeLine,
		Colors:     []string{"R"},
	}
	if err := db.UpsertCard(ctx, card); err != nil {
		t.Fatalf("UpsertCard() error = %v", err)
	}

	got, err := db.GetCard(ctx, 42)
	if err != nil {
		t.Fatalf("GetCard() error = %v", err)
	}
	if got.Name != card.Name {
		t.Errorf("Name = %q, want %q", got.Name, card.Name)
	}
	if got.Text() != text {
		t.Errorf("Text() = %q, want %q", got.Text(), text)
	}
	if len(got.Colors) != 1 || got.Colors[0] != "R" {
		t.Errorf("Colors = %v, want [R]", got.Colors)
	}

	// Updating attributes must clear any stored vector.
	enc := encoding.NewEncoder(encoding.EncoderConfig{})
	vec, err := enc.Encode(card)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := db.UpsertCardVector(ctx, 42, vec); err != nil {
		t.Fatalf("UpsertCardVector() error = %v", err)
	}
	if _, err := db.GetCardVector(ctx, 42); err != nil {
		t.Fatalf("GetCardVector() error = %v", err)
	}

	card.Name = "Goblin Chieftain (updated)"
	if err := db.UpsertCard(ctx, card); err != nil {
		t.Fatalf("UpsertCard() update error = %v", err)
	}
	if _, err := db.GetCardVector(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCardVector() after attribute update error = %v, want ErrNotFound", err)
	}
}

func TestGetCardNotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetCard(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCard(999) error = %v, want ErrNotFound", err)
	}
}

func TestCardVectorRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertTestCard(t, db, 1, "Opt")
	enc := encoding.NewEncoder(encoding.EncoderConfig{})
	text := "Draw a card."
	vec, err := enc.Encode(&models.Card{ID: 1, Name: "Opt", OracleText: &text})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if err := db.UpsertCardVector(ctx, 1, vec); err != nil {
		t.Fatalf("UpsertCardVector() error = %v", err)
	}
	got, err := db.GetCardVector(ctx, 1)
	if err != nil {
		t.Fatalf("GetCardVector() error = %v", err)
	}
	if !vec.Equal(got) {
		t.Error("stored vector does not match encoded vector")
	}

	if err := db.UpsertCardVector(ctx, 2, vec); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpsertCardVector() for missing card error = %v, want ErrNotFound", err)
	}
}

func TestGetCardVectorsAfter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	enc := encoding.NewEncoder(encoding.EncoderConfig{})

	for id := int64(1); id <= 5; id++ {
		insertTestCard(t, db, id, "Card")
		// Card 3 deliberately has no vector.
		if id == 3 {
			continue
		}
		vec, err := enc.Encode(&models.Card{ID: id, Name: "Card"})
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if err := db.UpsertCardVector(ctx, id, vec); err != nil {
			t.Fatalf("UpsertCardVector(%d) error = %v", id, err)
		}
	}

	got, err := db.GetCardVectorsAfter(ctx, 1, 0)
	if err != nil {
		t.Fatalf("GetCardVectorsAfter() error = %v", err)
	}
	wantIDs := []int64{2, 4, 5}
	if len(got) != len(wantIDs) {
		t.Fatalf("GetCardVectorsAfter() returned %d vectors, want %d", len(got), len(wantIDs))
	}
	for i, cv := range got {
		if cv.CardID != wantIDs[i] {
			t.Errorf("vector %d has card ID %d, want %d", i, cv.CardID, wantIDs[i])
		}
	}

	limited, err := db.GetCardVectorsAfter(ctx, 0, 2)
	if err != nil {
		t.Fatalf("GetCardVectorsAfter() with limit error = %v", err)
	}
	if len(limited) != 2 || limited[0].CardID != 1 || limited[1].CardID != 2 {
		t.Errorf("limited sweep = %v, want card IDs [1 2]", limited)
	}
}

func TestUpsertAssociationIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertTestCard(t, db, 1, "A")
	insertTestCard(t, db, 2, "B")

	// Argument order must not matter: both calls hit the same
	// canonical row.
	if err := db.UpsertAssociation(ctx, 2, 1, 0.75, "tribal_goblin"); err != nil {
		t.Fatalf("UpsertAssociation() error = %v", err)
	}
	first, err := db.GetAssociation(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetAssociation() error = %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := db.UpsertAssociation(ctx, 1, 2, 0.75, "tribal_goblin"); err != nil {
		t.Fatalf("UpsertAssociation() repeat error = %v", err)
	}
	second, err := db.GetAssociation(ctx, 2, 1)
	if err != nil {
		t.Fatalf("GetAssociation() error = %v", err)
	}

	if second.CardA != 1 || second.CardB != 2 {
		t.Errorf("pair stored as (%d,%d), want canonical (1,2)", second.CardA, second.CardB)
	}
	if second.Score != first.Score || second.SynergyType != first.SynergyType {
		t.Errorf("idempotent upsert changed content: %+v vs %+v", first, second)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Error("idempotent upsert should advance the timestamp")
	}

	count, err := db.CountAssociations(ctx)
	if err != nil {
		t.Fatalf("CountAssociations() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountAssociations() = %d, want 1", count)
	}
}

func TestUpsertAssociationRejectsSelfPair(t *testing.T) {
	db := setupTestDB(t)

	if err := db.UpsertAssociation(context.Background(), 7, 7, 0.5, "general"); err == nil {
		t.Error("UpsertAssociation() with identical IDs should fail")
	}
}

func TestGetNeighborsOrdering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for id := int64(1); id <= 5; id++ {
		insertTestCard(t, db, id, "Card")
	}

	// Neighbors of card 1: two ties at 0.8 must come back in
	// ascending ID order, below-threshold edges filtered out.
	pairs := []struct {
		other int64
		score float64
	}{
		{2, 0.8},
		{3, 0.9},
		{4, 0.8},
		{5, 0.1},
	}
	for _, p := range pairs {
		if err := db.UpsertAssociation(ctx, 1, p.other, p.score, "general"); err != nil {
			t.Fatalf("UpsertAssociation() error = %v", err)
		}
	}

	neighbors, err := db.GetNeighbors(ctx, 1, 0.5, 0)
	if err != nil {
		t.Fatalf("GetNeighbors() error = %v", err)
	}
	wantIDs := []int64{3, 2, 4}
	if len(neighbors) != len(wantIDs) {
		t.Fatalf("GetNeighbors() returned %d results, want %d", len(neighbors), len(wantIDs))
	}
	for i, n := range neighbors {
		if n.CardID != wantIDs[i] {
			t.Errorf("neighbor %d = card %d, want %d", i, n.CardID, wantIDs[i])
		}
	}

	limited, err := db.GetNeighbors(ctx, 1, 0.0, 2)
	if err != nil {
		t.Fatalf("GetNeighbors() with limit error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("GetNeighbors() with limit returned %d results, want 2", len(limited))
	}
}

func TestClaimCheckpointConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := db.ClaimCheckpoint(ctx, 0, 100, 0.55)
	if err != nil {
		t.Fatalf("ClaimCheckpoint() error = %v", err)
	}

	if _, err := db.ClaimCheckpoint(ctx, 0, 100, 0.55); !errors.Is(err, ErrConflictingRun) {
		t.Errorf("second ClaimCheckpoint() error = %v, want ErrConflictingRun", err)
	}

	// Releasing the claim allows a new run.
	if err := db.FinalizeCheckpoint(ctx, first.ID, models.BatchCompleted, ""); err != nil {
		t.Fatalf("FinalizeCheckpoint() error = %v", err)
	}
	second, err := db.ClaimCheckpoint(ctx, 40, 60, 0.9)
	if err != nil {
		t.Fatalf("ClaimCheckpoint() after release error = %v", err)
	}
	if second.ID == first.ID {
		t.Error("new run reused the previous checkpoint ID")
	}
}

func TestCheckpointLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cp, err := db.ClaimCheckpoint(ctx, 0, 10, 0.55)
	if err != nil {
		t.Fatalf("ClaimCheckpoint() error = %v", err)
	}

	cp.Cursor = 5
	cp.ItemsProcessed = 5
	cp.ComparisonsMade = 45
	cp.AssociationsCreated = 3
	if err := db.UpdateCheckpoint(ctx, cp); err != nil {
		t.Fatalf("UpdateCheckpoint() error = %v", err)
	}

	got, err := db.GetLatestCheckpoint(ctx)
	if err != nil {
		t.Fatalf("GetLatestCheckpoint() error = %v", err)
	}
	if got.ID != cp.ID || got.Cursor != 5 || got.ItemsProcessed != 5 {
		t.Errorf("GetLatestCheckpoint() = %+v, want cursor 5 for run %s", got, cp.ID)
	}
	if got.Status != models.BatchProcessing {
		t.Errorf("Status = %q, want processing", got.Status)
	}

	if err := db.FinalizeCheckpoint(ctx, cp.ID, models.BatchFailed, "catalog unavailable"); err != nil {
		t.Fatalf("FinalizeCheckpoint() error = %v", err)
	}
	got, err = db.GetCheckpoint(ctx, cp.ID)
	if err != nil {
		t.Fatalf("GetCheckpoint() error = %v", err)
	}
	if got.Status != models.BatchFailed || got.Error != "catalog unavailable" {
		t.Errorf("finalized checkpoint = %+v, want failed with error message", got)
	}

	if err := db.FinalizeCheckpoint(ctx, cp.ID, models.BatchProcessing, ""); err == nil {
		t.Error("FinalizeCheckpoint() to non-terminal status should fail")
	}
}

func TestRecoverInterruptedRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	orphan, err := db.ClaimCheckpoint(ctx, 40, 60, 0.55)
	if err != nil {
		t.Fatalf("ClaimCheckpoint() error = %v", err)
	}

	// The orphaned claim blocks both new runs and resets.
	if _, err := db.ClaimCheckpoint(ctx, 0, 100, 0.55); !errors.Is(err, ErrConflictingRun) {
		t.Fatalf("ClaimCheckpoint() error = %v, want ErrConflictingRun", err)
	}
	if err := db.ResetSynergyData(ctx); !errors.Is(err, ErrResetWhileProcessing) {
		t.Fatalf("ResetSynergyData() error = %v, want ErrResetWhileProcessing", err)
	}

	recovered, err := db.RecoverInterruptedRuns(ctx)
	if err != nil {
		t.Fatalf("RecoverInterruptedRuns() error = %v", err)
	}
	if recovered != 1 {
		t.Errorf("recovered = %d, want 1", recovered)
	}

	// The interrupted run is failed with its cursor intact, so a
	// resumed run picks up where it stopped.
	got, err := db.GetCheckpoint(ctx, orphan.ID)
	if err != nil {
		t.Fatalf("GetCheckpoint() error = %v", err)
	}
	if got.Status != models.BatchFailed || got.Error == "" {
		t.Errorf("recovered checkpoint = %+v, want failed with error message", got)
	}
	if got.Cursor != 40 {
		t.Errorf("recovered cursor = %d, want 40", got.Cursor)
	}

	if _, err := db.ClaimCheckpoint(ctx, got.Cursor, 60, 0.55); err != nil {
		t.Errorf("ClaimCheckpoint() after recovery error = %v", err)
	}

	recovered, err = db.RecoverInterruptedRuns(ctx)
	if err != nil {
		t.Fatalf("RecoverInterruptedRuns() second call error = %v", err)
	}
	if recovered != 1 {
		t.Errorf("second recovery = %d, want 1", recovered)
	}
}

func TestCountCardsAfterCountsOnlyVectoredCards(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	enc := encoding.NewEncoder(encoding.EncoderConfig{})

	for id := int64(1); id <= 4; id++ {
		insertTestCard(t, db, id, "Card")
		// Cards 3 and 4 have no vector and are invisible to a sweep.
		if id >= 3 {
			continue
		}
		vec, err := enc.Encode(&models.Card{ID: id, Name: "Card"})
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if err := db.UpsertCardVector(ctx, id, vec); err != nil {
			t.Fatalf("UpsertCardVector(%d) error = %v", id, err)
		}
	}

	count, err := db.CountCardsAfter(ctx, 0)
	if err != nil {
		t.Fatalf("CountCardsAfter() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountCardsAfter(0) = %d, want 2", count)
	}

	count, err = db.CountCardsAfter(ctx, 1)
	if err != nil {
		t.Fatalf("CountCardsAfter() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountCardsAfter(1) = %d, want 1", count)
	}
}

func TestResetSynergyData(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertTestCard(t, db, 1, "A")
	insertTestCard(t, db, 2, "B")
	if err := db.UpsertAssociation(ctx, 1, 2, 0.6, "general"); err != nil {
		t.Fatalf("UpsertAssociation() error = %v", err)
	}

	cp, err := db.ClaimCheckpoint(ctx, 0, 2, 0.55)
	if err != nil {
		t.Fatalf("ClaimCheckpoint() error = %v", err)
	}

	// Reset must be rejected while the run is processing.
	if err := db.ResetSynergyData(ctx); !errors.Is(err, ErrResetWhileProcessing) {
		t.Errorf("ResetSynergyData() during run error = %v, want ErrResetWhileProcessing", err)
	}

	if err := db.FinalizeCheckpoint(ctx, cp.ID, models.BatchCompleted, ""); err != nil {
		t.Fatalf("FinalizeCheckpoint() error = %v", err)
	}
	if err := db.ResetSynergyData(ctx); err != nil {
		t.Fatalf("ResetSynergyData() error = %v", err)
	}

	count, err := db.CountAssociations(ctx)
	if err != nil {
		t.Fatalf("CountAssociations() error = %v", err)
	}
	if count != 0 {
		t.Errorf("associations after reset = %d, want 0", count)
	}
	if _, err := db.GetLatestCheckpoint(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLatestCheckpoint() after reset error = %v, want ErrNotFound", err)
	}

	// Cards survive a reset.
	if _, err := db.GetCard(ctx, 1); err != nil {
		t.Errorf("GetCard() after reset error = %v", err)
	}
}
