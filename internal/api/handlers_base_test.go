// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/deckforge/deckforge/internal/assembler"
	"github.com/deckforge/deckforge/internal/batch"
	"github.com/deckforge/deckforge/internal/config"
	"github.com/deckforge/deckforge/internal/database"
	"github.com/deckforge/deckforge/internal/encoding"
	"github.com/deckforge/deckforge/internal/logging"
	"github.com/deckforge/deckforge/internal/models"
	"github.com/deckforge/deckforge/internal/synergy"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "error",
		Format: "console",
		Output: io.Discard,
	})
}

// testDBSemaphore limits concurrent in-memory DuckDB instances, same
// discipline as the database package tests.
var testDBSemaphore = make(chan struct{}, 1)

var testDBMutex sync.Mutex

// testEnv bundles the wired application for handler tests.
type testEnv struct {
	db      *database.DB
	handler *Handler
	router  http.Handler
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	dbCfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	testDBMutex.Lock()
	db, err := database.New(dbCfg)
	testDBMutex.Unlock()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	cfg := &config.Config{
		Assembler: config.AssemblerConfig{
			TargetSize:     10,
			MinAvgScore:    0.15,
			MaxCopies:      4,
			PerRound:       5,
			CandidateLimit: 40,
			ExcludeLands:   true,
		},
		API: config.APIConfig{
			DefaultPageSize:  20,
			MaxPageSize:      200,
			NeighborMinScore: 0.30,
			CORSOrigins:      []string{"*"},
		},
	}

	enc := encoding.NewEncoder(encoding.EncoderConfig{})
	scorer := synergy.NewScorer(enc.Schema(), synergy.Config{})
	builder := batch.NewBuilder(db, scorer, batch.Config{
		BatchSize:          100,
		Threshold:          0.30,
		CheckpointInterval: time.Millisecond,
	})
	asm := assembler.NewAssembler(db, assembler.Config{
		TargetSize:     cfg.Assembler.TargetSize,
		MinAvgScore:    cfg.Assembler.MinAvgScore,
		MaxCopies:      cfg.Assembler.MaxCopies,
		PerRound:       cfg.Assembler.PerRound,
		CandidateLimit: cfg.Assembler.CandidateLimit,
	})

	handler := NewHandler(db, enc, scorer, builder, asm, cfg, nil)
	router := NewRouter(handler, NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		RateLimitDisabled:  true,
	}))

	return &testEnv{
		db:      db,
		handler: handler,
		router:  router.SetupChi(),
	}
}

// doRequest runs one request through the full route tree.
func (env *testEnv) doRequest(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// decodeResponse unmarshals the response envelope.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) (string, json.RawMessage, *models.APIError) {
	t.Helper()

	var envelope struct {
		Status string           `json:"status"`
		Data   json.RawMessage  `json:"data"`
		Error  *models.APIError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return envelope.Status, envelope.Data, envelope.Error
}

func strPtr(s string) *string { return &s }

// seedCard inserts a card with its vector through the store directly.
func (env *testEnv) seedCard(t *testing.T, card *models.Card) {
	t.Helper()

	ctx := context.Background()
	if err := env.db.UpsertCard(ctx, card); err != nil {
		t.Fatalf("UpsertCard(%d) error = %v", card.ID, err)
	}
	vec, err := env.handler.encoder.Encode(card)
	if err != nil {
		t.Fatalf("Encode(%d) error = %v", card.ID, err)
	}
	if err := env.db.UpsertCardVector(ctx, card.ID, vec); err != nil {
		t.Fatalf("UpsertCardVector(%d) error = %v", card.ID, err)
	}
}

// seedAssociation writes one scored pair directly to the store.
func (env *testEnv) seedAssociation(t *testing.T, cardA, cardB int64, score float64, synergyType string) {
	t.Helper()
	if err := env.db.UpsertAssociation(context.Background(), cardA, cardB, score, synergyType); err != nil {
		t.Fatalf("UpsertAssociation(%d, %d) error = %v", cardA, cardB, err)
	}
}

// goblinCard builds a tribal creature that encodes with at least the
// tribal and color predicates set.
func goblinCard(id int64, name string) *models.Card {
	return &models.Card{
		ID:         id,
		Name:       name,
		OracleText: strPtr("Other Goblins you control get +1/+1."),
		TypeLine:   strPtr("Creature — Goblin"),
		Colors:     []string{"R"},
	}
}
