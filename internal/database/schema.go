// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package database

import (
	"context"
	"fmt"
	"time"
)

// createTables creates the core tables if they do not exist. All DDL is
// idempotent so startup is safe against an existing database file.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tables := []string{
		`CREATE TABLE IF NOT EXISTS cards (
			id BIGINT PRIMARY KEY,
			name VARCHAR NOT NULL,
			oracle_text VARCHAR,
			type_line VARCHAR,
			colors VARCHAR,
			mana_value DOUBLE,
			is_land BOOLEAN NOT NULL DEFAULT FALSE,
			vector_version INTEGER,
			vector_length INTEGER,
			vector_bits VARCHAR,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		// card_a < card_b always holds; the primary key enforces the
		// unique unordered pair constraint.
		`CREATE TABLE IF NOT EXISTS associations (
			card_a BIGINT NOT NULL,
			card_b BIGINT NOT NULL,
			score DOUBLE NOT NULL,
			synergy_type VARCHAR NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (card_a, card_b)
		)`,
		`CREATE TABLE IF NOT EXISTS batch_checkpoints (
			id UUID PRIMARY KEY,
			status VARCHAR NOT NULL,
			last_cursor BIGINT NOT NULL,
			items_processed BIGINT NOT NULL,
			comparisons_made BIGINT NOT NULL,
			associations_created BIGINT NOT NULL,
			total_items BIGINT NOT NULL,
			threshold DOUBLE NOT NULL,
			last_error VARCHAR,
			started_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, ddl := range tables {
		if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// createIndexes creates query indexes. Neighbor queries filter on
// either side of the pair, so both columns are indexed.
func (db *DB) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_associations_card_a ON associations(card_a, score)`,
		`CREATE INDEX IF NOT EXISTS idx_associations_card_b ON associations(card_b, score)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_status ON batch_checkpoints(status)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_started ON batch_checkpoints(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_name ON cards(name)`,
	}

	for _, ddl := range indexes {
		if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
