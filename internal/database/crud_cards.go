// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deckforge/deckforge/internal/encoding"
	"github.com/deckforge/deckforge/internal/models"
)

// CardVector pairs a card ID with its materialized characteristic
// vector, as consumed by the batch builder's catalog sweep.
type CardVector struct {
	CardID int64
	Vector *encoding.Vector
}

// UpsertCard inserts or updates a card's attributes. The stored
// characteristic vector is cleared on update because any attribute
// change can invalidate it; callers re-encode afterwards.
func (db *DB) UpsertCard(ctx context.Context, card *models.Card) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if card.ID == 0 {
		return fmt.Errorf("card ID must be set")
	}
	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now

	query := `INSERT INTO cards (
		id, name, oracle_text, type_line, colors, mana_value, is_land,
		vector_version, vector_length, vector_bits, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		oracle_text = excluded.oracle_text,
		type_line = excluded.type_line,
		colors = excluded.colors,
		mana_value = excluded.mana_value,
		is_land = excluded.is_land,
		vector_version = NULL,
		vector_length = NULL,
		vector_bits = NULL,
		updated_at = excluded.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		card.ID, card.Name, card.OracleText, card.TypeLine,
		joinColors(card.Colors), card.ManaValue, card.IsLand,
		card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card %d: %w", card.ID, err)
	}
	return nil
}

// GetCard retrieves a card by ID.
func (db *DB) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, name, oracle_text, type_line, colors, mana_value, is_land, created_at, updated_at
		FROM cards WHERE id = ?`

	row := db.conn.QueryRowContext(ctx, query, id)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("card %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get card %d: %w", id, err)
	}
	return card, nil
}

// GetCards retrieves cards in ascending ID order with paging.
func (db *DB) GetCards(ctx context.Context, limit, offset int) ([]*models.Card, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, name, oracle_text, type_line, colors, mana_value, is_land, created_at, updated_at
		FROM cards ORDER BY id ASC LIMIT ? OFFSET ?`

	rows, err := db.conn.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return cards, nil
}

// CountCards returns the catalog size.
func (db *DB) CountCards(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM cards").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return count, nil
}

// CountCardsAfter returns how many cards with a materialized vector
// have an ID greater than the cursor, for batch run progress
// estimation. The filter matches the chunk query so TotalItems counts
// exactly the cards a sweep will visit.
func (db *DB) CountCardsAfter(ctx context.Context, cursor int64) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := "SELECT COUNT(*) FROM cards WHERE id > ? AND vector_bits IS NOT NULL"
	var count int64
	if err := db.conn.QueryRowContext(ctx, query, cursor).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cards after %d: %w", cursor, err)
	}
	return count, nil
}

// UpsertCardVector stores the encoded characteristic vector for a card.
// The write is all-or-nothing: version, width, and bits land together.
func (db *DB) UpsertCardVector(ctx context.Context, cardID int64, vec *encoding.Vector) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE cards SET vector_version = ?, vector_length = ?, vector_bits = ?, updated_at = ? WHERE id = ?`
	res, err := db.conn.ExecContext(ctx, query,
		vec.SchemaVersion(), vec.Len(), vec.Encode(), time.Now().UTC(), cardID)
	if err != nil {
		return fmt.Errorf("failed to store vector for card %d: %w", cardID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check vector update for card %d: %w", cardID, err)
	}
	if affected == 0 {
		return fmt.Errorf("card %d: %w", cardID, ErrNotFound)
	}
	return nil
}

// GetCardVector retrieves a card's stored vector. A card without a
// materialized vector is reported as ErrNotFound.
func (db *DB) GetCardVector(ctx context.Context, cardID int64) (*encoding.Vector, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version, length sql.NullInt64
	var bits sql.NullString
	query := `SELECT vector_version, vector_length, vector_bits FROM cards WHERE id = ?`
	err := db.conn.QueryRowContext(ctx, query, cardID).Scan(&version, &length, &bits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("card %d: %w", cardID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get vector for card %d: %w", cardID, err)
	}
	if !version.Valid || !length.Valid || !bits.Valid {
		return nil, fmt.Errorf("card %d has no vector: %w", cardID, ErrNotFound)
	}
	vec, err := encoding.DecodeVector(int(version.Int64), int(length.Int64), bits.String)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vector for card %d: %w", cardID, err)
	}
	return vec, nil
}

// GetCardVectorsAfter returns up to limit (card, vector) pairs with
// ID > cursor in ascending ID order, skipping cards without a vector.
// A limit <= 0 returns the full remainder of the catalog.
func (db *DB) GetCardVectorsAfter(ctx context.Context, cursor int64, limit int) ([]CardVector, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, vector_version, vector_length, vector_bits
		FROM cards
		WHERE id > ? AND vector_bits IS NOT NULL
		ORDER BY id ASC`
	args := []interface{}{cursor}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list card vectors: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []CardVector
	for rows.Next() {
		var id int64
		var version, length int
		var bits string
		if err := rows.Scan(&id, &version, &length, &bits); err != nil {
			return nil, fmt.Errorf("failed to scan card vector: %w", err)
		}
		vec, err := encoding.DecodeVector(version, length, bits)
		if err != nil {
			return nil, fmt.Errorf("failed to decode vector for card %d: %w", id, err)
		}
		out = append(out, CardVector{CardID: id, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate card vectors: %w", err)
	}
	return out, nil
}

// GetAllCardVectors returns every materialized (card, vector) pair in
// ascending ID order. The batch builder compares each chunk card
// against this full catalog.
func (db *DB) GetAllCardVectors(ctx context.Context) ([]CardVector, error) {
	return db.GetCardVectorsAfter(ctx, 0, 0)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}
	var colors sql.NullString
	err := row.Scan(
		&card.ID, &card.Name, &card.OracleText, &card.TypeLine,
		&colors, &card.ManaValue, &card.IsLand,
		&card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if colors.Valid && colors.String != "" {
		card.Colors = strings.Split(colors.String, ",")
	}
	return card, nil
}

func joinColors(colors []string) string {
	return strings.Join(colors, ",")
}
