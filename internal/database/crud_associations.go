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
	"time"

	"github.com/deckforge/deckforge/internal/models"
)

// canonicalPair orders two card IDs with the smaller first. Every
// association row is stored in this canonical form regardless of the
// caller's argument order.
func canonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// UpsertAssociation inserts or updates the scored edge between two
// distinct cards. Re-upserting identical inputs is idempotent: only the
// timestamp advances.
func (db *DB) UpsertAssociation(ctx context.Context, cardA, cardB int64, score float64, synergyType string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if cardA == cardB {
		return fmt.Errorf("cannot associate card %d with itself", cardA)
	}
	a, b := canonicalPair(cardA, cardB)

	query := `INSERT INTO associations (card_a, card_b, score, synergy_type, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (card_a, card_b) DO UPDATE SET
			score = excluded.score,
			synergy_type = excluded.synergy_type,
			updated_at = excluded.updated_at`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, a, b, score, synergyType, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert association (%d,%d): %w", a, b, err)
	}
	return nil
}

// GetAssociation retrieves the association for an unordered pair.
func (db *DB) GetAssociation(ctx context.Context, cardA, cardB int64) (*models.Association, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	a, b := canonicalPair(cardA, cardB)

	query := `SELECT card_a, card_b, score, synergy_type, updated_at
		FROM associations WHERE card_a = ? AND card_b = ?`

	assoc := &models.Association{}
	err := db.conn.QueryRowContext(ctx, query, a, b).Scan(
		&assoc.CardA, &assoc.CardB, &assoc.Score, &assoc.SynergyType, &assoc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("association (%d,%d): %w", a, b, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get association (%d,%d): %w", a, b, err)
	}
	return assoc, nil
}

// GetNeighbors returns the synergy neighborhood of a card: every
// associated card with score >= minScore, ordered by descending score
// then ascending neighbor ID. A limit <= 0 returns all neighbors.
func (db *DB) GetNeighbors(ctx context.Context, cardID int64, minScore float64, limit int) ([]models.Neighbor, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT
			CASE WHEN a.card_a = ? THEN a.card_b ELSE a.card_a END AS other_id,
			c.name, a.score, a.synergy_type
		FROM associations a
		JOIN cards c ON c.id = CASE WHEN a.card_a = ? THEN a.card_b ELSE a.card_a END
		WHERE (a.card_a = ? OR a.card_b = ?) AND a.score >= ?
		ORDER BY a.score DESC, other_id ASC`
	args := []interface{}{cardID, cardID, cardID, cardID, minScore}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors of card %d: %w", cardID, err)
	}
	defer closeWithLog(rows, "rows")

	var neighbors []models.Neighbor
	for rows.Next() {
		var n models.Neighbor
		if err := rows.Scan(&n.CardID, &n.Name, &n.Score, &n.SynergyType); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate neighbors: %w", err)
	}
	return neighbors, nil
}

// CountAssociations returns the total number of stored associations.
func (db *DB) CountAssociations(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM associations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count associations: %w", err)
	}
	return count, nil
}
