// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package database

import (
	"errors"
	"io"

	"github.com/deckforge/deckforge/internal/logging"
)

// Sentinel errors returned by store operations. Handlers map these to
// API error codes.
var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflictingRun means a batch run is already in the processing
	// state; only one run may hold the claim at a time.
	ErrConflictingRun = errors.New("a batch run is already processing")

	// ErrResetWhileProcessing means reset was requested while a batch
	// run holds the processing claim.
	ErrResetWhileProcessing = errors.New("cannot reset while a batch run is processing")
)

// closeWithLog closes a resource and logs failures instead of
// propagating them, for use in cleanup paths.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}
