// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

// Package config defines the application configuration and its layered
// loader. Defaults come from code, a YAML file overrides defaults, and
// environment variables override everything.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Logging   LoggingConfig   `koanf:"logging"`
	Encoder   EncoderConfig   `koanf:"encoder"`
	Batch     BatchConfig     `koanf:"batch"`
	Assembler AssemblerConfig `koanf:"assembler"`
	API       APIConfig       `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // "development" or "production"
}

// DatabaseConfig holds DuckDB connection settings.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = use NumCPU
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
	Caller bool   `koanf:"caller"`
}

// EncoderConfig holds the characteristic vector schema vocabulary.
// Changing any of these fields changes the bit layout, which requires a
// schema version bump and a catalog re-encode.
type EncoderConfig struct {
	SchemaVersion int      `koanf:"schema_version"`
	Tribes        []string `koanf:"tribes"`
	Archetypes    []string `koanf:"archetypes"`
	Colors        []string `koanf:"colors"`
}

// BatchConfig holds batch scoring run settings. Threshold is part of
// each run's configuration: API callers may override it per run, and
// this value only seeds runs that do not specify their own.
type BatchConfig struct {
	Size               int           `koanf:"size"`
	Threshold          float64       `koanf:"threshold"`
	Enabled            bool          `koanf:"enabled"` // periodic background runs
	Interval           time.Duration `koanf:"interval"`
	CheckpointInterval time.Duration `koanf:"checkpoint_interval"`
}

// AssemblerConfig holds deck assembly defaults. Each assembly request
// may override them.
type AssemblerConfig struct {
	TargetSize     int     `koanf:"target_size"`
	MinAvgScore    float64 `koanf:"min_avg_score"`
	MaxCopies      int     `koanf:"max_copies"`
	PerRound       int     `koanf:"per_round"`       // candidates added per growth round
	CandidateLimit int     `koanf:"candidate_limit"` // neighbor rows fetched per selected card
	ExcludeLands   bool    `koanf:"exclude_lands"`
}

// APIConfig holds API pagination, query, and rate limit settings.
type APIConfig struct {
	DefaultPageSize  int      `koanf:"default_page_size"`
	MaxPageSize      int      `koanf:"max_page_size"`
	NeighborMinScore float64  `koanf:"neighbor_min_score"`
	RateLimit        int      `koanf:"rate_limit"` // requests per minute per IP, 0 disables
	CORSOrigins      []string `koanf:"cors_origins"`
}

// Validate checks the configuration for values that cannot work at
// runtime. It is called once after loading, so handlers can trust the
// config without re-checking.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be positive, got %d", c.Batch.Size)
	}
	if c.Batch.Threshold < 0 || c.Batch.Threshold > 1 {
		return fmt.Errorf("batch.threshold must be in [0,1], got %v", c.Batch.Threshold)
	}
	if c.Batch.Enabled && c.Batch.Interval <= 0 {
		return fmt.Errorf("batch.interval must be positive when periodic runs are enabled, got %s", c.Batch.Interval)
	}
	if c.Assembler.TargetSize <= 0 {
		return fmt.Errorf("assembler.target_size must be positive, got %d", c.Assembler.TargetSize)
	}
	if c.Assembler.MinAvgScore < 0 || c.Assembler.MinAvgScore > 1 {
		return fmt.Errorf("assembler.min_avg_score must be in [0,1], got %v", c.Assembler.MinAvgScore)
	}
	if c.Assembler.MaxCopies < 1 {
		return fmt.Errorf("assembler.max_copies must be at least 1, got %d", c.Assembler.MaxCopies)
	}
	if c.API.NeighborMinScore < 0 || c.API.NeighborMinScore > 1 {
		return fmt.Errorf("api.neighbor_min_score must be in [0,1], got %v", c.API.NeighborMinScore)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size (%d) must be at least api.default_page_size (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
