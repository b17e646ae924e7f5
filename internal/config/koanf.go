// Deckforge - Card Synergy Graph and Deck Assembly Engine
// Copyright 2026 Deckforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deckforge/deckforge

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/deckforge/config.yaml",
	"/etc/deckforge/config.yml",
}

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces every environment override, e.g.
// DECKFORGE_SERVER_PORT=8080 sets server.port.
const envPrefix = "DECKFORGE_"

// defaultConfig returns the configuration used before any file or
// environment override is applied.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8480,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:                   "/data/deckforge.duckdb",
			MaxMemory:              "1GB",
			Threads:                0,
			PreserveInsertionOrder: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Encoder: EncoderConfig{
			SchemaVersion: 1,
			Tribes:        []string{"Goblin", "Elf", "Zombie", "Human", "Dragon", "Spirit", "Vampire", "Merfolk"},
			Archetypes:    []string{"aggro", "control", "combo", "midrange", "ramp"},
			Colors:        []string{"W", "U", "B", "R", "G"},
		},
		Batch: BatchConfig{
			Size:               500,
			Threshold:          0.55,
			Enabled:            false,
			Interval:           6 * time.Hour,
			CheckpointInterval: 2 * time.Second,
		},
		Assembler: AssemblerConfig{
			TargetSize:     60,
			MinAvgScore:    0.15,
			MaxCopies:      4,
			PerRound:       5,
			CandidateLimit: 40,
			ExcludeLands:   true,
		},
		API: APIConfig{
			DefaultPageSize:  20,
			MaxPageSize:      200,
			NeighborMinScore: 0.30,
			RateLimit:        300,
			CORSOrigins:      []string{"*"},
		},
	}
}

// Load builds the configuration in three layers: struct defaults, then
// an optional YAML file, then DECKFORGE_* environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	processSliceFields(k)

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps DECKFORGE_SECTION_FIELD_NAME to
// section.field_name. The first underscore separates the section; the
// rest of the key is the field.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return key
	}
	return parts[0] + "." + parts[1]
}

// sliceFields lists the config paths that hold string slices. When set
// from the environment they arrive as one comma-separated string and
// must be split before unmarshaling.
var sliceFields = []string{
	"encoder.tribes",
	"encoder.archetypes",
	"encoder.colors",
	"api.cors_origins",
}

func processSliceFields(k *koanf.Koanf) {
	for _, path := range sliceFields {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		_ = k.Set(path, out)
	}
}
