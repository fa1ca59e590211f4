// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads graphc settings from ~/.graphc/config.yaml with
// GRAPHC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/graphc/services/graphc/cache"
	"github.com/AleutianAI/graphc/services/graphc/pool"
)

// ErrInvalidConfig indicates a value that fails validation.
var ErrInvalidConfig = errors.New("invalid graphc config")

// Config is the full graphc configuration.
type Config struct {
	Pool      PoolConfig      `yaml:"pool"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// PoolConfig sizes the shared worker pool. Zero values take the pool
// defaults.
type PoolConfig struct {
	Threads      int    `yaml:"threads" validate:"gte=0"`
	StackSize    int    `yaml:"stack_size" validate:"gte=0"`
	NamePrefix   string `yaml:"name_prefix"`
	BreadthFirst bool   `yaml:"breadth_first"`
}

// CacheConfig controls the fragment cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Path     string        `yaml:"path"`
	InMemory bool          `yaml:"in_memory"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
}

// TelemetryConfig selects the trace and metric exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`

	// RateLimit is requests per second across all clients. Zero disables
	// limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto text json"`
	File   string `yaml:"file"`
}

// Default returns the configuration written on first run.
func Default() Config {
	return Config{
		Pool: PoolConfig{
			NamePrefix: pool.DefaultNamePrefix,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "graphc",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
		Server: ServerConfig{
			Addr:      ":8088",
			RateLimit: 50,
			Burst:     100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// PoolOptions converts the pool section.
func (c *Config) PoolOptions() pool.Config {
	return pool.Config{
		Threads:      c.Pool.Threads,
		StackSize:    c.Pool.StackSize,
		NamePrefix:   c.Pool.NamePrefix,
		BreadthFirst: c.Pool.BreadthFirst,
	}
}

// CacheOptions converts the cache section. An empty path on disk means
// ~/.graphc/cache.
func (c *Config) CacheOptions() (cache.Config, error) {
	cfg := cache.DefaultConfig()
	if c.Cache.InMemory {
		cfg = cache.InMemoryConfig()
	}
	cfg.TTL = c.Cache.TTL
	cfg.Path = c.Cache.Path
	if !cfg.InMemory && cfg.Path == "" {
		dir, err := Dir()
		if err != nil {
			return cache.Config{}, err
		}
		cfg.Path = filepath.Join(dir, "cache")
	}
	return cfg, nil
}

// Dir returns ~/.graphc.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".graphc"), nil
}

// DefaultPath returns ~/.graphc/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
