// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the configuration file at path, or DefaultPath when path
// is empty, creating it with Default values if it does not exist. Values
// missing from the file keep their defaults. GRAPHC_* environment
// variables override the file, then the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		slog.Info("first run, creating config", slog.String("path", path))
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return parse(data, os.LookupEnv)
}

func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

var envVars = []envVar{
	{"GRAPHC_POOL_THREADS", func(c *Config, v string) error { return setInt(&c.Pool.Threads, v) }},
	{"GRAPHC_POOL_STACK_SIZE", func(c *Config, v string) error { return setInt(&c.Pool.StackSize, v) }},
	{"GRAPHC_POOL_NAME_PREFIX", func(c *Config, v string) error { c.Pool.NamePrefix = v; return nil }},
	{"GRAPHC_POOL_BREADTH_FIRST", func(c *Config, v string) error { return setBool(&c.Pool.BreadthFirst, v) }},
	{"GRAPHC_CACHE_ENABLED", func(c *Config, v string) error { return setBool(&c.Cache.Enabled, v) }},
	{"GRAPHC_CACHE_PATH", func(c *Config, v string) error { c.Cache.Path = v; return nil }},
	{"GRAPHC_CACHE_IN_MEMORY", func(c *Config, v string) error { return setBool(&c.Cache.InMemory, v) }},
	{"GRAPHC_CACHE_TTL", func(c *Config, v string) error { return setDuration(&c.Cache.TTL, v) }},
	{"GRAPHC_SERVICE_NAME", func(c *Config, v string) error { c.Telemetry.ServiceName = v; return nil }},
	{"GRAPHC_TRACE_EXPORTER", func(c *Config, v string) error { c.Telemetry.TraceExporter = v; return nil }},
	{"GRAPHC_METRIC_EXPORTER", func(c *Config, v string) error { c.Telemetry.MetricExporter = v; return nil }},
	{"GRAPHC_OTLP_ENDPOINT", func(c *Config, v string) error { c.Telemetry.OTLPEndpoint = v; return nil }},
	{"GRAPHC_SERVER_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"GRAPHC_RATE_LIMIT", func(c *Config, v string) error { return setFloat(&c.Server.RateLimit, v) }},
	{"GRAPHC_BURST", func(c *Config, v string) error { return setInt(&c.Server.Burst, v) }},
	{"GRAPHC_LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"GRAPHC_LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
	{"GRAPHC_LOG_FILE", func(c *Config, v string) error { c.Log.File = v; return nil }},
}

// applyEnv overrides fields from the environment. Empty values are
// ignored.
func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(c, v); err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, ev.name, v, err)
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
