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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoad_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "config file should be created")

	want := Default()
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.Cache.TTL, cfg.Cache.TTL)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("GRAPHC_SERVER_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestParse_PartialFileKeepsDefaults(t *testing.T) {
	data := []byte(`
pool:
  threads: 3
  breadth_first: true
cache:
  ttl: 90m
log:
  level: debug
`)
	cfg, err := parse(data, noEnv)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pool.Threads)
	assert.True(t, cfg.Pool.BreadthFirst)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.Equal(t, "graphc", cfg.Telemetry.ServiceName)
}

func TestParse_Env(t *testing.T) {
	cfg, err := parse([]byte("{}"), envMap(map[string]string{
		"GRAPHC_POOL_THREADS":       "8",
		"GRAPHC_POOL_BREADTH_FIRST": "true",
		"GRAPHC_CACHE_IN_MEMORY":    "1",
		"GRAPHC_CACHE_TTL":          "5m",
		"GRAPHC_TRACE_EXPORTER":     "otlp",
		"GRAPHC_OTLP_ENDPOINT":      "localhost:4317",
		"GRAPHC_RATE_LIMIT":         "2.5",
		"GRAPHC_LOG_FORMAT":         "json",
		"GRAPHC_LOG_LEVEL":          "",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Pool.Threads)
	assert.True(t, cfg.Pool.BreadthFirst)
	assert.True(t, cfg.Cache.InMemory)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "otlp", cfg.Telemetry.TraceExporter)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.InDelta(t, 2.5, cfg.Server.RateLimit, 1e-9)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "empty values are ignored")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		env  map[string]string
	}{
		{name: "bad yaml", data: "pool: [1, 2"},
		{name: "negative threads", data: "pool:\n  threads: -1"},
		{name: "unknown trace exporter", data: "telemetry:\n  trace_exporter: jaeger"},
		{name: "otlp without endpoint", data: "telemetry:\n  trace_exporter: otlp"},
		{name: "bad log level", data: "log:\n  level: loud"},
		{name: "empty addr", data: "server:\n  addr: \"\""},
		{name: "bad env int", data: "{}", env: map[string]string{"GRAPHC_POOL_THREADS": "many"}},
		{name: "bad env bool", data: "{}", env: map[string]string{"GRAPHC_CACHE_ENABLED": "sometimes"}},
		{name: "bad env duration", data: "{}", env: map[string]string{"GRAPHC_CACHE_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse([]byte(tt.data), envMap(tt.env))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Pool.Threads = 2
	cfg.Pool.BreadthFirst = true

	p := cfg.PoolOptions()
	assert.Equal(t, 2, p.Threads)
	assert.True(t, p.BreadthFirst)
	assert.Equal(t, "graphc-worker", p.NamePrefix)

	cfg.Cache.InMemory = true
	c, err := cfg.CacheOptions()
	require.NoError(t, err)
	assert.True(t, c.InMemory)
	assert.Equal(t, 24*time.Hour, c.TTL)

	cfg.Cache.InMemory = false
	cfg.Cache.Path = "/tmp/graphc-cache"
	c, err = cfg.CacheOptions()
	require.NoError(t, err)
	assert.False(t, c.InMemory)
	assert.Equal(t, "/tmp/graphc-cache", c.Path)
}
