// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphc/services/graphc/cache"
	"github.com/AleutianAI/graphc/services/graphc/compiler"
	"github.com/AleutianAI/graphc/services/graphc/registry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testLibrary = `{
  "version": "1",
  "nodes": [
    {"name": "event.begin", "kind": "event", "exec_outputs": ["Then"], "source": "func begin() {}"},
    {"name": "io.print", "kind": "side_effect", "params": [{"name": "message", "type": "string"}],
     "exec_outputs": ["Then"], "imports": ["fmt"],
     "source": "func print(message string) {\n\tfmt.Println(message)\n}"},
    {"name": "math.add", "kind": "pure", "params": [{"name": "a", "type": "float64"}, {"name": "b", "type": "float64"}],
     "return_type": "float64", "source": "func add(a, b float64) float64 {\n\treturn a + b\n}"}
  ]
}`

const helloGraph = `{
  "name": "hello",
  "nodes": [
    {"id": "start", "type": "event.begin", "outputs": [{"name": "Then", "type": "exec"}]},
    {"id": "say", "type": "io.print",
     "inputs": [{"name": "exec", "type": "exec"}, {"name": "message", "type": "string"}],
     "outputs": [{"name": "Then", "type": "exec"}],
     "properties": {"message": "hi"}}
  ],
  "connections": [
    {"source_node": "start", "source_pin": "Then", "target_node": "say", "target_pin": "exec", "kind": "exec"}
  ]
}`

const cycleGraph = `{
  "name": "loop",
  "nodes": [
    {"id": "a1", "type": "math.add",
     "inputs": [{"name": "a", "type": "number"}, {"name": "b", "type": "number"}],
     "outputs": [{"name": "result", "type": "number"}]},
    {"id": "a2", "type": "math.add",
     "inputs": [{"name": "a", "type": "number"}, {"name": "b", "type": "number"}],
     "outputs": [{"name": "result", "type": "number"}]}
  ],
  "connections": [
    {"source_node": "a1", "source_pin": "result", "target_node": "a2", "target_pin": "a", "kind": "data"},
    {"source_node": "a2", "source_pin": "result", "target_node": "a1", "target_pin": "a", "kind": "data"}
  ]
}`

func testServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	reg, err := registry.ParseLibrary([]byte(testLibrary))
	require.NoError(t, err)

	cfg := Config{Registry: reg}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	s := testServer(t, nil)
	w := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, Version, resp.Version)
	assert.Equal(t, 3, resp.Entries)
	assert.Nil(t, resp.Cache)
}

func TestHealth_ReportsCacheStats(t *testing.T) {
	bc, err := cache.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = bc.Close() })

	s := testServer(t, func(c *Config) { c.Cache = bc })
	w := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode[HealthResponse](t, w).Cache)
}

func TestRequestID(t *testing.T) {
	s := testServer(t, nil)

	t.Run("generated", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/health", nil)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "req-42")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	})
}

func TestLabels(t *testing.T) {
	s := testServer(t, nil)
	src := "func branch(c bool) {\n\tif c {\n\t\texec_output(\"True\")\n\t} else {\n\t\texec_output(\"False\")\n\t}\n}"

	w := do(t, s, http.MethodPost, "/v1/labels", LabelsRequest{Source: src})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"True", "False"}, decode[LabelsResponse](t, w).Labels)

	w = do(t, s, http.MethodPost, "/v1/labels", LabelsRequest{Source: "func f() {}"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{}, decode[LabelsResponse](t, w).Labels)
}

func TestInline(t *testing.T) {
	s := testServer(t, nil)
	src := "func branch(condition bool) {\n\tif condition {\n\t\texec_output(\"True\")\n\t}\n}"

	t.Run("success", func(t *testing.T) {
		w := do(t, s, http.MethodPost, "/v1/inline", InlineRequest{
			Source:   src,
			Branches: map[string]string{"True": `fmt.Println("yes")`},
			Params:   map[string]string{"condition": "x > 5"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[InlineResponse](t, w)
		assert.Equal(t, "if x > 5 {\n\tfmt.Println(\"yes\")\n}", resp.Body)
		assert.Equal(t, 1, resp.Placeholders)
		assert.Equal(t, 1, resp.Replaced)
		assert.Equal(t, 1, resp.Substitutions)
	})

	t.Run("bad replacement", func(t *testing.T) {
		w := do(t, s, http.MethodPost, "/v1/inline", InlineRequest{
			Source:   src,
			Branches: map[string]string{"True": ")("},
		})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "REPLACEMENT_PARSE", decode[ErrorResponse](t, w).Code)
	})

	t.Run("bad fragment", func(t *testing.T) {
		w := do(t, s, http.MethodPost, "/v1/inline", InlineRequest{Source: "func broken( {"})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "PARSE_FAILED", decode[ErrorResponse](t, w).Code)
	})

	t.Run("missing source", func(t *testing.T) {
		w := do(t, s, http.MethodPost, "/v1/inline", `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)
	})
}

func TestCompile(t *testing.T) {
	s := testServer(t, nil)

	w := do(t, s, http.MethodPost, "/v1/compile", `{"graph": `+helloGraph+`, "func_name": "run"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[compiler.Result](t, w)
	assert.Equal(t, "hello", res.Graph)
	assert.Contains(t, res.Source, "func run() {")
	assert.Contains(t, res.Source, `fmt.Println("hi")`)
	assert.Equal(t, []string{"fmt"}, res.Imports)
	assert.Equal(t, 1, res.Stats.Events)
}

func TestCompile_RequestLibrary(t *testing.T) {
	empty := registry.NewMapRegistry()
	s := testServer(t, func(c *Config) { c.Registry = empty })

	w := do(t, s, http.MethodPost, "/v1/compile", `{"graph": `+helloGraph+`}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "UNKNOWN_NODE_TYPE", decode[ErrorResponse](t, w).Code)

	w = do(t, s, http.MethodPost, "/v1/compile", `{"graph": `+helloGraph+`, "library": `+testLibrary+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCompile_Errors(t *testing.T) {
	s := testServer(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "not json", body: `{"graph":`, status: http.StatusBadRequest, code: "INVALID_REQUEST"},
		{name: "missing graph", body: `{}`, status: http.StatusBadRequest, code: "INVALID_REQUEST"},
		{name: "bad graph", body: `{"graph": {"nodes": []}}`, status: http.StatusBadRequest, code: "INVALID_GRAPH"},
		{name: "bad library", body: `{"graph": ` + helloGraph + `, "library": {"nodes": [{"name": "x"}]}}`, status: http.StatusBadRequest, code: "INVALID_LIBRARY"},
		{name: "bad func name", body: `{"graph": ` + helloGraph + `, "func_name": "func"}`, status: http.StatusBadRequest, code: "INVALID_REQUEST"},
		{name: "cycle", body: `{"graph": ` + cycleGraph + `}`, status: http.StatusUnprocessableEntity, code: "CYCLIC_DEPENDENCY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/v1/compile", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Details)
		})
	}
}

func TestRegistry(t *testing.T) {
	s := testServer(t, nil)
	w := do(t, s, http.MethodGet, "/v1/registry", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[RegistryResponse](t, w)
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, "event.begin", resp.Entries[0].Name)
	assert.NotNil(t, resp.Findings)
}

func TestRateLimit(t *testing.T) {
	s := testServer(t, func(c *Config) {
		c.RateLimit = 0.001
		c.Burst = 1
	})

	w := do(t, s, http.MethodGet, "/v1/registry", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/v1/registry", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode[ErrorResponse](t, w).Code)

	// Health is outside the limited group.
	w = do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics(t *testing.T) {
	s := testServer(t, nil)
	w := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s = testServer(t, func(c *Config) {
		c.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("graphc_up 1\n"))
		})
	})
	w = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graphc_up"))
}
