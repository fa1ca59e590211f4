// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the compiler over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/graphc/services/graphc/cache"
	"github.com/AleutianAI/graphc/services/graphc/pool"
	"github.com/AleutianAI/graphc/services/graphc/registry"
)

// Version is reported by /health.
const Version = "0.1.0"

// Config configures a Server.
type Config struct {
	// Registry is the default node library. Required.
	Registry registry.Registry

	// Cache memoizes inlining. Nil means cache.NoCache.
	Cache cache.FragmentCache

	// Executor runs parallel resolver builds. Nil means pool.Default().
	Executor pool.Executor

	// RateLimit is requests per second across all clients; zero disables.
	RateLimit float64
	Burst     int

	// ServiceName names the otelgin spans.
	ServiceName string

	// Metrics serves /metrics. Nil disables the route.
	Metrics http.Handler

	Logger *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	engine *gin.Engine
	logger *slog.Logger
}

// New builds the gin engine and registers every route.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("server: registry is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NoCache{}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "graphc"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(cfg.ServiceName))
	engine.Use(requestID())
	engine.Use(requestLogger(logger))

	s := &Server{cfg: cfg, engine: engine, logger: logger}
	s.registerRoutes()
	return s, nil
}

// registerRoutes wires the API.
//
//	GET  /health       - Liveness and cache statistics
//	GET  /metrics      - Prometheus exposition, when configured
//	POST /v1/compile   - Graph (+ optional library) to Go program
//	POST /v1/inline    - Fragment, branches and params to body
//	POST /v1/labels    - Fragment to placeholder labels
//	GET  /v1/registry  - Loaded node types and lint findings
func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	if s.cfg.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.cfg.Metrics))
	}

	v1 := s.engine.Group("/v1")
	v1.Use(rateLimit(s.cfg.RateLimit, s.cfg.Burst))
	{
		v1.POST("/compile", s.handleCompile)
		v1.POST("/inline", s.handleInline)
		v1.POST("/labels", s.handleLabels)
		v1.GET("/registry", s.handleRegistry)
	}
}

// Handler returns the engine for use in tests or another server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("graphc server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("graphc server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
