// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphc/pkg/logging"
	"github.com/AleutianAI/graphc/pkg/ux"
	"github.com/AleutianAI/graphc/services/graphc/cache"
	"github.com/AleutianAI/graphc/services/graphc/config"
	"github.com/AleutianAI/graphc/services/graphc/pool"
	"github.com/AleutianAI/graphc/services/graphc/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

// app holds state shared by every subcommand for one invocation.
type app struct {
	configPath string
	logLevel   string
	output     string

	cfg     *config.Config
	logger  *logging.Logger
	printer *ux.Printer

	shutdownTelemetry func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "graphc",
		Short:         "Compile visual node graphs into Go source",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.graphc/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.output, "output", "", "output style: full, minimal, machine (default: detect)")

	root.AddCommand(
		newCompileCmd(a),
		newLabelsCmd(a),
		newInlineCmd(a),
		newLintCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads configuration and initializes logging, telemetry and the
// shared worker pool.
func (a *app) setup(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		Format:  logging.Format(cfg.Log.Format),
		Output:  cmd.ErrOrStderr(),
		File:    cfg.Log.File,
		Service: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger.Slog())

	outLevel := ux.DetectLevel(os.Stdout)
	if a.output != "" {
		outLevel = ux.ParseLevel(a.output)
	}
	a.printer = &ux.Printer{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr(), Level: outLevel}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = cfg.Telemetry.ServiceName
	tcfg.ServiceVersion = version
	tcfg.TraceExporter = cfg.Telemetry.TraceExporter
	tcfg.MetricExporter = cfg.Telemetry.MetricExporter
	if cfg.Telemetry.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	tcfg.Writer = cmd.ErrOrStderr()
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdownTelemetry = shutdown

	if err := pool.InitDefault(ctx, cfg.PoolOptions()); err != nil && !errors.Is(err, pool.ErrPoolAlreadyInitialized) {
		return fmt.Errorf("init worker pool: %w", err)
	}

	logger.Debug("graphc started",
		slog.String("config", path),
		slog.String("command", cmd.Name()),
		slog.String("version", version),
	)
	return nil
}

// close flushes telemetry and closes the log file.
func (a *app) close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	if a.shutdownTelemetry != nil {
		errs = append(errs, a.shutdownTelemetry(ctx))
		a.shutdownTelemetry = nil
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

// openCache returns the configured fragment cache and its closer.
// A disabled cache, or noCache, yields cache.NoCache.
func (a *app) openCache(noCache bool) (cache.FragmentCache, func() error, error) {
	nop := func() error { return nil }
	if noCache || !a.cfg.Cache.Enabled {
		return cache.NoCache{}, nop, nil
	}

	ccfg, err := a.cfg.CacheOptions()
	if err != nil {
		return nil, nop, err
	}
	ccfg.Logger = a.logger.Slog()
	bc, err := cache.Open(ccfg)
	if err != nil {
		return nil, nop, fmt.Errorf("open fragment cache: %w", err)
	}
	return bc, bc.Close, nil
}
