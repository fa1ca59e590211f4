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
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphc/services/graphc/pool"
	"github.com/AleutianAI/graphc/services/graphc/registry"
	"github.com/AleutianAI/graphc/services/graphc/server"
	"github.com/AleutianAI/graphc/services/graphc/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		library string
		addr    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiler over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadLibrary(library)
			if err != nil {
				return err
			}
			fc, closeCache, err := a.openCache(false)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeCache(); err != nil {
					a.logger.Warn("close fragment cache", slog.String("error", err.Error()))
				}
			}()

			srv, err := server.New(server.Config{
				Registry:    reg,
				Cache:       fc,
				Executor:    pool.Default(),
				RateLimit:   a.cfg.Server.RateLimit,
				Burst:       a.cfg.Server.Burst,
				ServiceName: a.cfg.Telemetry.ServiceName,
				Metrics:     telemetry.MetricsHandler(),
				Logger:      a.logger.Slog(),
			})
			if err != nil {
				return err
			}

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("serving node library",
				slog.String("library", library),
				slog.Int("entries", reg.Len()),
			)
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVarP(&library, "library", "l", "", "node library file (required)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	_ = cmd.MarkFlagRequired("library")
	return cmd
}
