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
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphc/pkg/ux"
	"github.com/AleutianAI/graphc/services/graphc/cache"
	"github.com/AleutianAI/graphc/services/graphc/compiler"
	"github.com/AleutianAI/graphc/services/graphc/graph"
	"github.com/AleutianAI/graphc/services/graphc/registry"
	"github.com/AleutianAI/graphc/services/graphc/watch"
)

type compileFlags struct {
	library  string
	out      string
	pkg      string
	funcName string
	parallel bool
	noCache  bool
	watch    bool
}

func newCompileCmd(a *app) *cobra.Command {
	f := &compileFlags{}
	cmd := &cobra.Command{
		Use:   "compile <graph>",
		Short: "Compile a graph document into a Go program",
		Long: `Compile resolves the graph's data flow, walks its execution chains and
splices each node's fragment into one formatted Go function.

Without --out the program is written to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCompile(cmd, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.library, "library", "l", "", "node library file (required)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the program to this file")
	cmd.Flags().StringVar(&f.pkg, "package", "", "package name of the generated file (default main)")
	cmd.Flags().StringVar(&f.funcName, "func", "", "name of the generated function (default main)")
	cmd.Flags().BoolVar(&f.parallel, "parallel", false, "resolve data flow on the worker pool")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "bypass the fragment cache")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "recompile when the graph or library changes (requires --out)")
	_ = cmd.MarkFlagRequired("library")
	return cmd
}

func (a *app) runCompile(cmd *cobra.Command, graphPath string, f *compileFlags) error {
	if f.watch && f.out == "" {
		return errors.New("--watch requires --out")
	}

	fc, closeCache, err := a.openCache(f.noCache)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			a.logger.Warn("close fragment cache", slog.String("error", err.Error()))
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !f.watch {
		return a.compileOnce(ctx, graphPath, f, fc)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.compileOnce(ctx, graphPath, f, fc); err != nil {
		a.printer.Error(err.Error())
	}

	w, err := watch.New([]string{graphPath, f.library}, func(ctx context.Context, changes []watch.Change) {
		for _, c := range changes {
			a.logger.Debug("file changed", slog.String("path", c.Path), slog.String("op", c.Op.String()))
		}
		if err := a.compileOnce(ctx, graphPath, f, fc); err != nil {
			a.printer.Error(err.Error())
		}
	}, watch.Options{Logger: a.logger.Slog()})
	if err != nil {
		return err
	}

	a.printer.Info(fmt.Sprintf("watching %s and %s (Ctrl-C to stop)", graphPath, f.library))
	return w.Run(ctx)
}

// compileOnce loads both documents fresh, compiles and writes the result.
func (a *app) compileOnce(ctx context.Context, graphPath string, f *compileFlags, fc cache.FragmentCache) error {
	reg, err := registry.LoadLibrary(f.library)
	if err != nil {
		return err
	}
	g, err := graph.Load(graphPath)
	if err != nil {
		return err
	}
	if err := graph.Validate(g); err != nil {
		return fmt.Errorf("validate %s: %w", graphPath, err)
	}

	res, err := compiler.Compile(ctx, g, reg, compiler.Options{
		Parallel: f.parallel,
		Cache:    fc,
		Package:  f.pkg,
		FuncName: f.funcName,
		Logger:   a.logger.Slog(),
	})
	if err != nil {
		return fmt.Errorf("compile %s: %w", graphPath, err)
	}

	if f.out == "" {
		_, err := fmt.Fprint(a.printer.Out, res.Source)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.out), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(f.out, []byte(res.Source), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.out, err)
	}

	a.printer.Success(fmt.Sprintf("compiled %s -> %s", g.Name, f.out))
	a.printer.Summary(g.Name, []ux.Field{
		{Label: "Session", Value: res.SessionID},
		{Label: "Nodes", Value: res.Stats.Nodes},
		{Label: "Pure nodes", Value: res.Stats.PureNodes},
		{Label: "Events", Value: res.Stats.Events},
		{Label: "Fragments", Value: res.Stats.Fragments},
		{Label: "Loop markers", Value: res.Stats.LoopMarkers},
		{Label: "Duration", Value: res.Stats.Duration},
	})
	if bc, ok := fc.(*cache.BadgerCache); ok {
		st := bc.Stats()
		a.logger.Debug("fragment cache",
			slog.Int64("hits", st.Hits),
			slog.Int64("misses", st.Misses),
			slog.Float64("hit_rate", st.HitRate()),
		)
	}
	return nil
}
