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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphc/services/graphc/inline"
)

func newLabelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "labels <fragment>",
		Short: "List the exec_output labels of a fragment in source order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			labels, err := inline.ExtractLabels(string(src))
			if err != nil {
				return err
			}
			for _, l := range labels {
				fmt.Fprintln(a.printer.Out, l)
			}
			return nil
		},
	}
}

func newInlineCmd(a *app) *cobra.Command {
	var branches, params []string
	cmd := &cobra.Command{
		Use:   "inline <fragment>",
		Short: "Splice branch code and parameter expressions into a fragment",
		Long: `Inline prints the body of a fragment with each exec_output("Label")
replaced by the code given with --branch Label=code and each parameter
replaced by the expression given with --param name=expr.

Both flags may be repeated. Only the first '=' separates name and value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			b, err := parseAssignments("branch", branches)
			if err != nil {
				return err
			}
			p, err := parseAssignments("param", params)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			body, stats, err := inline.InlineStats(ctx, string(src), b, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.printer.Out, body)
			a.logger.Debug("inlined fragment",
				"placeholders", stats.Placeholders,
				"replaced", stats.Replaced,
				"substitutions", stats.Substitutions,
			)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&branches, "branch", "b", nil, "Label=code replacement (repeatable)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "name=expr substitution (repeatable)")
	return cmd
}

// parseAssignments splits name=value flags. Later duplicates win.
func parseAssignments(flag string, values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("--%s %q: want name=value", flag, v)
		}
		out[name] = value
	}
	return out, nil
}
