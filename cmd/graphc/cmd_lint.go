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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/graphc/services/graphc/registry"
)

func newLintCmd(a *app) *cobra.Command {
	var library string
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check a node library for problems",
		Long: `Lint loads a node library and reports entries whose fragments do not
parse, whose placeholders disagree with their declared exec outputs,
or that are otherwise inconsistent. It exits non-zero when any finding
is an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadLibrary(library)
			if err != nil {
				return err
			}

			findings := registry.Lint(reg)
			errs := 0
			for _, f := range findings {
				a.printer.Finding(string(f.Severity), f.Entry, f.Message)
				if f.Severity == registry.SeverityError {
					errs++
				}
			}
			if errs > 0 {
				return fmt.Errorf("%d of %d findings are errors", errs, len(findings))
			}
			a.printer.Success(fmt.Sprintf("%d entries, %d warnings", reg.Len(), len(findings)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&library, "library", "l", "", "node library file (required)")
	_ = cmd.MarkFlagRequired("library")
	return cmd
}
