// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compiler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/graphc/services/graphc/graph"
	"github.com/AleutianAI/graphc/services/graphc/registry"
)

// Job is one graph to compile.
type Job struct {
	Graph    *graph.Graph
	Registry registry.Registry
	Options  Options
}

// CompileAll compiles jobs concurrently, at most limit at a time.
//
// Description:
//
//	Results are returned in job order. The first failure cancels the
//	remaining jobs and is returned wrapped with the graph name. A limit
//	of zero or less means no limit.
//
// Inputs:
//
//	ctx - Cancellation for the whole batch.
//	jobs - Graphs to compile. Graphs must not be shared with writers.
//	limit - Maximum concurrent compilations.
//
// Outputs:
//
//	[]*Result - One result per job, in job order.
//	error - The first compilation failure.
func CompileAll(ctx context.Context, jobs []Job, limit int) ([]*Result, error) {
	results := make([]*Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := Compile(gctx, job.Graph, job.Registry, job.Options)
			if err != nil {
				return fmt.Errorf("compile %s: %w", job.Graph.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
