// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/graphc/services/graphc/graph"
)

var (
	tracer = otel.Tracer("graphc.dataflow")
	meter  = otel.Meter("graphc.dataflow")
)

var (
	buildLatency metric.Float64Histogram
	buildTotal   metric.Int64Counter
	cycleTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"graphc_dataflow_build_duration_seconds",
			metric.WithDescription("Duration of data flow resolution"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"graphc_dataflow_build_total",
			metric.WithDescription("Data flow resolutions by mode and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cycleTotal, err = meter.Int64Counter(
			"graphc_dataflow_cycles_total",
			metric.WithDescription("Resolutions rejected for cyclic pure dependencies"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordBuildMetrics(ctx context.Context, mode string, d time.Duration, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("success", err == nil),
	)
	buildLatency.Record(ctx, d.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)
	if errors.Is(err, ErrCyclicDependency) {
		cycleTotal.Add(ctx, 1)
	}
}

func startBuildSpan(ctx context.Context, g *graph.Graph, mode string, workers int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dataflow.Build",
		trace.WithAttributes(
			attribute.String("dataflow.graph", g.Name),
			attribute.String("dataflow.mode", mode),
			attribute.Int("dataflow.nodes", len(g.Nodes)),
			attribute.Int("dataflow.connections", len(g.Connections)),
			attribute.Int("dataflow.workers", workers),
		),
	)
}

func setBuildSpanResult(span trace.Span, r *Resolver, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.Int("dataflow.inputs", len(r.sources)),
		attribute.Int("dataflow.pure_nodes", len(r.order)),
	)
	span.SetStatus(codes.Ok, "")
}
