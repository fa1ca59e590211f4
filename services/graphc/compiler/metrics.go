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
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/graphc/services/graphc/dataflow"
	"github.com/AleutianAI/graphc/services/graphc/inline"
)

var (
	tracer = otel.Tracer("graphc.compiler")
	meter  = otel.Meter("graphc.compiler")
)

var (
	compileLatency metric.Float64Histogram
	compileTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		compileLatency, err = meter.Float64Histogram(
			"graphc_compile_duration_seconds",
			metric.WithDescription("Duration of program generation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		compileTotal, err = meter.Int64Counter(
			"graphc_compile_total",
			metric.WithDescription("Compilations by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// Outcome classifies a compilation error for metrics and API responses.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dataflow.ErrCyclicDependency):
		return "cyclic_dependency"
	case errors.Is(err, dataflow.ErrNonFiniteConstant):
		return "non_finite_constant"
	case errors.Is(err, ErrUnknownNodeType):
		return "unknown_node_type"
	case errors.Is(err, ErrInvalidOptions):
		return "invalid_options"
	case errors.Is(err, inline.ErrParseFailed), errors.Is(err, inline.ErrBodyExtraction):
		return "parse_failed"
	case errors.Is(err, inline.ErrReplacementParse), errors.Is(err, inline.ErrSubstitutionParse):
		return "replacement_parse"
	case errors.Is(err, ErrFormat):
		return "format_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

func recordCompileMetrics(ctx context.Context, d time.Duration, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", Outcome(err)))
	compileLatency.Record(ctx, d.Seconds(), attrs)
	compileTotal.Add(ctx, 1, attrs)
}

func startCompileSpan(ctx context.Context, s *Session) (context.Context, trace.Span) {
	return tracer.Start(ctx, "compiler.Compile",
		trace.WithAttributes(
			attribute.String("compiler.session_id", s.ID),
			attribute.String("compiler.graph", s.Graph.Name),
			attribute.Int("compiler.nodes", len(s.Graph.Nodes)),
		),
	)
}

func setCompileSpanResult(span trace.Span, res *Result, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Outcome(err))
		return
	}
	span.SetAttributes(
		attribute.Int("compiler.fragments", res.Stats.Fragments),
		attribute.Int("compiler.pure_nodes", res.Stats.PureNodes),
		attribute.Int("compiler.events", res.Stats.Events),
	)
	span.SetStatus(codes.Ok, "")
}
