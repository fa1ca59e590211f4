// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inline

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
)

var (
	tracer = otel.Tracer("graphc.inline")
	meter  = otel.Meter("graphc.inline")
)

var (
	inlineLatency   metric.Float64Histogram
	inlineTotal     metric.Int64Counter
	replacedTotal   metric.Int64Counter
	substituteTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		inlineLatency, err = meter.Float64Histogram(
			"graphc_inline_duration_seconds",
			metric.WithDescription("Duration of fragment inlining"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		inlineTotal, err = meter.Int64Counter(
			"graphc_inline_total",
			metric.WithDescription("Fragment inline calls by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		replacedTotal, err = meter.Int64Counter(
			"graphc_inline_placeholders_replaced_total",
			metric.WithDescription("exec_output placeholders replaced"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		substituteTotal, err = meter.Int64Counter(
			"graphc_inline_substitutions_total",
			metric.WithDescription("Parameter identifiers substituted"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrParseFailed):
		return "parse_failed"
	case errors.Is(err, ErrBodyExtraction):
		return "extraction_failed"
	case errors.Is(err, ErrReplacementParse), errors.Is(err, ErrSubstitutionParse):
		return "replacement_failed"
	default:
		return "error"
	}
}

func recordInlineMetrics(ctx context.Context, d time.Duration, stats Stats, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome(err)))
	inlineLatency.Record(ctx, d.Seconds(), attrs)
	inlineTotal.Add(ctx, 1, attrs)
	replacedTotal.Add(ctx, int64(stats.Replaced))
	substituteTotal.Add(ctx, int64(stats.Substitutions))
}

func startInlineSpan(ctx context.Context, sourceLen, branches, params int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "inline.Inline",
		trace.WithAttributes(
			attribute.Int("inline.source_bytes", sourceLen),
			attribute.Int("inline.branches", branches),
			attribute.Int("inline.params", params),
		),
	)
}

func setInlineSpanResult(span trace.Span, stats Stats, err error) {
	span.SetAttributes(
		attribute.Int("inline.placeholders", stats.Placeholders),
		attribute.Int("inline.replaced", stats.Replaced),
		attribute.Int("inline.substitutions", stats.Substitutions),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		return
	}
	span.SetStatus(codes.Ok, "")
}
