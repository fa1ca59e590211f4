// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("graphc.cache")
	meter  = otel.Meter("graphc.cache")
)

var (
	lookupTotal   metric.Int64Counter
	lookupLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		lookupTotal, err = meter.Int64Counter(
			"graphc_cache_lookups_total",
			metric.WithDescription("Fragment cache lookups by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		lookupLatency, err = meter.Float64Histogram(
			"graphc_cache_lookup_duration_seconds",
			metric.WithDescription("Duration of fragment cache lookups including inlining on miss"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordLookupMetrics(ctx context.Context, result string, d time.Duration) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	lookupTotal.Add(ctx, 1, attrs)
	lookupLatency.Record(ctx, d.Seconds(), attrs)
}

func startLookupSpan(ctx context.Context, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "cache.GetOrInline",
		trace.WithAttributes(attribute.String("cache.key", key[:16])),
	)
}

func setLookupSpanResult(span trace.Span, result string, err error) {
	span.SetAttributes(attribute.String("cache.result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
