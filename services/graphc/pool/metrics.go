// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pool

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
	tracer = otel.Tracer("graphc.pool")
	meter  = otel.Meter("graphc.pool")
)

var (
	mapLatency     metric.Float64Histogram
	mapItems       metric.Int64Counter
	workersStarted metric.Int64Counter
	taskPanics     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		mapLatency, err = meter.Float64Histogram(
			"graphc_pool_map_duration_seconds",
			metric.WithDescription("Duration of a pool Map call"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mapItems, err = meter.Int64Counter(
			"graphc_pool_map_items_total",
			metric.WithDescription("Indices dispatched through Map"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		workersStarted, err = meter.Int64Counter(
			"graphc_pool_workers_started_total",
			metric.WithDescription("Worker goroutines started"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		taskPanics, err = meter.Int64Counter(
			"graphc_pool_task_panics_total",
			metric.WithDescription("Recovered task panics"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func poolAttrs(p *Pool) []attribute.KeyValue {
	mode := "chunked"
	switch {
	case p.inline:
		mode = "inline"
	case p.cfg.BreadthFirst:
		mode = "breadth_first"
	}
	return []attribute.KeyValue{
		attribute.String("pool", p.cfg.NamePrefix),
		attribute.String("mode", mode),
	}
}

func recordMapMetrics(ctx context.Context, p *Pool, n int, d time.Duration, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := append(poolAttrs(p), attribute.Bool("success", err == nil))
	mapLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	mapItems.Add(ctx, int64(n), metric.WithAttributes(poolAttrs(p)...))
}

func recordWorkersStarted(name string, n int) {
	if initMetrics() != nil {
		return
	}
	workersStarted.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("pool", name)))
}

func recordPanic(name string) {
	if initMetrics() != nil {
		return
	}
	taskPanics.Add(context.Background(), 1, metric.WithAttributes(attribute.String("pool", name)))
}

func startMapSpan(ctx context.Context, p *Pool, n int) (context.Context, trace.Span) {
	attrs := append(poolAttrs(p),
		attribute.Int("pool.items", n),
		attribute.Int("pool.workers", p.cfg.Threads),
	)
	return tracer.Start(ctx, "pool.Map", trace.WithAttributes(attrs...))
}

func setMapSpanResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
