/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package telemetry configures OpenTelemetry tracing for the planning service.
//
// Custom span attributes use the `clinkerplan.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "clinkerplan.io/planner"
)

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider initialises the OTel trace provider with an OTLP gRPC exporter.
// If endpoint is empty, tracing is disabled (noop provider is used).
// Returns a shutdown function that must be called on application exit.
func InitTraceProvider(ctx context.Context, endpoint string, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(), // always plaintext gRPC; TLS is not configured here
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("clinkerplan-planner"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// --- Span helpers ---

// StartBatchValidateSpan creates the parent span for a validation sweep over a batch.
func StartBatchValidateSpan(ctx context.Context, batchID, sourceType string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "batch.validate",
		trace.WithAttributes(
			attribute.String("clinkerplan.batch_id", batchID),
			attribute.String("clinkerplan.source_type", sourceType),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndBatchValidateSpan enriches the validate span with error counts.
func EndBatchValidateSpan(span trace.Span, errorCount, warningCount int) {
	span.SetAttributes(
		attribute.Int("clinkerplan.error_count", errorCount),
		attribute.Int("clinkerplan.warning_count", warningCount),
	)
	span.End()
}

// StartBatchPromoteSpan creates a span for the atomic promotion of a batch into
// the canonical store.
func StartBatchPromoteSpan(ctx context.Context, batchID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "batch.promote",
		trace.WithAttributes(
			attribute.String("clinkerplan.batch_id", batchID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndBatchPromoteSpan enriches the promote span with the commit outcome.
func EndBatchPromoteSpan(span trace.Span, committed bool, rowsWritten int) {
	span.SetAttributes(
		attribute.Bool("clinkerplan.committed", committed),
		attribute.Int("clinkerplan.rows_written", rowsWritten),
	)
	span.End()
}

// StartModelBuildSpan creates a span for MILP model construction from canonical
// and routing inputs.
func StartModelBuildSpan(ctx context.Context, scenarioID string, periods int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "model.build",
		trace.WithAttributes(
			attribute.String("clinkerplan.scenario_id", scenarioID),
			attribute.Int("clinkerplan.periods", periods),
		),
	)
}

// EndModelBuildSpan enriches the model build span with problem size.
func EndModelBuildSpan(span trace.Span, variables, constraints int) {
	span.SetAttributes(
		attribute.Int("clinkerplan.variables", variables),
		attribute.Int("clinkerplan.constraints", constraints),
	)
	span.End()
}

// StartSolverSolveSpan creates a span for one solver tier's solve attempt.
func StartSolverSolveSpan(ctx context.Context, tier string, timeLimitSeconds int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "solver.solve",
		trace.WithAttributes(
			attribute.String("clinkerplan.solver_tier", tier),
			attribute.Int("clinkerplan.time_limit_seconds", timeLimitSeconds),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSolverSolveSpan enriches the solve span with the solver's outcome.
func EndSolverSolveSpan(span trace.Span, status string, objectiveValue, mipGap float64) {
	span.SetAttributes(
		attribute.String("clinkerplan.solver_status", status),
		attribute.Float64("clinkerplan.objective_value", objectiveValue),
		attribute.Float64("clinkerplan.mip_gap", mipGap),
	)
	span.End()
}

// StartJobExecuteSpan creates the parent span for one job queue execution.
func StartJobExecuteSpan(ctx context.Context, jobID, jobType string, attempt int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.String("clinkerplan.job_id", jobID),
			attribute.String("clinkerplan.job_type", jobType),
			attribute.Int("clinkerplan.attempt", attempt),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndJobExecuteSpan enriches the job span with its terminal status.
func EndJobExecuteSpan(span trace.Span, status string) {
	span.SetAttributes(attribute.String("clinkerplan.job_status", status))
	span.End()
}

// StartKPIMaterializeSpan creates a span for KPI aggregation over a scenario/period.
func StartKPIMaterializeSpan(ctx context.Context, scenarioID, scope string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "kpi.materialize",
		trace.WithAttributes(
			attribute.String("clinkerplan.scenario_id", scenarioID),
			attribute.String("clinkerplan.scope", scope),
		),
	)
}

// EndKPIMaterializeSpan enriches the materialize span with the number of rows upserted.
func EndKPIMaterializeSpan(span trace.Span, rowsUpserted int) {
	span.SetAttributes(attribute.Int("clinkerplan.rows_upserted", rowsUpserted))
	span.End()
}
