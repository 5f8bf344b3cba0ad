/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package telemetry configures OpenTelemetry tracing for the broker.
//
// Every external-collaborator call is a suspension point: policy fetch,
// group resolution, signing, mutator apply, notification send. Each gets
// its own span so a slow or failing collaborator is visible independent
// of the others in a fan-out.
//
// Custom span attributes use the `jitbroker.` prefix.
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
	tracerName = "jitbroker.io/core"
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
		// No-op: tracing disabled
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(), // TLS configurable via env (OTEL_EXPORTER_OTLP_INSECURE)
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("jitbroker"),
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

// StartActivationSpan creates the parent span for one activate/approve call.
func StartActivationSpan(ctx context.Context, activationType string, roleCount int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "jitbroker.activate",
		trace.WithAttributes(
			attribute.String("jitbroker.activation_type", activationType),
			attribute.Int("jitbroker.role_count", roleCount),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndActivationSpan enriches the activation span with its terminal outcome.
func EndActivationSpan(span trace.Span, outcome string) {
	span.SetAttributes(attribute.String("jitbroker.outcome", outcome))
	span.End()
}

// StartEntitlementFetchSpan creates a child span around a repository
// fan-out (policy fetch + group lookup).
func StartEntitlementFetchSpan(ctx context.Context, backend, project string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "jitbroker.entitlement_fetch",
		trace.WithAttributes(
			attribute.String("jitbroker.backend", backend),
			attribute.String("jitbroker.project", project),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartMutatorApplySpan creates a child span for one policy mutator call.
func StartMutatorApplySpan(ctx context.Context, project, role string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "jitbroker.mutator_apply",
		trace.WithAttributes(
			attribute.String("jitbroker.project", project),
			attribute.String("jitbroker.role", role),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartSignSpan creates a child span for a ProposalToken sign/verify call.
func StartSignSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "jitbroker.token."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartNotifySpan creates a child span for a notification sink call.
func StartNotifySpan(ctx context.Context, recipientCount int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "jitbroker.notify",
		trace.WithAttributes(
			attribute.Int("jitbroker.recipient_count", recipientCount),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
