// Copyright 2026 fanjia1024
// OpenTelemetry integration for distributed tracing

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartJobSpan 开始推荐 job 执行 span
func StartJobSpan(ctx context.Context, jobID string, snapshotID string) (context.Context, trace.Span) {
	tracer := otel.Tracer("drive-blocks")
	ctx, span := tracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("snapshot.id", snapshotID),
		),
	)
	return ctx, span
}

// StartPhaseSpan 开始 TRIAD 阶段 span
func StartPhaseSpan(ctx context.Context, jobID string, phase string) (context.Context, trace.Span) {
	tracer := otel.Tracer("drive-blocks")
	ctx, span := tracer.Start(ctx, "phase.execute",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("phase", phase),
		),
	)
	return ctx, span
}

// StartModelSpan 开始模型调用 span
func StartModelSpan(ctx context.Context, role string, modelName string) (context.Context, trace.Span) {
	tracer := otel.Tracer("drive-blocks")
	ctx, span := tracer.Start(ctx, "model.call",
		trace.WithAttributes(
			attribute.String("model.role", role),
			attribute.String("model.name", modelName),
		),
	)
	return ctx, span
}

// StartEnrichSpan 开始富化调用 span
func StartEnrichSpan(ctx context.Context, kind string, venueID string) (context.Context, trace.Span) {
	tracer := otel.Tracer("drive-blocks")
	ctx, span := tracer.Start(ctx, "enrich.call",
		trace.WithAttributes(
			attribute.String("enrich.kind", kind),
			attribute.String("venue.id", venueID),
		),
	)
	return ctx, span
}
