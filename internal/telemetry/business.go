package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/cipher-ai-go/internal/models"
)

// BusinessTracer provides spans for scanner and report operations.
type BusinessTracer struct {
	tracer trace.Tracer
}

// ScanMetrics summarises one scanner pass
type ScanMetrics struct {
	Symbols  int
	Reports  int
	Failed   int
	Duration time.Duration
}

// NewBusinessTracer creates a BusinessTracer on the global tracer provider.
func NewBusinessTracer() *BusinessTracer {
	return NewBusinessTracerWithProvider(otel.GetTracerProvider())
}

// NewBusinessTracerWithProvider creates a BusinessTracer on tp.
func NewBusinessTracerWithProvider(tp trace.TracerProvider) *BusinessTracer {
	return &BusinessTracer{tracer: tp.Tracer(ServiceName + "/business")}
}

// TraceScan starts a span covering one pass over the scan universe.
func (bt *BusinessTracer) TraceScan(ctx context.Context, symbols, timeframes []string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "market_scan", trace.WithAttributes(
		attribute.StringSlice("scan.symbols", symbols),
		attribute.StringSlice("scan.timeframes", timeframes),
	))
}

// RecordScanMetrics adds the pass outcome to a scan span.
func (bt *BusinessTracer) RecordScanMetrics(span trace.Span, metrics ScanMetrics) {
	span.SetAttributes(
		attribute.Int("scan.symbol_count", metrics.Symbols),
		attribute.Int("scan.reports", metrics.Reports),
		attribute.Int("scan.failed", metrics.Failed),
		attribute.Int64("scan.duration_ms", metrics.Duration.Milliseconds()),
	)
	if metrics.Failed > 0 {
		span.SetStatus(codes.Error, "some symbols failed")
	}
}

// TraceReport starts a span for building and publishing one symbol report.
func (bt *BusinessTracer) TraceReport(ctx context.Context, symbol string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "signal_report", trace.WithAttributes(
		attribute.String("symbol", symbol),
	))
}

// RecordReport adds the confluence verdict to a report span.
func (bt *BusinessTracer) RecordReport(span trace.Span, report models.SignalReport) {
	conf := report.Confluence
	span.SetAttributes(
		attribute.String("report.id", report.ID),
		attribute.String("report.signal", string(conf.Signal)),
		attribute.String("report.direction", string(conf.Direction)),
		attribute.Int("report.verdict_score", conf.VerdictScore),
		attribute.String("report.confidence", conf.Confidence.String()),
		attribute.Int("report.aligned", conf.AlignmentCount),
		attribute.Int("report.timeframes", conf.TotalTimeframes),
	)
}

// RecordError marks span as failed.
func (bt *BusinessTracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
