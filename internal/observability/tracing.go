package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/scalesync/server/observability"

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SyncMetrics holds sync pipeline metrics. A nil *SyncMetrics records
// nothing, so wiring it up stays optional.
type SyncMetrics struct {
	attempts metric.Int64Counter
	uploads  metric.Int64Counter
	skips    metric.Int64Counter
}

// NewSyncMetrics creates sync metrics instruments
func NewSyncMetrics() (*SyncMetrics, error) {
	meter := otel.Meter(instrumentationName)

	attempts, err := meter.Int64Counter(
		"sync.attempts",
		metric.WithDescription("Total number of sync attempts"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, err
	}

	uploads, err := meter.Int64Counter(
		"sync.uploads",
		metric.WithDescription("Total number of payload uploads"),
		metric.WithUnit("{uploads}"),
	)
	if err != nil {
		return nil, err
	}

	skips, err := meter.Int64Counter(
		"sync.skips",
		metric.WithDescription("Sync attempts skipped because the measurement was unchanged"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		attempts: attempts,
		uploads:  uploads,
		skips:    skips,
	}, nil
}

// RecordAttempt counts one terminal sync attempt.
func (m *SyncMetrics) RecordAttempt(ctx context.Context, trigger, status string) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("status", status),
	))
}

// RecordUpload counts one successful payload upload.
func (m *SyncMetrics) RecordUpload(ctx context.Context) {
	if m == nil {
		return
	}
	m.uploads.Add(ctx, 1)
}

// RecordSkip counts one attempt that found no new measurement.
func (m *SyncMetrics) RecordSkip(ctx context.Context) {
	if m == nil {
		return
	}
	m.skips.Add(ctx, 1)
}
