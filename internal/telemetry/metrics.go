package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/onemap/onemap/internal/telemetry"

// ProviderMetrics records upstream provider calls and cache use.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewProviderMetrics creates provider instruments on mp, or the global
// meter provider when mp is nil.
func NewProviderMetrics(mp metric.MeterProvider) (*ProviderMetrics, error) {
	meter := meterFrom(mp)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

// RecordRequest records one provider call.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := providerAttrs(provider, operation)
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Detached from the request context so cancellation never drops a sample.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit for a provider.
func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	m.cacheHits.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

// RecordCacheMiss records a cache miss for a provider.
func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	m.cacheMisses.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
}

func providerAttrs(provider, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
}

// TraceMetrics records segmentation outcomes.
type TraceMetrics struct {
	segments      metric.Int64Counter
	droppedPoints metric.Int64Counter
	undrawn       metric.Int64Counter
}

// NewTraceMetrics creates segmentation instruments on mp, or the global
// meter provider when mp is nil.
func NewTraceMetrics(mp metric.MeterProvider) (*TraceMetrics, error) {
	meter := meterFrom(mp)

	segments, err := meter.Int64Counter(
		"trace.segments",
		metric.WithDescription("Exception segments emitted, by category"),
		metric.WithUnit("{segment}"),
	)
	if err != nil {
		return nil, err
	}

	droppedPoints, err := meter.Int64Counter(
		"trace.points.dropped",
		metric.WithDescription("Pings skipped for invalid coordinates"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return nil, err
	}

	undrawn, err := meter.Int64Counter(
		"trace.segments.undrawn",
		metric.WithDescription("Segments the render policy refused to draw"),
		metric.WithUnit("{segment}"),
	)
	if err != nil {
		return nil, err
	}

	return &TraceMetrics{
		segments:      segments,
		droppedPoints: droppedPoints,
		undrawn:       undrawn,
	}, nil
}

// RecordSegments adds n segments of category.
func (m *TraceMetrics) RecordSegments(ctx context.Context, category string, n int) {
	if n == 0 {
		return
	}
	m.segments.Add(ctx, int64(n), metric.WithAttributes(attribute.String("trace.category", category)))
}

// RecordDropped adds invalid points and undrawn segments for one period.
func (m *TraceMetrics) RecordDropped(ctx context.Context, period string, points, segments int) {
	attrs := metric.WithAttributes(attribute.String("trace.period", period))
	if points > 0 {
		m.droppedPoints.Add(ctx, int64(points), attrs)
	}
	if segments > 0 {
		m.undrawn.Add(ctx, int64(segments), attrs)
	}
}

func meterFrom(mp metric.MeterProvider) metric.Meter {
	if mp == nil {
		return otel.Meter(meterName)
	}
	return mp.Meter(meterName)
}
