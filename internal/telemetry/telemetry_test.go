package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/onemap/onemap/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "onemap-api",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := telemetry.Sampler(telemetry.Config{SampleRatio: tt.ratio}).Description()
		assert.Contains(t, desc, "ParentBased")
		assert.Contains(t, desc, tt.want)
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return sums
}

func TestProviderMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := telemetry.NewProviderMetrics(mp)
	require.NoError(t, err)

	m.RecordRequest("dispatch", "get_map", 120*time.Millisecond, nil)
	m.RecordRequest("dispatch", "get_map", 80*time.Millisecond, errors.New("boom"))
	m.RecordCacheHit("dispatch", "get_trip")
	m.RecordCacheHit("dispatch", "get_trip")
	m.RecordCacheMiss("dispatch", "get_trip")

	sums := collect(t, reader)
	assert.Equal(t, int64(2), sums["provider.request.total"])
	assert.Equal(t, int64(2), sums["provider.request.duration"])
	assert.Equal(t, int64(2), sums["provider.cache.hit"])
	assert.Equal(t, int64(1), sums["provider.cache.miss"])
}

func TestTraceMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := telemetry.NewTraceMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSegments(ctx, "SPEEDING", 3)
	m.RecordSegments(ctx, "IDLING", 0)
	m.RecordDropped(ctx, "AM", 4, 1)
	m.RecordDropped(ctx, "PM", 0, 0)

	sums := collect(t, reader)
	assert.Equal(t, int64(3), sums["trace.segments"])
	assert.Equal(t, int64(4), sums["trace.points.dropped"])
	assert.Equal(t, int64(1), sums["trace.segments.undrawn"])
}
