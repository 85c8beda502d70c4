package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vctfence/scrapbee/pkg/observability"
)

func TestInstrumented_NotFoundIsNotAnError(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	p, err := observability.NewWithMeter(noop.NewTracerProvider().Tracer("test"), mp.Meter("test"))
	require.NoError(t, err)

	mem := NewMemoryBackend()
	mem.Fail = func(op, _ string) error {
		if op == "delete" {
			return transient(op, "x", assert.AnError)
		}
		return nil
	}
	b := Instrumented(mem, p, "memory")
	ctx := context.Background()

	_, err = b.Download(ctx, "missing")
	assert.True(t, IsNotFound(err))
	require.NoError(t, b.Upload(ctx, "a", []byte("1"), true))
	assert.Error(t, b.Delete(ctx, "a"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(3), totals["scrapbee.operations.total"])
	assert.Equal(t, int64(1), totals["scrapbee.errors.total"])
}
