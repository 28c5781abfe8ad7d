package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/labstock/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newManualMeter(t *testing.T) (sdkmetric.Reader, *sdkmetric.MeterProvider) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return reader, mp
}

func findMetric(t *testing.T, reader sdkmetric.Reader, name string) *metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:     false,
		ServiceName: "labstock-backend",
	}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())

	// Disabled provider still hands out usable no-op meters
	meter := mp.Meter("ledger")
	counter, err := telemetry.NewCounter(meter, "consumable_usage_total", "Usage records written", "{record}")
	require.NoError(t, err)
	counter.Inc(ctx)

	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestCounter(t *testing.T) {
	ctx := context.Background()
	reader, mp := newManualMeter(t)
	meter := mp.Meter("ledger")

	counter, err := telemetry.NewCounter(meter,
		"equipment_borrow_total", "Borrow records opened", "{record}")
	require.NoError(t, err)

	counter.Inc(ctx, telemetry.AttrBorrowerType.String("student"))
	counter.Inc(ctx, telemetry.AttrBorrowerType.String("student"))
	counter.Add(ctx, 5, telemetry.AttrBorrowerType.String("staff"))

	m := findMetric(t, reader, "equipment_borrow_total")
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.True(t, sum.IsMonotonic)
	require.Len(t, sum.DataPoints, 2)

	byBorrower := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value("borrower_type")
		byBorrower[v.AsString()] = dp.Value
	}
	assert.Equal(t, int64(2), byBorrower["student"])
	assert.Equal(t, int64(5), byBorrower["staff"])
}

func TestHistogram_BucketBoundaries(t *testing.T) {
	ctx := context.Background()
	reader, mp := newManualMeter(t)
	meter := mp.Meter("db")

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Query latency",
		Unit:        "s",
		Boundaries:  telemetry.DBDurationBuckets,
	})
	require.NoError(t, err)

	hist.Record(ctx, 0.002, telemetry.AttrDBOperation.String("SELECT"))
	hist.Record(ctx, 0.03, telemetry.AttrDBOperation.String("SELECT"))
	hist.Record(ctx, 0.4, telemetry.AttrDBOperation.String("SELECT"))

	m := findMetric(t, reader, "db_query_duration_seconds")
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)

	dp := data.DataPoints[0]
	assert.Equal(t, uint64(3), dp.Count)
	assert.Equal(t, telemetry.DBDurationBuckets, dp.Bounds)
	assert.InDelta(t, 0.432, dp.Sum, 1e-9)
}

func TestHistogram_RecordDuration(t *testing.T) {
	ctx := context.Background()
	reader, mp := newManualMeter(t)
	meter := mp.Meter("http")

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "request_duration_seconds",
		Description: "Request latency",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)

	hist.RecordDuration(ctx, 250*time.Millisecond)

	m := findMetric(t, reader, "request_duration_seconds")
	require.NotNil(t, m)
	data := m.Data.(metricdata.Histogram[float64])
	require.Len(t, data.DataPoints, 1)
	assert.InDelta(t, 0.25, data.DataPoints[0].Sum, 1e-9)
}

func TestGauge(t *testing.T) {
	ctx := context.Background()
	reader, mp := newManualMeter(t)
	meter := mp.Meter("ledger")

	gauge, err := telemetry.NewGauge(meter,
		"consumable_low_stock_items", "Items at or below threshold", "{item}")
	require.NoError(t, err)

	gauge.Record(ctx, 7)
	gauge.Record(ctx, 3) // last write wins

	m := findMetric(t, reader, "consumable_low_stock_items")
	require.NotNil(t, m)

	data, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, int64(3), data.DataPoints[0].Value)
}

func TestAttributeKeys(t *testing.T) {
	assert.Equal(t, "actor_role", string(telemetry.AttrActorRole))
	assert.Equal(t, "http.route", string(telemetry.AttrHTTPRoute))
	assert.Equal(t, "db.operation", string(telemetry.AttrDBOperation))
	assert.Equal(t, "borrower_type", string(telemetry.AttrBorrowerType))
	assert.Equal(t, "return_kind", string(telemetry.AttrReturnKind))
	assert.Equal(t, "task_kind", string(telemetry.AttrTaskKind))
}
