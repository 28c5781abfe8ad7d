package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newMetricsTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
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

func attrValue(set attribute.Set, key attribute.Key) (attribute.Value, bool) {
	return set.Value(key)
}

func TestHTTPMetricsWithMeter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newLedgerRouter := func(mw gin.HandlerFunc) *gin.Engine {
		router := gin.New()
		router.Use(mw)
		router.GET("/api/v1/consumables/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
		})
		router.POST("/api/v1/equipment/:id/borrow", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"reference_code": "BRW-01HX"})
		})
		return router
	}

	t.Run("counts requests with method, route and status attributes", func(t *testing.T) {
		mp, reader := newMetricsTestMeter(t)
		router := newLedgerRouter(HTTPMetricsWithMeter(mp.Meter("test"), true))

		for range 3 {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/consumables/0d9f", nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		}

		m := collectMetric(t, reader, "http_server_request_total")
		require.NotNil(t, m, "request counter must be registered")

		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1, "one route, one datapoint")

		dp := sum.DataPoints[0]
		assert.Equal(t, int64(3), dp.Value)

		method, _ := attrValue(dp.Attributes, "http.method")
		assert.Equal(t, "GET", method.AsString())
		route, _ := attrValue(dp.Attributes, "http.route")
		assert.Equal(t, "/api/v1/consumables/:id", route.AsString())
		status, _ := attrValue(dp.Attributes, "http.status_code")
		assert.Equal(t, int64(http.StatusOK), status.AsInt64())
	})

	t.Run("labels the counter with the actor role when present", func(t *testing.T) {
		mp, reader := newMetricsTestMeter(t)

		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set(ActorRoleKey, "lab_manager")
			c.Next()
		})
		router.Use(HTTPMetricsWithMeter(mp.Meter("test"), true))
		router.POST("/api/v1/consumables", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"name": "Nitrile gloves"})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/consumables", strings.NewReader(`{"name":"Nitrile gloves"}`))
		router.ServeHTTP(w, req)

		m := collectMetric(t, reader, "http_server_request_total")
		require.NotNil(t, m)
		sum := m.Data.(metricdata.Sum[int64])
		require.Len(t, sum.DataPoints, 1)

		role, found := attrValue(sum.DataPoints[0].Attributes, "actor_role")
		require.True(t, found)
		assert.Equal(t, "lab_manager", role.AsString())
	})

	t.Run("omits the actor role label when no actor is set", func(t *testing.T) {
		mp, reader := newMetricsTestMeter(t)
		router := newLedgerRouter(HTTPMetricsWithMeter(mp.Meter("test"), true))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/consumables/0d9f", nil)
		router.ServeHTTP(w, req)

		m := collectMetric(t, reader, "http_server_request_total")
		require.NotNil(t, m)
		sum := m.Data.(metricdata.Sum[int64])
		require.Len(t, sum.DataPoints, 1)

		_, found := attrValue(sum.DataPoints[0].Attributes, "actor_role")
		assert.False(t, found)
	})

	t.Run("records latency without status in the histogram attributes", func(t *testing.T) {
		mp, reader := newMetricsTestMeter(t)
		router := newLedgerRouter(HTTPMetricsWithMeter(mp.Meter("test"), true))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/equipment/4c21/borrow", strings.NewReader(`{"quantity":1}`))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)

		m := collectMetric(t, reader, "http_server_request_duration_seconds")
		require.NotNil(t, m)

		hist, ok := m.Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, hist.DataPoints, 1)

		dp := hist.DataPoints[0]
		assert.Equal(t, uint64(1), dp.Count)
		route, _ := attrValue(dp.Attributes, "http.route")
		assert.Equal(t, "/api/v1/equipment/:id/borrow", route.AsString())
		_, hasStatus := attrValue(dp.Attributes, "http.status_code")
		assert.False(t, hasStatus, "status would blow up histogram cardinality")
	})

	t.Run("records request and response body sizes", func(t *testing.T) {
		mp, reader := newMetricsTestMeter(t)
		router := newLedgerRouter(HTTPMetricsWithMeter(mp.Meter("test"), true))

		body := `{"borrower_name":"j.smith","borrower_type":"student","quantity":2}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/equipment/4c21/borrow", strings.NewReader(body))
		router.ServeHTTP(w, req)

		reqSize := collectMetric(t, reader, "http_server_request_size_bytes")
		require.NotNil(t, reqSize)
		reqHist := reqSize.Data.(metricdata.Histogram[float64])
		require.Len(t, reqHist.DataPoints, 1)
		assert.Equal(t, float64(len(body)), reqHist.DataPoints[0].Sum)

		respSize := collectMetric(t, reader, "http_server_response_size_bytes")
		require.NotNil(t, respSize)
		respHist := respSize.Data.(metricdata.Histogram[float64])
		require.Len(t, respHist.DataPoints, 1)
		assert.Greater(t, respHist.DataPoints[0].Sum, float64(0))
	})

	t.Run("active requests settle back to zero", func(t *testing.T) {
		mp, reader := newMetricsTestMeter(t)
		router := newLedgerRouter(HTTPMetricsWithMeter(mp.Meter("test"), true))

		for range 2 {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/consumables/0d9f", nil)
			router.ServeHTTP(w, req)
		}

		m := collectMetric(t, reader, "http_server_active_requests")
		require.NotNil(t, m)
		sum := m.Data.(metricdata.Sum[int64])
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(0), sum.DataPoints[0].Value)
	})

	t.Run("unmatched paths collapse into a single unknown route", func(t *testing.T) {
		mp, reader := newMetricsTestMeter(t)
		router := newLedgerRouter(HTTPMetricsWithMeter(mp.Meter("test"), true))

		for _, path := range []string{"/nope/1", "/nope/2", "/nope/3"} {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, path, nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusNotFound, w.Code)
		}

		m := collectMetric(t, reader, "http_server_request_total")
		require.NotNil(t, m)
		sum := m.Data.(metricdata.Sum[int64])
		require.Len(t, sum.DataPoints, 1, "raw paths must not become labels")

		dp := sum.DataPoints[0]
		assert.Equal(t, int64(3), dp.Value)
		route, _ := attrValue(dp.Attributes, "http.route")
		assert.Equal(t, "unknown", route.AsString())
	})

	t.Run("disabled flag returns a pass-through", func(t *testing.T) {
		mp, reader := newMetricsTestMeter(t)
		router := newLedgerRouter(HTTPMetricsWithMeter(mp.Meter("test"), false))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/consumables/0d9f", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, collectMetric(t, reader, "http_server_request_total"))
	})
}

func TestHTTPMetrics_ConfigGuards(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(cfg HTTPMetricsConfig) *httptest.ResponseRecorder {
		router := gin.New()
		router.Use(HTTPMetrics(cfg))
		router.GET("/api/v1/equipment", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"items": []string{}})
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/equipment", nil)
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("disabled config serves requests untouched", func(t *testing.T) {
		w := serve(HTTPMetricsConfig{Enabled: false})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("nil meter provider degrades to pass-through", func(t *testing.T) {
		w := serve(HTTPMetricsConfig{Enabled: true, MeterProvider: nil})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestDefaultHTTPMetricsConfig(t *testing.T) {
	cfg := DefaultHTTPMetricsConfig()
	assert.Equal(t, "labstock-backend", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
}
