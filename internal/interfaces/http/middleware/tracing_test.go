package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracing(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(t.Context())
	})
	return recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing(t *testing.T) {
	t.Run("disabled is a pass-through", func(t *testing.T) {
		recorder := setupTracing(t)
		router := gin.New()
		router.Use(Tracing(TracingConfig{ServiceName: "billing", Enabled: false}))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, recorder.Ended())
	})

	t.Run("records request span with attributes", func(t *testing.T) {
		recorder := setupTracing(t)
		router := gin.New()
		router.Use(RequestID(), Tracing(TracingConfig{ServiceName: "billing", Enabled: true}), SpanAttributes())
		router.POST("/payments", func(c *gin.Context) { c.Status(http.StatusCreated) })

		req := httptest.NewRequest(http.MethodPost, "/payments", nil)
		req.Header.Set(RequestIDHeader, "req-1")
		req.Header.Set(IdempotencyKeyHeader, "key-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		v, ok := spanAttr(spans[0], "request_id")
		require.True(t, ok)
		assert.Equal(t, "req-1", v.AsString())
		v, ok = spanAttr(spans[0], "idempotency_key")
		require.True(t, ok)
		assert.Equal(t, "key-1", v.AsString())
	})

	t.Run("marks server errors", func(t *testing.T) {
		recorder := setupTracing(t)
		router := gin.New()
		router.Use(Tracing(TracingConfig{ServiceName: "billing", Enabled: true}), SpanAttributes())
		router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
	})
}
