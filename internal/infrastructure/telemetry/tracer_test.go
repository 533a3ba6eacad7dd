package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, Config{Enabled: false, ServiceName: "freelance"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NoError(t, tp.Shutdown(ctx))

	var none *TracerProvider
	assert.False(t, none.IsEnabled())
}

func TestSamplerFor(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tests := []struct {
		ratio    float64
		recorded bool
	}{
		{1.0, true},
		{0.0, false},
	}
	for _, tt := range tests {
		tp := newSDKProvider(resource.Default(), tt.ratio, sdktrace.WithSpanProcessor(sr))
		_, span := tp.Tracer("test").Start(context.Background(), "op")
		assert.Equal(t, tt.recorded, span.IsRecording(), "ratio %v", tt.ratio)
		span.End()
		_ = tp.Shutdown(context.Background())
	}
	assert.Contains(t, samplerFor(0.5).Description(), "TraceIDRatioBased")
}
