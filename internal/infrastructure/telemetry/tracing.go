package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for service spans
const TracerName = "freelance-billing"

// Span attribute keys shared by the billing services
const (
	SpanAttrClientID      = "client_id"
	SpanAttrProjectID     = "project_id"
	SpanAttrInvoiceID     = "invoice_id"
	SpanAttrInvoiceNumber = "invoice_number"
	SpanAttrInvoiceStatus = "invoice_status"
	SpanAttrPaymentID     = "payment_id"
	SpanAttrPaymentNumber = "payment_number"
	SpanAttrAmount        = "amount"
	SpanAttrAllocations   = "allocations"
	SpanAttrInvoiceCount  = "invoice_count"
)

// StartSpan starts an internal span. The caller must End it.
func StartSpan(ctx context.Context, spanName string, kv ...any) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindInternal))
	SetAttributes(span, kv...)
	return ctx, span
}

// StartServiceSpan starts a span named {service}.{method}, e.g. "payment.allocate".
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "issue")
//	defer span.End()
func StartServiceSpan(ctx context.Context, service, method string, kv ...any) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, method), kv...)
}

// SetAttributes adds alternating key/value pairs to span. Non-string keys
// are skipped.
func SetAttributes(span trace.Span, kv ...any) {
	if span == nil || len(kv) < 2 {
		return
	}
	span.SetAttributes(toAttributes(kv)...)
}

// RecordError records err on the span and marks it failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful
func SetOK(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// AddEvent records a named event with key/value attributes
func AddEvent(span trace.Span, name string, kv ...any) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes(kv)...))
}

func toAttributes(kv []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, kv[i+1]))
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case uuid.UUID:
		return attribute.String(key, v.String())
	case decimal.Decimal:
		return attribute.String(key, v.StringFixed(2))
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
