package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/labstock/backend/internal/infrastructure/telemetry"
)

// newSpanRecorder installs an in-memory recorder as the global tracer
// provider and restores the previous provider when the test ends.
func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]interface{} {
	m := make(map[string]interface{})
	for _, attr := range s.Attributes() {
		m[string(attr.Key)] = attr.Value.AsInterface()
	}
	return m
}

func TestStartSpan(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "maintenance.complete")
	require.NotNil(t, span)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "maintenance.complete", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
}

func TestStartSpan_WithOptions(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "audit.append",
		telemetry.WithAttribute(telemetry.SpanAttrActor, "tech.ward"),
		telemetry.WithSpanKind(trace.SpanKindClient),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, "tech.ward", spanAttrs(spans[0])["actor"])
}

func TestStartServiceSpan(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "consumable", "consume")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "consumable.consume", spans[0].Name())
}

func TestSetAttributes(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "consumable.consume")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrUnit, "box",
		telemetry.SpanAttrQuantity, 12,
		"low_stock", true,
	)
	span.End()

	attrs := spanAttrs(sr.Ended()[0])
	assert.Equal(t, "box", attrs["unit"])
	assert.Equal(t, int64(12), attrs["quantity"])
	assert.Equal(t, true, attrs["low_stock"])
}

func TestSetAttributes_SkipsMalformedPairs(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "equipment.borrow")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBorrowerType, "student",
		42, "key is not a string",
		"orphan_key", // trailing key with no value
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Attributes(), 1)
	assert.Equal(t, "student", spanAttrs(spans[0])["borrower_type"])
}

func TestSetAttribute(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "equipment.return")
	telemetry.SetAttribute(span, telemetry.SpanAttrReferenceCode, "BRW-01HX4QZ0")
	span.End()

	assert.Equal(t, "BRW-01HX4QZ0", spanAttrs(sr.Ended()[0])["reference_code"])
}

func TestSetAttribute_StringerValue(t *testing.T) {
	sr := newSpanRecorder(t)

	itemID := uuid.New()
	_, span := telemetry.StartSpan(context.Background(), "consumable.replenish")
	telemetry.SetAttribute(span, telemetry.SpanAttrItemID, itemID)
	span.End()

	// uuid.UUID goes through fmt.Stringer
	assert.Equal(t, itemID.String(), spanAttrs(sr.Ended()[0])["item_id"])
}

func TestRecordError(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "consumable.consume")
	telemetry.RecordError(span, errors.New("insufficient stock"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "insufficient stock", spans[0].Status().Description)

	events := spans[0].Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "exception", events[0].Name)
}

func TestRecordError_NilError(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "consumable.consume")
	telemetry.RecordError(span, nil)
	span.End()

	assert.NotEqual(t, codes.Error, sr.Ended()[0].Status().Code)
}

func TestSetOK(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "equipment.borrow")
	telemetry.SetOK(span)
	span.End()

	assert.Equal(t, codes.Ok, sr.Ended()[0].Status().Code)
}

func TestAddEvent(t *testing.T) {
	sr := newSpanRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "consumable.consume")
	telemetry.AddEvent(span, "stock_low",
		telemetry.SpanAttrUnit, "bottle",
		"items_on_hand", 3,
	)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "stock_low", events[0].Name)

	attrs := make(map[string]interface{})
	for _, a := range events[0].Attributes {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	assert.Equal(t, "bottle", attrs["unit"])
	assert.Equal(t, int64(3), attrs["items_on_hand"])
}

func TestNilSpanHelpersDoNotPanic(t *testing.T) {
	telemetry.SetAttributes(nil, "key", "value")
	telemetry.SetAttribute(nil, "key", "value")
	telemetry.RecordError(nil, errors.New("lost span"))
	telemetry.SetOK(nil)
	telemetry.AddEvent(nil, "stock_low")
}

func TestSpanContextRoundTrip(t *testing.T) {
	newSpanRecorder(t)

	ctx := context.Background()
	assert.NotNil(t, telemetry.SpanFromContext(ctx), "no-op span outside a trace")

	ctx, span := telemetry.StartSpan(ctx, "maintenance.schedule")
	defer span.End()

	got := telemetry.SpanFromContext(telemetry.ContextWithSpan(context.Background(), span))
	assert.Equal(t, span.SpanContext().SpanID(), got.SpanContext().SpanID())
	assert.Equal(t, span.SpanContext().SpanID(), telemetry.SpanFromContext(ctx).SpanContext().SpanID())
}

func TestGetTraceID(t *testing.T) {
	newSpanRecorder(t)

	assert.Empty(t, telemetry.GetTraceID(context.Background()))

	ctx, span := telemetry.StartSpan(context.Background(), "audit.list")
	defer span.End()

	traceID := telemetry.GetTraceID(ctx)
	assert.Len(t, traceID, 32)
}

func TestGetSpanID(t *testing.T) {
	newSpanRecorder(t)

	assert.Empty(t, telemetry.GetSpanID(context.Background()))

	ctx, span := telemetry.StartSpan(context.Background(), "audit.list")
	defer span.End()

	spanID := telemetry.GetSpanID(ctx)
	assert.Len(t, spanID, 16)
}

func TestNestedSpans_ShareTrace(t *testing.T) {
	sr := newSpanRecorder(t)

	ctx, parent := telemetry.StartSpan(context.Background(), "equipment.borrow")
	_, child := telemetry.StartSpan(ctx, "audit.append")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)

	byName := make(map[string]sdktrace.ReadOnlySpan, 2)
	for _, s := range spans {
		byName[s.Name()] = s
	}
	parentSpan, childSpan := byName["equipment.borrow"], byName["audit.append"]
	require.NotNil(t, parentSpan)
	require.NotNil(t, childSpan)

	assert.Equal(t, parentSpan.SpanContext().TraceID(), childSpan.SpanContext().TraceID())
	assert.Equal(t, parentSpan.SpanContext().SpanID(), childSpan.Parent().SpanID())
}
