package observe

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// useTestTracer installs an in-memory tracer provider as the global one
// for the duration of the test.
func useTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLog points the default slog logger at a buffer.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestStartSpan(t *testing.T) {
	exp := useTestTracer(t)

	ctx, span := StartSpan(context.Background(), "resolve")
	cid := CorrelationID(ctx)
	span.End()

	if len(cid) != 32 || strings.Trim(cid, "0123456789abcdef") != "" {
		t.Errorf("CorrelationID = %q, want 32 hex chars", cid)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "resolve" {
		t.Fatalf("spans = %v", spans)
	}
	if got := spans[0].SpanContext.TraceID().String(); got != cid {
		t.Errorf("span trace ID %q != correlation ID %q", got, cid)
	}

	_, second := StartSpan(context.Background(), "resolve")
	defer second.End()
	if second.SpanContext().TraceID().String() == cid {
		t.Error("independent spans share a trace ID")
	}
}

func TestLogger(t *testing.T) {
	useTestTracer(t)

	tests := []struct {
		name      string
		withSpan  bool
		wantTrace bool
	}{
		{"inside span", true, true},
		{"no span", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			ctx := context.Background()
			if tt.withSpan {
				var span trace.Span
				ctx, span = StartSpan(ctx, "transcribe")
				defer span.End()
			}

			Logger(ctx).Info("window transcribed")

			out := buf.String()
			if got := strings.Contains(out, "trace_id=") && strings.Contains(out, "span_id="); got != tt.wantTrace {
				t.Errorf("trace fields present = %v, want %v: %s", got, tt.wantTrace, out)
			}
			if !strings.Contains(out, "window transcribed") {
				t.Errorf("message missing: %s", out)
			}
		})
	}

	if CorrelationID(context.Background()) != "" {
		t.Error("CorrelationID of a bare context is not empty")
	}
}

func TestViews_Buckets(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(append([]sdkmetric.Option{sdkmetric.WithReader(reader)}, Views()...)...)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.TranscriptionDuration.Record(ctx, 1.2)
	m.EmbeddingDuration.Record(ctx, 0.008)
	m.ResolveDuration.Record(ctx, 0.003)
	m.ToolExecutionDuration.Record(ctx, 0.02)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	tests := []struct {
		name   string
		bounds []float64
		bucket int // index of the bucket holding the recorded value
	}{
		{"pulpit.transcription.duration", TranscriptionBuckets, 5},
		{"pulpit.embedding.duration", EmbeddingBuckets, 2},
		{"pulpit.resolve.duration", ResolveBuckets, 2},
		{"pulpit.tool_execution.duration", latencyBuckets, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met := findMetric(rm, tt.name)
			if met == nil {
				t.Fatal("not recorded")
			}
			dp := met.Data.(metricdata.Histogram[float64]).DataPoints[0]
			if !slices.Equal(dp.Bounds, tt.bounds) {
				t.Errorf("bounds = %v, want %v", dp.Bounds, tt.bounds)
			}
			if dp.BucketCounts[tt.bucket] != 1 {
				t.Errorf("bucket counts = %v, want the sample in bucket %d", dp.BucketCounts, tt.bucket)
			}
		})
	}
}

func TestStartSpan_Transport(t *testing.T) {
	exp := useTestTracer(t)

	ctx := WithTransport(context.Background(), "pipe")
	_, span := StartSpan(ctx, "stream.transcribe", trace.WithAttributes(AttrTrigger.String("flush")))
	span.End()
	_, bare := StartSpan(context.Background(), "resolve")
	bare.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans", len(spans))
	}
	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value.AsString()
	}
	if attrs[AttrTransport] != "pipe" || attrs[AttrTrigger] != "flush" {
		t.Errorf("attributes = %v", attrs)
	}
	for _, kv := range spans[1].Attributes {
		if kv.Key == AttrTransport {
			t.Errorf("span without transport context got %v", kv)
		}
	}
	if Transport(context.Background()) != "" || Transport(WithTransport(context.Background(), "")) != "" {
		t.Error("Transport of an untagged context is not empty")
	}
}
