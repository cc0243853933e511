package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"pulpit.transcription.duration", m.TranscriptionDuration},
		{"pulpit.embedding.duration", m.EmbeddingDuration},
		{"pulpit.resolve.duration", m.ResolveDuration},
		{"pulpit.tool_execution.duration", m.ToolExecutionDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		Since(ctx, tc.h, time.Now().Add(-time.Second))
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

// sumFor returns the value of the data point of the named sum metric that
// carries key=value.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q: data point with %s=%s not found", name, key, value)
	return 0
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "whisper", "stt", "ok")
	m.RecordProviderRequest(ctx, "whisper", "stt", "ok")
	m.RecordProviderRequest(ctx, "whisper", "stt", "error")
	m.RecordProviderError(ctx, "ollama", "embeddings")
	m.RecordToolCall(ctx, "lookup_reference", "ok")
	m.RecordWindowTrigger(ctx, "threshold")
	m.RecordWindowTrigger(ctx, "threshold")
	m.RecordWindowTrigger(ctx, "flush")
	m.RecordReference(ctx, "spoken_verse")
	m.SemanticMatches.Add(ctx, 3)

	rm := collect(t, reader)

	tests := []struct {
		name, key, value string
		want             int64
	}{
		{"pulpit.provider.requests", "status", "ok", 2},
		{"pulpit.provider.requests", "status", "error", 1},
		{"pulpit.provider.errors", "provider", "ollama", 1},
		{"pulpit.tool.calls", "tool", "lookup_reference", 1},
		{"pulpit.window.triggers", "reason", "threshold", 2},
		{"pulpit.window.triggers", "reason", "flush", 1},
		{"pulpit.references.detected", "family", "spoken_verse", 1},
	}
	for _, tt := range tests {
		if got := sumFor(t, rm, tt.name, tt.key, tt.value); got != tt.want {
			t.Errorf("%s{%s=%s} = %d, want %d", tt.name, tt.key, tt.value, got, tt.want)
		}
	}
	met := findMetric(rm, "pulpit.semantic.matches")
	if met == nil {
		t.Fatal("pulpit.semantic.matches not found")
	}
	if got := met.Data.(metricdata.Sum[int64]).DataPoints[0].Value; got != 3 {
		t.Errorf("semantic matches = %d, want 3", got)
	}
}

func TestGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	ws := metric.WithAttributes(Attr("transport", "ws"))
	m.ActiveSessions.Add(ctx, 1, ws)
	m.ActiveSessions.Add(ctx, 1, ws)
	m.ActiveSessions.Add(ctx, -1, ws)
	m.RemoteViewers.Add(ctx, 4)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "pulpit.active_sessions", "transport", "ws"); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
	met := findMetric(rm, "pulpit.remote_viewers")
	if met == nil {
		t.Fatal("pulpit.remote_viewers not found")
	}
	if got := met.Data.(metricdata.Sum[int64]).DataPoints[0].Value; got != 4 {
		t.Errorf("remote viewers = %d, want 4", got)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("route", "GET /healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "pulpit.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different pointers")
	}
}
