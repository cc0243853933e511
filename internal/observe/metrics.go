// Package observe provides application-wide observability primitives for
// pulpit: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all pulpit metrics.
const meterName = "github.com/MrWong99/pulpit"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks speech-to-text latency per window.
	TranscriptionDuration metric.Float64Histogram

	// EmbeddingDuration tracks query embedding latency.
	EmbeddingDuration metric.Float64Histogram

	// ResolveDuration tracks the time from transcript text to fused result.
	ResolveDuration metric.Float64Histogram

	// ToolExecutionDuration tracks MCP tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// --- Counters ---

	// WindowTriggers counts audio windows handed to the recogniser. Use with
	// attribute.String("reason", "threshold"|"flush").
	WindowTriggers metric.Int64Counter

	// ReferencesDetected counts resolved explicit references. Use with
	// attribute.String("family", ...).
	ReferencesDetected metric.Int64Counter

	// SemanticMatches counts semantic matches above threshold.
	SemanticMatches metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts MCP tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks live streaming sessions. Use with
	// attribute.String("transport", "ws"|"pipe").
	ActiveSessions metric.Int64UpDownCounter

	// RemoteViewers tracks connected read-only remote viewers.
	RemoteViewers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time, labelled
	// with method, mux route pattern and status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets covers sub-10 ms text stages up to multi-second
// transcription of a full window on CPU.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.TranscriptionDuration, "pulpit.transcription.duration", "Latency of speech-to-text transcription per window."},
		{&met.EmbeddingDuration, "pulpit.embedding.duration", "Latency of query embedding."},
		{&met.ResolveDuration, "pulpit.resolve.duration", "Latency of resolving transcript text into verse matches."},
		{&met.ToolExecutionDuration, "pulpit.tool_execution.duration", "Latency of MCP tool execution."},
	}
	for _, h := range histograms {
		inst, err := m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
		if err != nil {
			return nil, err
		}
		*h.dst = inst
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.WindowTriggers, "pulpit.window.triggers", "Audio windows handed to the recogniser by trigger reason."},
		{&met.ReferencesDetected, "pulpit.references.detected", "Resolved explicit Scripture references by pattern family."},
		{&met.SemanticMatches, "pulpit.semantic.matches", "Semantic verse matches at or above threshold."},
		{&met.ProviderRequests, "pulpit.provider.requests", "Total provider API requests by provider, kind, and status."},
		{&met.ToolCalls, "pulpit.tool.calls", "Total MCP tool invocations by tool name and status."},
		{&met.ProviderErrors, "pulpit.provider.errors", "Total provider errors by provider and kind."},
	}
	for _, c := range counters {
		inst, err := m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = inst
	}

	var err error
	if met.ActiveSessions, err = m.Int64UpDownCounter("pulpit.active_sessions",
		metric.WithDescription("Number of live streaming sessions."),
	); err != nil {
		return nil, err
	}
	if met.RemoteViewers, err = m.Int64UpDownCounter("pulpit.remote_viewers",
		metric.WithDescription("Number of connected remote viewers."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("pulpit.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Since records the seconds elapsed since start on h.
func Since(ctx context.Context, h metric.Float64Histogram, start time.Time, attrs ...attribute.KeyValue) {
	h.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
}

// RecordProviderRequest records a provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordToolCall records an MCP tool invocation.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordWindowTrigger records one audio window sent for transcription.
func (m *Metrics) RecordWindowTrigger(ctx context.Context, reason string) {
	m.WindowTriggers.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordReference records one resolved explicit reference.
func (m *Metrics) RecordReference(ctx context.Context, family string) {
	m.ReferencesDetected.Add(ctx, 1, metric.WithAttributes(attribute.String("family", family)))
}

// SessionStarted increments the active session gauge for transport.
func (m *Metrics) SessionStarted(ctx context.Context, transport string) {
	m.ActiveSessions.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

// SessionEnded decrements the active session gauge for transport.
func (m *Metrics) SessionEnded(ctx context.Context, transport string) {
	m.ActiveSessions.Add(ctx, -1, metric.WithAttributes(attribute.String("transport", transport)))
}
