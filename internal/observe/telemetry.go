package observe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/pulpit"

// Span attribute keys shared by the audio pipeline.
const (
	AttrTransport     = attribute.Key("pulpit.transport")
	AttrTrigger       = attribute.Key("pulpit.trigger")
	AttrWindowSamples = attribute.Key("pulpit.window.samples")
)

// Histogram bucket boundaries in seconds. A window holds 0.5 to 3 s of
// audio, so transcription is bucketed around real time; query embeddings
// from a local model finish in milliseconds.
var (
	TranscriptionBuckets = []float64{0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5, 8}
	EmbeddingBuckets     = []float64{0.002, 0.005, 0.01, 0.02, 0.035, 0.05, 0.1, 0.25, 0.5, 1}
	ResolveBuckets       = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
)

// Views returns the meter provider options that give the pipeline
// histograms their own buckets.
func Views() []sdkmetric.Option {
	view := func(name string, bounds []float64) sdkmetric.Option {
		return sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: name},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: bounds}},
		))
	}
	return []sdkmetric.Option{
		view("pulpit.transcription.duration", TranscriptionBuckets),
		view("pulpit.embedding.duration", EmbeddingBuckets),
		view("pulpit.resolve.duration", ResolveBuckets),
	}
}

// ProviderConfig configures [InitProvider].
type ProviderConfig struct {
	// ServiceName defaults to "pulpit".
	ServiceName    string
	ServiceVersion string

	// TraceExporter receives finished spans. Spans are recorded but dropped
	// when it is nil.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider installs global meter and tracer providers. Metrics go to
// the default Prometheus registry served by [MetricsHandler]. The returned
// func flushes both providers.
func InitProvider(ctx context.Context, cfg ProviderConfig) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pulpit"
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, err
	}

	exp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(append([]sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	}, Views()...)...)
	otel.SetMeterProvider(mp)

	topts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		topts = append(topts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(topts...)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// MetricsHandler serves the Prometheus registry [InitProvider] exports to.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

type transportKey struct{}

// WithTransport tags ctx with the session transport ("ws", "pipe"). Spans
// started from it carry [AttrTransport].
func WithTransport(ctx context.Context, transport string) context.Context {
	if transport == "" {
		return ctx
	}
	return context.WithValue(ctx, transportKey{}, transport)
}

// Transport returns the transport set by [WithTransport], or "".
func Transport(ctx context.Context) string {
	s, _ := ctx.Value(transportKey{}).(string)
	return s
}

// StartSpan starts a span on the pulpit tracer of the global provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t := Transport(ctx); t != "" {
		opts = append(opts, trace.WithAttributes(AttrTransport.String(t)))
	}
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// CorrelationID is the trace ID of the span in ctx, or "".
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id added when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
