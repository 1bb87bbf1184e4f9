package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

func newExporter(w io.Writer) (trace.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

// newOTELCollectorExporter creates an exporter that sends traces to an OTEL collector
func newOTELCollectorExporter(endpoint string) (trace.SpanExporter, error) {
	endpointWithProto := strings.Replace(endpoint, "http://", "", 1)
	endpointWithProto = strings.Replace(endpointWithProto, "https://", "", 1)

	return otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithEndpoint(endpointWithProto),
	)
}

func newResource() *resource.Resource {
	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = "ors-cli"
	}

	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion("0.1.0"),
	)
}

// NewProvider creates a trace provider and sets it as the global otel provider.
//
// Exporter priority:
// 1. endpoint (OTEL_EXPORTER_OTLP_ENDPOINT), e.g. "localhost:4318"
// 2. tracesFile (ORS_TRACES_FILE), pretty-printed spans
// 3. nothing: the global no-op provider stays in place
//
// Returns a teardown func
func NewProvider(endpoint, tracesFile string) func() {
	var (
		exp trace.SpanExporter
		f   *os.File
		err error
	)

	switch {
	case endpoint != "":
		exp, err = newOTELCollectorExporter(endpoint)
	case tracesFile != "":
		f, err = os.Create(tracesFile)
		if err != nil {
			slog.Error("Unable to create traces file", slog.String("path", tracesFile), slog.Any("error", err))
			return func() {}
		}
		slog.Debug("Using file-based tracing", slog.String("path", tracesFile))
		exp, err = newExporter(f)
	default:
		return func() {}
	}

	if err != nil {
		slog.Error("Unable to create exporter", slog.Any("error", err))
		return func() {}
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(newResource()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Error("unable to shutdown trace provider", slog.Any("error", err))
		}

		if f != nil {
			if err := f.Close(); err != nil {
				slog.Error("Unable to close traces file", slog.Any("error", err))
			}
		}
	}
}
