// Package observe provides OpenTelemetry-based observability for outbound
// gateway calls.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Consumers wire the Observer into the endpoint and
// client layers via Middleware.
//
// # Components
//
//   - [Observer]: Access point for telemetry primitives (tracer, meter,
//     logger), configured once at the composition root
//   - [Tracer]: Span creation with call metadata as span attributes
//   - [Metrics]: Counters and histograms for call totals, errors, duration
//   - [Logger]: Structured JSON logging with credential redaction
//   - [Middleware]: Wraps an ExecuteFunc so every call is traced,
//     metered, and logged in one place
//
// # Quick Start
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "aigateway",
//	    Tracing:     observe.TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 0.1},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(ctx)
//
//	// Create middleware and wrap outbound calls
//	mw, err := observe.MiddlewareFromObserver(obs)
//	wrapped := mw.Wrap(callFn)
//
// # Span Naming
//
//   - With namespace: "gateway.call.<namespace>.<name>" (e.g., "gateway.call.openai.chat")
//   - Without namespace: "gateway.call.<name>" (e.g., "gateway.call.embed")
//
// Span attributes:
//   - call.id: Fully qualified call target identifier
//   - call.name: Endpoint name (required)
//   - call.namespace: Provider namespace (if set)
//   - call.version: Target API version (if set)
//   - call.category: Call category (if set)
//   - call.tags: Classification tags (if set)
//   - call.error: Boolean indicating call failure
//
// # Metrics
//
//   - gateway.call.total (counter): Total calls by target
//   - gateway.call.errors (counter): Total errors by target
//   - gateway.call.duration_ms (histogram): Duration distribution in milliseconds
//
// All metrics include labels: call.id, call.name, call.namespace (if set).
//
// # Logging and Redaction
//
// The structured logger emits one JSON object per line. Field keys that
// commonly carry credentials or raw payloads (see [RedactedFields]) are
// replaced with "[REDACTED]" before serialization, so a secret passed as
// a log field never reaches a sink.
//
// # Exporters
//
// Tracing: otlp, jaeger (OTLP-mapped), stdout, none.
// Metrics: otlp, prometheus, stdout, none.
// Exporter construction lives in the exporters subpackage; the empty
// string disables the subsystem.
//
// # Errors
//
//   - [ErrMissingServiceName]: Config.ServiceName is empty
//   - [ErrInvalidSamplePct]: Tracing.SamplePct outside [0.0, 1.0]
//   - [ErrInvalidTracingExporter], [ErrInvalidMetricsExporter],
//     [ErrInvalidLogLevel]: unknown exporter or level name
//   - [ErrMissingCallName]: CallMeta.Name is empty
//
// # Thread Safety
//
// Observer, Tracer, Metrics, Logger, and Middleware are all safe for
// concurrent use after construction.
package observe
