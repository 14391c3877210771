/*
Package trace implements span creation and context propagation for the
export pipeline.

# Overview

The package follows OpenTelemetry concepts with a minimal implementation:
a SpanContext value carries trace id, span id, and the sampling flag along
a call chain; a Recorder creates spans, finalizes them, and hands them to
an exporter sink. There is no process-global current span; context rides
context.Context explicitly.

# Usage

	recorder := trace.NewRecorder("myapp", queue, logger)

	// Root span for an inbound request
	span, sc := recorder.Start("HTTP GET /items", trace.SpanContext{})

	// Child span for a downstream call
	child, _ := recorder.Start("db.query", sc)
	// ... perform the call ...
	recorder.End(child, trace.StatusOK, map[string]any{"db.rows": 3})

	recorder.End(span, trace.StatusOK, nil)

# Propagation

Contexts serialize to a single header value in the form
version-traceid-spanid-flags (fixed-width lowercase hex). A malformed
header falls back to a new root rather than failing the request.

# Errors

Failures to record or export telemetry never alter the outcome of the
operation being traced; they are logged and swallowed at the adapter
layer. The one surfaced error is ErrSpanEnded, which marks adapter misuse.
*/
package trace
