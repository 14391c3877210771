package adapters

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/trace"
)

// HTTPMiddleware creates Gin middleware that opens a span for every
// request. The propagation header, when present and well formed,
// continues the caller's trace; anything else starts a new root.
func HTTPMiddleware(rec *trace.Recorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var parent trace.SpanContext
		if header := c.GetHeader(trace.Header); header != "" {
			sc, err := trace.Parse(header)
			if err != nil {
				// Malformed context recovers locally: new root, request
				// proceeds untouched.
				logger.Debug("malformed trace header, starting new trace",
					zap.String("header", header),
					zap.Error(err),
				)
			} else {
				parent = sc
			}
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		span, sc := rec.Start(fmt.Sprintf("HTTP %s %s", c.Request.Method, route), parent)
		span.SetAttribute("http.method", c.Request.Method)
		span.SetAttribute("http.url", c.Request.URL.String())
		span.SetAttribute("http.host", c.Request.Host)

		// Downstream calls derive their spans from the child context.
		c.Request = c.Request.WithContext(trace.ContextWith(c.Request.Context(), sc))

		// Echo the trace id so clients can correlate.
		c.Header("X-Trace-ID", sc.TraceID.String())

		c.Next()

		status := c.Writer.Status()
		if len(c.Errors) > 0 {
			rec.RecordError(span, c.Errors.Last())
			endSpan(rec, span, trace.StatusError, map[string]any{
				"http.status_code": status,
			}, logger)
			return
		}

		st := trace.StatusOK
		if status >= http.StatusInternalServerError {
			st = trace.StatusError
		}
		endSpan(rec, span, st, map[string]any{
			"http.status_code": status,
		}, logger)
	}
}

// endSpan finalizes a span, logging rather than propagating a double
// end. Ending twice is an adapter bug; it must not affect the request.
func endSpan(rec *trace.Recorder, span *trace.Span, status trace.Status, attrs map[string]any, logger *zap.Logger) {
	if err := rec.End(span, status, attrs); err != nil {
		logger.Error("adapter ended span twice",
			zap.String("span", span.Name),
			zap.String("trace_id", span.TraceID.String()),
			zap.Error(err),
		)
	}
}
