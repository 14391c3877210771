package export

import (
	"github.com/tracewire/tracewire/internal/trace"
)

// Batch is the wire message carrying one flush worth of spans. The
// collector consumes it as the payload of a length-prefixed frame.
type Batch struct {
	Service string     `json:"service"`
	Spans   []WireSpan `json:"spans"`
}

// WireSpan is the collector-facing span encoding.
type WireSpan struct {
	TraceID  string         `json:"traceId"`
	ID       string         `json:"id"`
	ParentID string         `json:"parentId,omitempty"`
	Name     string         `json:"name"`
	Start    int64          `json:"start"`    // unix nanos
	Duration int64          `json:"duration"` // nanos
	Attrs    map[string]any `json:"attrs,omitempty"`
	Status   string         `json:"status"`
}

// NewBatch converts finalized spans into a wire batch, preserving order.
func NewBatch(service string, spans []*trace.Span) Batch {
	out := make([]WireSpan, 0, len(spans))
	for _, s := range spans {
		ws := WireSpan{
			TraceID:  s.TraceID.String(),
			ID:       s.SpanID.String(),
			Name:     s.Name,
			Start:    s.StartTime.UnixNano(),
			Duration: s.Duration().Nanoseconds(),
			Attrs:    s.Attributes,
			Status:   s.Status.String(),
		}
		if s.ParentSpanID.IsValid() {
			ws.ParentID = s.ParentSpanID.String()
		}
		out = append(out, ws)
	}
	return Batch{Service: service, Spans: out}
}
