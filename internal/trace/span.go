package trace

import (
	"sync/atomic"
	"time"

	"github.com/tracewire/tracewire/internal/shared/id"
)

// Status classifies how a span's operation completed.
type Status int

const (
	StatusUnset Status = iota
	StatusOK
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnset:
		return "unset"
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Span is a timed record of one logical operation within a trace.
//
// A span is owned by the goroutine that started it until it is handed to
// the exporter queue by Recorder.End; after that it is read-only. Spans
// are not safe for concurrent mutation.
type Span struct {
	TraceID      id.TraceID
	SpanID       id.SpanID
	ParentSpanID id.SpanID
	Name         string
	StartTime    time.Time
	EndTime      time.Time
	Attributes   map[string]any
	Status       Status

	sampled bool
	ended   atomic.Bool
}

// Context returns the span's own context, for deriving children.
func (s *Span) Context() SpanContext {
	return SpanContext{
		TraceID:      s.TraceID,
		SpanID:       s.SpanID,
		ParentSpanID: s.ParentSpanID,
		Sampled:      s.sampled,
	}
}

// Sampled reports whether the span will be exported when ended.
func (s *Span) Sampled() bool {
	return s.sampled
}

// Ended reports whether the span has been finalized.
func (s *Span) Ended() bool {
	return s.ended.Load()
}

// Duration returns the span's elapsed time, zero until ended.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// SetAttribute attaches a scalar attribute. Later writes to the same key
// overwrite earlier ones. Must not be called after the span is ended.
func (s *Span) SetAttribute(key string, value any) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]any)
	}
	s.Attributes[key] = value
}

// IsRoot reports whether the span has no parent.
func (s *Span) IsRoot() bool {
	return !s.ParentSpanID.IsValid()
}
