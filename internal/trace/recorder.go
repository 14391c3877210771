package trace

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/shared/id"
)

// Sink receives finalized spans. The exporter queue implements this; a
// sink must never block the caller.
type Sink interface {
	Enqueue(*Span)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(*Span)

// Enqueue calls f.
func (f SinkFunc) Enqueue(s *Span) { f(s) }

// Recorder creates and finalizes spans. It is safe for concurrent use
// from multiple simultaneous requests; individual spans are not.
type Recorder struct {
	service    string
	gen        *id.Generator
	sink       Sink
	sampleRate float64
	logger     *zap.Logger

	active atomic.Int64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithGenerator overrides the id generator, useful for deterministic tests.
func WithGenerator(gen *id.Generator) RecorderOption {
	return func(r *Recorder) { r.gen = gen }
}

// WithSampleRate sets the fraction of new traces that are recorded,
// clamped to [0, 1]. The decision is made once at the root and inherited
// by the whole trace.
func WithSampleRate(rate float64) RecorderOption {
	return func(r *Recorder) {
		r.sampleRate = min(max(rate, 0), 1)
	}
}

// NewRecorder creates a recorder that hands finalized spans to sink.
func NewRecorder(service string, sink Sink, logger *zap.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		service:    service,
		gen:        id.Default(),
		sink:       sink,
		sampleRate: 1,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Service returns the service name spans are recorded under.
func (r *Recorder) Service() string {
	return r.service
}

// ActiveSpans returns the number of started but not yet ended spans.
func (r *Recorder) ActiveSpans() int64 {
	return r.active.Load()
}

// Start begins a span under parent and returns it together with the
// derived child context for downstream calls. An invalid parent starts a
// new root, applying the sample rate.
func (r *Recorder) Start(name string, parent SpanContext) (*Span, SpanContext) {
	var sc SpanContext
	if parent.IsValid() {
		sc = parent.Child(r.gen)
	} else {
		sc = NewRoot(r.gen, rand.Float64() < r.sampleRate)
	}

	span := &Span{
		TraceID:      sc.TraceID,
		SpanID:       sc.SpanID,
		ParentSpanID: sc.ParentSpanID,
		Name:         name,
		StartTime:    time.Now(),
		sampled:      sc.Sampled,
	}
	r.active.Add(1)

	return span, sc
}

// End finalizes the span: sets the end time, merges attrs (later keys
// overwrite earlier ones), sets the status, and hands the span to the
// sink. Ownership transfers to the exporter; the span is read-only after
// End returns. A second End on the same span returns ErrSpanEnded.
func (r *Recorder) End(span *Span, status Status, attrs map[string]any) error {
	if !span.ended.CompareAndSwap(false, true) {
		return ErrSpanEnded
	}

	span.EndTime = time.Now()
	for k, v := range attrs {
		span.SetAttribute(k, v)
	}
	// RecordError already set StatusError; Unset here must not erase it.
	if status != StatusUnset || span.Status == StatusUnset {
		span.Status = status
	}

	r.active.Add(-1)

	if span.sampled {
		r.sink.Enqueue(span)
	}
	return nil
}

// RecordError marks the span failed and attaches the error message and
// kind. It does not end the span; the caller still calls End.
func (r *Recorder) RecordError(span *Span, err error) {
	if err == nil || span.Ended() {
		return
	}
	span.Status = StatusError
	span.SetAttribute("error.message", err.Error())
	span.SetAttribute("error.type", fmt.Sprintf("%T", err))

	if r.logger != nil {
		r.logger.Debug("span recorded error",
			zap.String("trace_id", span.TraceID.String()),
			zap.String("span_id", span.SpanID.String()),
			zap.String("span", span.Name),
			zap.Error(err),
		)
	}
}
