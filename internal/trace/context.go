package trace

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/tracewire/tracewire/internal/shared/id"
)

// Header is the propagation header carrying a serialized SpanContext
// across process boundaries.
const Header = "Traceparent"

// wire format: version-traceid-spanid-flags, fixed-width lowercase hex
const (
	wireVersion = "00"
	wireLen     = 2 + 1 + 32 + 1 + 16 + 1 + 2

	flagSampled = 0x01
)

// SpanContext is the immutable identifier bundle propagated along a call
// chain. It is passed by value and never mutated after creation; deriving
// a child produces a new value.
type SpanContext struct {
	TraceID      id.TraceID
	SpanID       id.SpanID
	ParentSpanID id.SpanID
	Sampled      bool
}

// NewRoot creates a context for a new trace: fresh trace and span ids,
// no parent. It never fails.
func NewRoot(gen *id.Generator, sampled bool) SpanContext {
	return SpanContext{
		TraceID: gen.TraceID(),
		SpanID:  gen.SpanID(),
		Sampled: sampled,
	}
}

// Child derives a context for a nested operation: same trace id, new span
// id, parent set to the receiver's span id. The sampling decision is
// inherited for the whole trace.
func (sc SpanContext) Child(gen *id.Generator) SpanContext {
	return SpanContext{
		TraceID:      sc.TraceID,
		SpanID:       gen.SpanID(),
		ParentSpanID: sc.SpanID,
		Sampled:      sc.Sampled,
	}
}

// IsValid reports whether the context identifies a span.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

// IsRoot reports whether the context has no parent span.
func (sc SpanContext) IsRoot() bool {
	return !sc.ParentSpanID.IsValid()
}

// String serializes the context for the propagation header. The parent
// span id is process-local linkage and is not carried on the wire.
func (sc SpanContext) String() string {
	flags := byte(0)
	if sc.Sampled {
		flags |= flagSampled
	}
	return fmt.Sprintf("%s-%s-%s-%02x", wireVersion, sc.TraceID, sc.SpanID, flags)
}

// Parse deserializes a propagation header value. It returns
// ErrMalformedContext for anything that does not match the fixed-width
// encoding; callers recover by starting a new root.
func Parse(s string) (SpanContext, error) {
	if len(s) != wireLen {
		return SpanContext{}, fmt.Errorf("%w: length %d", ErrMalformedContext, len(s))
	}
	if s[2] != '-' || s[35] != '-' || s[52] != '-' {
		return SpanContext{}, fmt.Errorf("%w: bad separators", ErrMalformedContext)
	}
	if s[0:2] != wireVersion {
		return SpanContext{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedContext, s[0:2])
	}

	traceID, ok := id.ParseTraceID(s[3:35])
	if !ok {
		return SpanContext{}, fmt.Errorf("%w: invalid trace id", ErrMalformedContext)
	}
	spanID, ok := id.ParseSpanID(s[36:52])
	if !ok {
		return SpanContext{}, fmt.Errorf("%w: invalid span id", ErrMalformedContext)
	}

	flagBytes, err := hex.DecodeString(s[53:55])
	if err != nil {
		return SpanContext{}, fmt.Errorf("%w: invalid flags", ErrMalformedContext)
	}
	flags := flagBytes[0]

	return SpanContext{
		TraceID: traceID,
		SpanID:  spanID,
		Sampled: flags&flagSampled != 0,
	}, nil
}

// Context key for carrying a SpanContext through context.Context. The
// carrier rides the request context explicitly; there is no process-global
// current span.
type contextKey struct{}

// ContextWith returns a context carrying sc.
func ContextWith(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// FromContext extracts the SpanContext, if any.
func FromContext(ctx context.Context) (SpanContext, bool) {
	sc, ok := ctx.Value(contextKey{}).(SpanContext)
	return sc, ok
}
