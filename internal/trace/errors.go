package trace

import "errors"

var (
	// ErrMalformedContext reports a propagation header that does not match
	// the fixed-width wire encoding. Adapters recover by starting a new
	// root context; the error is never surfaced to the wrapped operation.
	ErrMalformedContext = errors.New("malformed trace context")

	// ErrSpanEnded reports a second End on the same span. This is a
	// programming error in the calling adapter, not a transient condition,
	// and is surfaced rather than retried.
	ErrSpanEnded = errors.New("span already ended")
)
