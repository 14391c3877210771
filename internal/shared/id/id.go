// Package id provides centralized identifier generation for the pipeline.
//
// Trace ids are 128-bit and built from ULIDs, so they sort by creation time
// and traces can be range-scanned in any downstream store. Span ids are
// 64-bit random values. Both are rendered as fixed-width lowercase hex on
// the wire.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TraceID is a 128-bit trace identifier.
type TraceID [16]byte

// SpanID is a 64-bit span identifier.
type SpanID [8]byte

// Generator produces trace and span ids from a shared entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// TraceID generates a new trace id. The leading bytes carry the ULID
// timestamp, so ids created later compare greater.
func (g *Generator) TraceID() TraceID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	u := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return TraceID(u)
}

// SpanID generates a new random span id.
func (g *Generator) SpanID() SpanID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	var s SpanID
	if _, err := io.ReadFull(g.entropy, s[:]); err != nil {
		// crypto/rand never fails on supported platforms; a broken custom
		// entropy source degrades to a timestamp-derived id rather than a
		// zero id, which the wire format treats as invalid.
		now := time.Now().UnixNano()
		for i := 0; i < 8; i++ {
			s[i] = byte(now >> (8 * i))
		}
	}
	return s
}

// NewTraceID generates a trace id from the default generator.
func NewTraceID() TraceID {
	return Default().TraceID()
}

// NewSpanID generates a span id from the default generator.
func NewSpanID() SpanID {
	return Default().SpanID()
}

// IsValid reports whether the trace id is non-zero.
func (t TraceID) IsValid() bool {
	return t != TraceID{}
}

// String renders the trace id as 32 lowercase hex characters.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// Time extracts the embedded ULID timestamp from the trace id.
func (t TraceID) Time() time.Time {
	return ulid.Time(ulid.ULID(t).Time())
}

// IsValid reports whether the span id is non-zero.
func (s SpanID) IsValid() bool {
	return s != SpanID{}
}

// String renders the span id as 16 lowercase hex characters.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// ParseTraceID parses 32 hex characters into a TraceID.
func ParseTraceID(s string) (TraceID, bool) {
	var t TraceID
	if len(s) != 32 {
		return t, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return t, false
	}
	copy(t[:], b)
	return t, t.IsValid()
}

// ParseSpanID parses 16 hex characters into a SpanID.
func ParseSpanID(s string) (SpanID, bool) {
	var id SpanID
	if len(s) != 16 {
		return id, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, false
	}
	copy(id[:], b)
	return id, id.IsValid()
}
