package id

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceIDUniqueness(t *testing.T) {
	gen := NewGenerator()
	seen := make(map[TraceID]bool)

	for i := 0; i < 1000; i++ {
		tid := gen.TraceID()
		assert.True(t, tid.IsValid())
		assert.False(t, seen[tid], "duplicate trace id generated")
		seen[tid] = true
	}
}

func TestTraceIDSortableByTime(t *testing.T) {
	gen := NewGenerator()

	first := gen.TraceID()
	time.Sleep(2 * time.Millisecond)
	second := gen.TraceID()

	assert.True(t, bytes.Compare(first[:], second[:]) < 0,
		"later trace id should compare greater")
}

func TestTraceIDTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	tid := NewTraceID()
	after := time.Now().Add(time.Second)

	ts := tid.Time()
	assert.True(t, ts.After(before))
	assert.True(t, ts.Before(after))
}

func TestSpanIDUniqueness(t *testing.T) {
	gen := NewGenerator()
	seen := make(map[SpanID]bool)

	for i := 0; i < 1000; i++ {
		sid := gen.SpanID()
		assert.True(t, sid.IsValid())
		assert.False(t, seen[sid], "duplicate span id generated")
		seen[sid] = true
	}
}

func TestParseTraceID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"valid", "0123456789abcdef0123456789abcdef", true},
		{"too short", "0123456789abcdef", false},
		{"too long", "0123456789abcdef0123456789abcdef00", false},
		{"non-hex", "0123456789abcdef0123456789abcdeg", false},
		{"all zeros", "00000000000000000000000000000000", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := ParseTraceID(tt.input)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.input, parsed.String())
			}
		})
	}
}

func TestParseSpanID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"valid", "00f067aa0ba902b7", true},
		{"too short", "00f067aa", false},
		{"non-hex", "00f067aa0ba902bz", false},
		{"all zeros", "0000000000000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := ParseSpanID(tt.input)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.input, parsed.String())
			}
		})
	}
}

func TestRoundTripString(t *testing.T) {
	tid := NewTraceID()
	parsed, ok := ParseTraceID(tid.String())
	require.True(t, ok)
	assert.Equal(t, tid, parsed)

	sid := NewSpanID()
	parsedSpan, ok := ParseSpanID(sid.String())
	require.True(t, ok)
	assert.Equal(t, sid, parsedSpan)
}

func TestDeterministicEntropy(t *testing.T) {
	gen := NewGeneratorWithEntropy(bytes.NewReader(bytes.Repeat([]byte{0xAB}, 64)))

	sid := gen.SpanID()
	assert.Equal(t, "abababababababab", sid.String())
}
