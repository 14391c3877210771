package trace

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/tracewire/internal/shared/id"
)

func TestNewRoot(t *testing.T) {
	sc := NewRoot(id.Default(), true)

	assert.True(t, sc.IsValid())
	assert.True(t, sc.IsRoot())
	assert.True(t, sc.Sampled)
	assert.False(t, sc.ParentSpanID.IsValid())
}

func TestChildSharesTraceWithNewSpanID(t *testing.T) {
	parent := NewRoot(id.Default(), true)
	child := parent.Child(id.Default())

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
	assert.Equal(t, parent.SpanID, child.ParentSpanID)
	assert.True(t, child.Sampled)
	assert.False(t, child.IsRoot())
}

func TestChildInheritsSamplingDecision(t *testing.T) {
	parent := NewRoot(id.Default(), false)
	child := parent.Child(id.Default())

	assert.False(t, child.Sampled)
}

func TestSerializeFormat(t *testing.T) {
	sc := NewRoot(id.Default(), true)
	s := sc.String()

	require.Len(t, s, 55)
	parts := strings.Split(s, "-")
	require.Len(t, parts, 4)
	assert.Equal(t, "00", parts[0])
	assert.Len(t, parts[1], 32)
	assert.Len(t, parts[2], 16)
	assert.Equal(t, "01", parts[3])

	unsampled := NewRoot(id.Default(), false)
	assert.True(t, strings.HasSuffix(unsampled.String(), "-00"))
}

func TestParseRoundTrip(t *testing.T) {
	for _, sampled := range []bool{true, false} {
		sc := NewRoot(id.Default(), sampled)

		parsed, err := Parse(sc.String())
		require.NoError(t, err)
		assert.Equal(t, sc, parsed)
	}
}

func TestParseDropsLocalParent(t *testing.T) {
	// Parent linkage is process-local; the wire carries only the sender's
	// span id, which becomes the receiver's parent via Child.
	child := NewRoot(id.Default(), true).Child(id.Default())

	parsed, err := Parse(child.String())
	require.NoError(t, err)
	assert.Equal(t, child.TraceID, parsed.TraceID)
	assert.Equal(t, child.SpanID, parsed.SpanID)
	assert.False(t, parsed.ParentSpanID.IsValid())
}

func TestParseMalformed(t *testing.T) {
	valid := NewRoot(id.Default(), true).String()

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"truncated", valid[:20]},
		{"trailing garbage", valid + "ff"},
		{"bad version", "99" + valid[2:]},
		{"bad separators", strings.ReplaceAll(valid, "-", "_")},
		{"non-hex trace id", valid[:3] + strings.Repeat("z", 32) + valid[35:]},
		{"zero trace id", valid[:3] + strings.Repeat("0", 32) + valid[35:]},
		{"zero span id", valid[:36] + strings.Repeat("0", 16) + valid[52:]},
		{"non-hex flags", valid[:53] + "zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.ErrorIs(t, err, ErrMalformedContext)
		})
	}
}

func TestContextCarry(t *testing.T) {
	sc := NewRoot(id.Default(), true)

	ctx := ContextWith(context.Background(), sc)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, sc, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
