package trace

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var traceParentPattern = regexp.MustCompile(`^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`)

func TestCorrelationSetters(t *testing.T) {
	ctx := WithTraceID(context.Background(), "req-7")
	ctx = WithTraceParent(ctx, testParent)
	ctx = WithTraceState(ctx, "vendor=a:b,c=d")

	assert.Equal(t, Correlation{RequestID: "req-7", Parent: testParent, State: "vendor=a:b,c=d"}, FromContext(ctx))

	id, ok := IDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-7", id)
	parent, ok := ParentFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, testParent, parent)
	state, ok := StateFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "vendor=a:b,c=d", state)
}

func TestCorrelationAbsent(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Correlation{}, FromContext(ctx))

	_, ok := IDFromContext(ctx)
	assert.False(t, ok)
	_, ok = ParentFromContext(WithTraceParent(ctx, ""))
	assert.False(t, ok, "empty values count as absent")
}

func TestWithCorrelationReplaces(t *testing.T) {
	ctx := WithTraceID(context.Background(), "old")
	ctx = WithCorrelation(ctx, Correlation{Parent: testParent})

	_, ok := IDFromContext(ctx)
	assert.False(t, ok)
}

func TestEnsureTraceID(t *testing.T) {
	assert.Equal(t, "existing", EnsureTraceID(WithTraceID(context.Background(), "existing")))

	generated := EnsureTraceID(context.Background())
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, generated)
	assert.NotEqual(t, generated, EnsureTraceID(context.Background()))
}

func TestGenerateTraceParent(t *testing.T) {
	a := GenerateTraceParent()
	assert.Regexp(t, traceParentPattern, a)
	assert.NotEqual(t, a, GenerateTraceParent())
}
