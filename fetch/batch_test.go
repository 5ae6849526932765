package fetch

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-fetch/internal/testutil"
	"github.com/gaborage/go-fetch/transport"
)

// concurrencyProbe answers after a short pause and records the highest
// number of calls in flight.
type concurrencyProbe struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (p *concurrencyProbe) step() testutil.Step {
	return func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		n := p.inFlight.Add(1)
		defer p.inFlight.Add(-1)
		for {
			peak := p.peak.Load()
			if n <= peak || p.peak.CompareAndSwap(peak, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return testutil.JSON(`{"ok":true}`)(ctx, req)
	}
}

func TestExecuteAllKeepsOrderAndIsolatesFailures(t *testing.T) {
	ok := newTestRequest(t, testutil.NewScripted(testutil.JSON(`{"n":1}`)), Config{})
	bad := newTestRequest(t, testutil.NewScripted(testutil.Respond(http.StatusNotFound, `{}`)), Config{})
	ok2 := newTestRequest(t, testutil.NewScripted(testutil.JSON(`{"n":2}`)), Config{})

	out := ExecuteAll(context.Background(), 0, ok, bad, ok2)
	require.Len(t, out, 3)

	assert.NoError(t, out[0].Err)
	assert.Equal(t, map[string]any{"n": float64(1)}, out[0].Data)
	assert.True(t, transport.IsHTTPStatusError(out[1].Err, http.StatusNotFound))
	assert.NoError(t, out[2].Err)
	assert.Equal(t, map[string]any{"n": float64(2)}, out[2].Data)
}

func TestExecuteAllLimit(t *testing.T) {
	probe := &concurrencyProbe{}
	reqs := make([]*Request, 6)
	for i := range reqs {
		reqs[i] = newTestRequest(t, testutil.NewScripted(probe.step()), Config{})
	}

	out := ExecuteAll(context.Background(), 2, reqs...)
	for _, o := range out {
		assert.NoError(t, o.Err)
	}
	assert.LessOrEqual(t, probe.peak.Load(), int32(2))
}

func TestExecuteAllOrFailCancelsTheRest(t *testing.T) {
	started := make(chan struct{})
	slow := newTestRequest(t, testutil.NewScripted(testutil.Block(started)), Config{})
	failing := newTestRequest(t, testutil.NewScripted(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		<-started
		return testutil.Respond(http.StatusInternalServerError, `{}`)(ctx, req)
	}), Config{})

	out, err := ExecuteAllOrFail(context.Background(), 0, slow, failing)
	require.Error(t, err)
	assert.True(t, transport.IsServerError(err))

	assert.True(t, out[0].Cancelled, "the blocked request is cancelled by the failure")
	assert.NoError(t, out[0].Err)
	assert.False(t, slow.Loading())
	assert.True(t, transport.IsServerError(out[1].Err))
}

func TestExecuteAllOrFailSuccess(t *testing.T) {
	a := newTestRequest(t, testutil.NewScripted(testutil.JSON(`"a"`)), Config{})
	b := newTestRequest(t, testutil.NewScripted(testutil.JSON(`"b"`)), Config{})

	out, err := ExecuteAllOrFail(context.Background(), 1, a, b)
	require.NoError(t, err)
	assert.Equal(t, "a", out[0].Data)
	assert.Equal(t, "b", out[1].Data)
}
