package abort

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalFiresOnce(t *testing.T) {
	s := New()
	var calls int32
	s.OnAbort(func(error) { atomic.AddInt32(&calls, 1) })

	assert.True(t, s.Abort(nil))
	assert.False(t, s.Abort(errors.New("second")))

	assert.True(t, s.Aborted())
	assert.ErrorIs(t, s.Reason(), ErrAborted)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestOnAbortAfterFire(t *testing.T) {
	s := New()
	s.Abort(ErrTimeout)

	var got error
	s.OnAbort(func(reason error) { got = reason })
	assert.ErrorIs(t, got, ErrTimeout)
}

func TestLink(t *testing.T) {
	t.Run("first fires second", func(t *testing.T) {
		a, b := New(), New()
		Link(a, b)

		a.Abort(nil)
		assert.True(t, b.Aborted())
		assert.ErrorIs(t, b.Reason(), ErrAborted)
	})

	t.Run("second fires first exactly once", func(t *testing.T) {
		a, b := New(), New()
		var fired int32
		a.OnAbort(func(error) { atomic.AddInt32(&fired, 1) })
		Link(a, b)

		b.Abort(ErrTimeout)
		a.Abort(nil)
		assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
		assert.ErrorIs(t, a.Reason(), ErrTimeout)
	})
}

func TestTimeout(t *testing.T) {
	primary := New()
	timeout := Timeout(10 * time.Millisecond)
	Link(primary, timeout)

	select {
	case <-primary.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout signal never fired")
	}
	assert.ErrorIs(t, primary.Reason(), ErrTimeout)
}

func TestTimeoutStop(t *testing.T) {
	s := Timeout(10 * time.Millisecond)
	s.Stop()
	time.Sleep(30 * time.Millisecond)
	assert.False(t, s.Aborted())
}

func TestContext(t *testing.T) {
	s := New()
	ctx, cancel := s.Context(context.Background())
	defer cancel()

	require.NoError(t, ctx.Err())
	s.Abort(ErrTimeout)

	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), ErrTimeout)
}
