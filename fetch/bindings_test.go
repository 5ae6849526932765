package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-fetch/internal/testutil"
	"github.com/gaborage/go-fetch/reactive"
	"github.com/gaborage/go-fetch/transport"
)

const (
	firstURL  = "http://example.test/one"
	secondURL = "http://example.test/two"
)

func TestAttachImmediate(t *testing.T) {
	tr := testutil.NewScripted(testutil.JSON(`{"ok":true}`))
	req := newTestRequest(t, tr, Config{Reactivity: ReactivityFlags{Immediate: Bool(true)}})

	req.Attach(context.Background())
	t.Cleanup(req.Detach)
	req.Wait()

	assert.Equal(t, 1, tr.Calls())
	assert.True(t, req.Finished())
	assert.Equal(t, map[string]any{"ok": true}, req.Data())
}

func TestAttachWithoutImmediateWaitsForManualExecution(t *testing.T) {
	tr := testutil.NewScripted(testutil.JSON(`{}`))
	req := newTestRequest(t, tr, Config{})

	req.Attach(context.Background())
	t.Cleanup(req.Detach)
	req.Wait()

	assert.Equal(t, 0, tr.Calls())
	assert.False(t, req.Finished())
}

func TestAttachTwiceIsNoop(t *testing.T) {
	tr := testutil.NewScripted(testutil.JSON(`{}`))
	req := newTestRequest(t, tr, Config{Reactivity: ReactivityFlags{Immediate: Bool(true)}})

	req.Attach(context.Background()).Attach(context.Background())
	t.Cleanup(req.Detach)
	req.Wait()

	assert.Equal(t, 1, tr.Calls())
}

func TestURLChangeRefetches(t *testing.T) {
	ref := reactive.NewRef(firstURL)
	tr := testutil.NewScripted(testutil.JSON(`{}`))
	req, err := New(FromRef(ref), Config{Reactivity: ReactivityFlags{Immediate: Bool(true), Refetch: Bool(true)}}, WithTransport(tr))
	require.NoError(t, err)

	req.Attach(context.Background())
	t.Cleanup(req.Detach)
	req.Wait()

	ref.Set(secondURL)
	req.Wait()
	ref.Set(secondURL)
	req.Wait()

	reqs := tr.Requests()
	require.Len(t, reqs, 2, "one execution per distinct URL")
	assert.Equal(t, firstURL, reqs[0].URL)
	assert.Equal(t, secondURL, reqs[1].URL)
}

func TestURLChangeIgnoredWithoutRefetch(t *testing.T) {
	tests := []struct {
		name  string
		flags ReactivityFlags
		calls int
	}{
		{"immediate only", ReactivityFlags{Immediate: Bool(true)}, 1},
		{"refetch without immediate", ReactivityFlags{Refetch: Bool(true)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := reactive.NewRef(firstURL)
			tr := testutil.NewScripted(testutil.JSON(`{}`))
			req, err := New(FromRef(ref), Config{Reactivity: tt.flags}, WithTransport(tr))
			require.NoError(t, err)

			req.Attach(context.Background())
			t.Cleanup(req.Detach)
			req.Wait()
			ref.Set(secondURL)
			req.Wait()

			assert.Equal(t, tt.calls, tr.Calls())
			assert.Zero(t, ref.Watchers())
		})
	}
}

func TestOfflineCancelsAndReconnectResumes(t *testing.T) {
	started := make(chan struct{})
	network := reactive.NewNetworkStatus()
	tr := testutil.NewScripted(testutil.Block(started), testutil.JSON(`{"resumed":true}`))
	req := newTestRequest(t, tr,
		Config{Reactivity: ReactivityFlags{Immediate: Bool(true), RefetchOnReconnect: Bool(true)}},
		WithNetworkStatus(network),
	)

	req.Attach(context.Background())
	t.Cleanup(req.Detach)
	<-started

	network.Set(false)
	req.Wait()
	assert.True(t, req.Cancelled())
	assert.True(t, req.Finished())
	assert.NoError(t, req.Err())

	network.Set(true)
	req.Wait()
	assert.Equal(t, 2, tr.Calls())
	assert.False(t, req.Cancelled())
	assert.Equal(t, map[string]any{"resumed": true}, req.Data())

	network.Set(false)
	network.Set(true)
	req.Wait()
	assert.Equal(t, 2, tr.Calls(), "reconnecting while idle owes nothing")
}

func TestReconnectWhileCancelledExecutionSettles(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	slowAbort := func(ctx context.Context, _ *transport.Request) (*transport.Response, error) {
		close(started)
		<-ctx.Done()
		<-release
		return nil, transport.NewNetworkError("request aborted", transport.CodeCanceled, nil, context.Cause(ctx))
	}
	network := reactive.NewNetworkStatus()
	tr := testutil.NewScripted(slowAbort, testutil.JSON(`{"resumed":true}`))
	req := newTestRequest(t, tr,
		Config{Reactivity: ReactivityFlags{Immediate: Bool(true), RefetchOnReconnect: Bool(true)}},
		WithNetworkStatus(network),
	)

	req.Attach(context.Background())
	t.Cleanup(req.Detach)
	<-started

	network.Set(false)
	network.Set(true)
	assert.True(t, req.Loading(), "the cancelled execution has not returned yet")

	close(release)
	req.Wait()
	assert.Equal(t, 2, tr.Calls(), "the owed execution runs once the cancelled one settles")
	assert.Equal(t, map[string]any{"resumed": true}, req.Data())
}

func TestReconnectIgnoredWithoutFlag(t *testing.T) {
	started := make(chan struct{})
	network := reactive.NewNetworkStatus()
	tr := testutil.NewScripted(testutil.Block(started), testutil.JSON(`{}`))
	req := newTestRequest(t, tr, Config{Reactivity: ReactivityFlags{Immediate: Bool(true)}}, WithNetworkStatus(network))

	req.Attach(context.Background())
	t.Cleanup(req.Detach)
	<-started

	network.Set(false)
	assert.True(t, req.Loading(), "no watcher without RefetchOnReconnect")
	assert.Zero(t, network.Watchers())

	req.Cancel()
	req.Wait()
	assert.Equal(t, 1, tr.Calls())
}

func TestBlurCancelsAndFocusResumes(t *testing.T) {
	started := make(chan struct{})
	visibility := reactive.NewVisibility()
	tr := testutil.NewScripted(testutil.Block(started), testutil.JSON(`{}`))
	req := newTestRequest(t, tr,
		Config{Reactivity: ReactivityFlags{Immediate: Bool(true), CancelOnBlur: Bool(true)}},
		WithVisibility(visibility),
	)

	req.Attach(context.Background())
	t.Cleanup(req.Detach)
	<-started

	visibility.Set(reactive.Hidden)
	req.Wait()
	assert.True(t, req.Cancelled())

	visibility.Set(reactive.Visible)
	req.Wait()
	assert.Equal(t, 2, tr.Calls(), "the cancelled execution is owed on focus")

	visibility.Set(reactive.Hidden)
	visibility.Set(reactive.Visible)
	req.Wait()
	assert.Equal(t, 2, tr.Calls(), "nothing owed while idle")
}

func TestRefetchOnFocus(t *testing.T) {
	visibility := reactive.NewVisibility()
	tr := testutil.NewScripted(testutil.JSON(`{}`))
	req := newTestRequest(t, tr,
		Config{Reactivity: ReactivityFlags{RefetchOnFocus: Bool(true)}},
		WithVisibility(visibility),
	)

	req.Attach(context.Background())
	t.Cleanup(req.Detach)

	visibility.Set(reactive.Visible)
	req.Wait()
	assert.Equal(t, 0, tr.Calls(), "already visible is not a transition")

	visibility.Set(reactive.Hidden)
	req.Wait()
	assert.Equal(t, 0, tr.Calls())

	visibility.Set(reactive.Visible)
	visibility.Set(reactive.Visible)
	req.Wait()
	assert.Equal(t, 1, tr.Calls())
}

func TestDetach(t *testing.T) {
	started := make(chan struct{})
	ref := reactive.NewRef(firstURL)
	network := reactive.NewNetworkStatus()
	visibility := reactive.NewVisibility()
	tr := testutil.NewScripted(testutil.Block(started), testutil.JSON(`{}`))
	req, err := New(FromRef(ref), Config{Reactivity: ReactivityFlags{
		Immediate:          Bool(true),
		Refetch:            Bool(true),
		RefetchOnReconnect: Bool(true),
		RefetchOnFocus:     Bool(true),
	}}, WithTransport(tr), WithNetworkStatus(network), WithVisibility(visibility))
	require.NoError(t, err)

	req.Attach(context.Background())
	<-started
	assert.Equal(t, 1, ref.Watchers())
	assert.Equal(t, 1, network.Watchers())
	assert.Equal(t, 1, visibility.Watchers())

	req.Detach()
	req.Wait()
	assert.True(t, req.Cancelled())
	assert.Zero(t, ref.Watchers())
	assert.Zero(t, network.Watchers())
	assert.Zero(t, visibility.Watchers())

	ref.Set(secondURL)
	visibility.Set(reactive.Visible)
	req.Wait()
	assert.Equal(t, 1, tr.Calls())

	req.Detach()
	out := req.Execute(context.Background())
	assert.NoError(t, out.Err, "a detached request can still be executed manually")
	assert.Equal(t, 2, tr.Calls())
}

func TestParentContextCancelsBackgroundExecution(t *testing.T) {
	started := make(chan struct{})
	tr := testutil.NewScripted(testutil.Block(started))
	req := newTestRequest(t, tr, Config{Reactivity: ReactivityFlags{Immediate: Bool(true)}})

	ctx, cancel := context.WithCancel(context.Background())
	req.Attach(ctx)
	t.Cleanup(req.Detach)
	<-started

	cancel()
	req.Wait()
	assert.True(t, req.Cancelled())
	assert.NoError(t, req.Err())
}
