package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/naman10parikh/vibetalk-sub000/internal/logging"
	"github.com/naman10parikh/vibetalk-sub000/internal/protocol"
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (r *recordingBroadcaster) Broadcast(m protocol.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

func (r *recordingBroadcaster) snapshot() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

type countingRebuilder struct {
	count int32
	err   error
	block chan struct{} // when set, Rebuild waits until closed
}

func (c *countingRebuilder) Rebuild(context.Context) error {
	atomic.AddInt32(&c.count, 1)
	if c.block != nil {
		<-c.block
	}
	return c.err
}

func touch(t *testing.T, path string, when time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(when.String()), 0o644))
	require.NoError(t, os.Chtimes(path, when, when))
}

func newTestWatcher(t *testing.T, rb Rebuilder, b Broadcaster) (*Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.html")
	touch(t, path, time.Now().Add(-time.Minute))
	w := New(path, rb, b, logging.New(io.Discard), time.Hour)
	w.stageDelay = 0
	return w, path
}

func waitNotBuilding(t *testing.T, w *Watcher) {
	t.Helper()
	require.Eventually(t, func() bool { return !w.Building() }, time.Second, 2*time.Millisecond)
}

func TestWatcher_StagedEventsMonotonicWithOneRefresh(t *testing.T) {
	b := &recordingBroadcaster{}
	rb := &countingRebuilder{}
	w, path := newTestWatcher(t, rb, b)

	touch(t, path, time.Now())
	w.Tick(context.Background())
	waitNotBuilding(t, w)

	msgs := b.snapshot()
	last := -1
	refreshes := 0
	for _, m := range msgs {
		switch m.Type {
		case protocol.TypeProgress:
			require.NotNil(t, m.Progress)
			require.Greater(t, *m.Progress, last)
			last = *m.Progress
		case protocol.TypeRefreshNow:
			refreshes++
		}
	}
	require.Equal(t, 100, last)
	require.Equal(t, 1, refreshes)
	// refresh-now is last
	require.Equal(t, protocol.TypeRefreshNow, msgs[len(msgs)-1].Type)
	require.Equal(t, int32(1), atomic.LoadInt32(&rb.count))
}

func TestWatcher_SecondChangeDuringRebuildIgnoredThenPickedUp(t *testing.T) {
	b := &recordingBroadcaster{}
	rb := &countingRebuilder{block: make(chan struct{})}
	w, path := newTestWatcher(t, rb, b)

	touch(t, path, time.Now())
	w.Tick(context.Background())
	require.Eventually(t, func() bool { return w.Building() }, time.Second, 2*time.Millisecond)

	// change again mid-rebuild: ignored while building
	touch(t, path, time.Now().Add(time.Second))
	w.Tick(context.Background())
	w.Tick(context.Background())
	require.Equal(t, int32(1), atomic.LoadInt32(&rb.count))

	close(rb.block)
	waitNotBuilding(t, w)

	// next poll picks up the second, distinct change
	w.Tick(context.Background())
	waitNotBuilding(t, w)
	require.Equal(t, int32(2), atomic.LoadInt32(&rb.count))
}

func TestWatcher_UnchangedMtimeDoesNothing(t *testing.T) {
	b := &recordingBroadcaster{}
	rb := &countingRebuilder{}
	w, _ := newTestWatcher(t, rb, b)

	w.Tick(context.Background())
	w.Tick(context.Background())
	require.Equal(t, int32(0), atomic.LoadInt32(&rb.count))
	require.Empty(t, b.snapshot())
}

func TestWatcher_RebuildFailureClearsFlagNoRefresh(t *testing.T) {
	b := &recordingBroadcaster{}
	rb := &countingRebuilder{err: errors.New("webpack exploded")}
	w, path := newTestWatcher(t, rb, b)

	touch(t, path, time.Now())
	w.Tick(context.Background())
	waitNotBuilding(t, w)

	for _, m := range b.snapshot() {
		require.NotEqual(t, protocol.TypeRefreshNow, m.Type)
	}

	// the watcher keeps detecting after a failure
	rb.err = nil
	touch(t, path, time.Now().Add(time.Second))
	w.Tick(context.Background())
	waitNotBuilding(t, w)
	require.Equal(t, int32(2), atomic.LoadInt32(&rb.count))
}

func TestCommandRebuilder_EmptyCommandIsNoop(t *testing.T) {
	r := &CommandRebuilder{}
	require.NoError(t, r.Rebuild(context.Background()))
}

func TestCommandRebuilder_FailureIncludesOutput(t *testing.T) {
	r := &CommandRebuilder{Command: "echo broken >&2; exit 3"}
	err := r.Rebuild(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")
}
