package audio

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/naman10parikh/vibetalk-sub000/internal/logging"
	"github.com/naman10parikh/vibetalk-sub000/internal/protocol"
)

type fakeBroadcaster struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (f *fakeBroadcaster) Broadcast(m protocol.Message) {
	f.mu.Lock()
	f.msgs = append(f.msgs, m)
	f.mu.Unlock()
}

func (f *fakeBroadcaster) played() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var urls []string
	for _, m := range f.msgs {
		if m.Type == protocol.TypeStatusAudio {
			urls = append(urls, m.AudioURL)
		}
	}
	return urls
}

func newTestQueue(b Broadcaster, capacity int, timeout time.Duration) *Queue {
	return NewQueue(b, logging.New(io.Discard), capacity, timeout, time.Minute)
}

func TestQueue_FIFONoOverlap(t *testing.T) {
	b := &fakeBroadcaster{}
	q := newTestQueue(b, 8, time.Minute)

	q.Enqueue("s1", Clip{URL: "/audio/a.wav"})
	q.Enqueue("s1", Clip{URL: "/audio/b.wav"})
	q.Enqueue("s1", Clip{URL: "/audio/c.wav"})

	// only the head plays until completion is signaled
	require.Equal(t, []string{"/audio/a.wav"}, b.played())
	require.True(t, q.Playing("s1"))
	require.Equal(t, 2, q.PendingCount("s1"))

	q.PlaybackComplete("s1")
	require.Equal(t, []string{"/audio/a.wav", "/audio/b.wav"}, b.played())
	q.PlaybackComplete("s1")
	require.Equal(t, []string{"/audio/a.wav", "/audio/b.wav", "/audio/c.wav"}, b.played())
	q.PlaybackComplete("s1")
	require.False(t, q.Playing("s1"))

	// completion with an empty queue is a no-op
	q.PlaybackComplete("s1")
	require.Len(t, b.played(), 3)
}

func TestQueue_OverflowDropsOldestPending(t *testing.T) {
	b := &fakeBroadcaster{}
	q := newTestQueue(b, 2, time.Minute)

	q.Enqueue("s1", Clip{URL: "/audio/playing.wav"})
	q.Enqueue("s1", Clip{URL: "/audio/p1.wav"})
	q.Enqueue("s1", Clip{URL: "/audio/p2.wav"})
	q.Enqueue("s1", Clip{URL: "/audio/p3.wav"})

	// the playing clip is never dropped; p1 was the oldest pending
	require.Equal(t, 2, q.PendingCount("s1"))
	q.PlaybackComplete("s1")
	require.Equal(t, []string{"/audio/playing.wav", "/audio/p2.wav"}, b.played())
}

func TestQueue_StuckClipTimesOut(t *testing.T) {
	b := &fakeBroadcaster{}
	q := newTestQueue(b, 8, 30*time.Millisecond)

	q.Enqueue("s1", Clip{URL: "/audio/stuck.wav"})
	q.Enqueue("s1", Clip{URL: "/audio/next.wav"})

	require.Eventually(t, func() bool {
		urls := b.played()
		return len(urls) == 2 && urls[1] == "/audio/next.wav"
	}, time.Second, 5*time.Millisecond)
}

func TestQueue_ClearCancelsTimeoutAndQueue(t *testing.T) {
	b := &fakeBroadcaster{}
	q := newTestQueue(b, 8, 20*time.Millisecond)

	q.Enqueue("s1", Clip{URL: "/audio/a.wav"})
	q.Enqueue("s1", Clip{URL: "/audio/b.wav"})
	q.Clear("s1")

	time.Sleep(60 * time.Millisecond)
	// the pending clip must never play after Clear
	require.Equal(t, []string{"/audio/a.wav"}, b.played())
	require.False(t, q.Playing("s1"))
}

func TestQueue_SessionsAreIndependent(t *testing.T) {
	b := &fakeBroadcaster{}
	q := newTestQueue(b, 8, time.Minute)

	q.Enqueue("s1", Clip{URL: "/audio/one.wav"})
	q.Enqueue("s2", Clip{URL: "/audio/two.wav"})

	require.ElementsMatch(t, []string{"/audio/one.wav", "/audio/two.wav"}, b.played())
	require.True(t, q.Playing("s1"))
	require.True(t, q.Playing("s2"))
}

func TestQueue_ReapSkipsActiveSessions(t *testing.T) {
	b := &fakeBroadcaster{}
	q := NewQueue(b, logging.New(io.Discard), 8, time.Minute, 10*time.Millisecond)

	q.Enqueue("idle", Clip{URL: "/audio/a.wav"})
	q.PlaybackComplete("idle")
	q.Enqueue("busy", Clip{URL: "/audio/b.wav"})

	time.Sleep(30 * time.Millisecond)
	q.reap()

	require.False(t, q.Playing("idle"))
	require.True(t, q.Playing("busy"))
	q.mu.Lock()
	_, idleKept := q.sessions["idle"]
	q.mu.Unlock()
	require.False(t, idleKept)
}
