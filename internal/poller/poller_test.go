package poller

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/naman10parikh/vibetalk-sub000/internal/logging"
)

type fakeExtractor struct {
	mu    sync.Mutex
	texts []string
	i     int
}

func (f *fakeExtractor) Extract(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.i >= len(f.texts) {
		return "", nil
	}
	t := f.texts[f.i]
	f.i++
	return t, nil
}

type fakeAppender struct {
	mu      sync.Mutex
	entries []string
}

func (f *fakeAppender) Append(sessionID, step, text string) {
	f.mu.Lock()
	f.entries = append(f.entries, text)
	f.mu.Unlock()
}

func (f *fakeAppender) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.entries))
	copy(out, f.entries)
	return out
}

const meaningfulReply = "I updated the landing page hero and fixed the broken link."

func newTestPoller(app StatusAppender, cooldown time.Duration) (*Poller, *pollState) {
	p := New(&fakeExtractor{}, NewClassifier("", nil), app, logging.New(io.Discard), time.Hour, cooldown)
	st := &pollState{stop: make(chan struct{}), firstReply: make(chan string, 1)}
	p.sessions["s1"] = st
	return p, st
}

func TestPoller_IdenticalCandidatesDiscarded(t *testing.T) {
	app := &fakeAppender{}
	p, st := newTestPoller(app, 0)

	p.observe("s1", st, meaningfulReply)
	p.observe("s1", st, meaningfulReply)
	p.observe("s1", st, meaningfulReply)

	require.Len(t, app.all(), 1)
}

func TestPoller_LongestVariantWins(t *testing.T) {
	app := &fakeAppender{}
	p, st := newTestPoller(app, 0)

	p.observe("s1", st, "I updated the landing")
	p.observe("s1", st, "I updated the landing page hero and")
	p.observe("s1", st, meaningfulReply)

	require.Equal(t, meaningfulReply, st.longest)
	// only the closed, meaningful final variant was buffered
	require.Equal(t, []string{meaningfulReply}, app.all())
}

func TestPoller_ShrunkenCandidateConvergesOnLongest(t *testing.T) {
	app := &fakeAppender{}
	p, st := newTestPoller(app, 0)

	p.observe("s1", st, meaningfulReply)
	// extraction flicker: a shorter but still well-formed variant appears
	p.observe("s1", st, "I updated the landing page hero and fixed it.")

	// the flicker collapses onto the already-spoken longest variant and is
	// never buffered as a distinct update
	require.Equal(t, []string{meaningfulReply}, app.all())
	require.Equal(t, meaningfulReply, st.longest)
}

func TestPoller_FirstReplyResolvedOnceEvenIfNotMeaningful(t *testing.T) {
	app := &fakeAppender{}
	p, st := newTestPoller(app, 0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.observe("s1", st, "Thinking about your request")
		p.observe("s1", st, meaningfulReply)
	}()

	text, ok := p.AwaitFirstReply("s1", time.Second)
	require.True(t, ok)
	require.Equal(t, "Thinking about your request", text)

	// the waiter never fires again
	_, ok = p.AwaitFirstReply("s1", 50*time.Millisecond)
	require.False(t, ok)
}

func TestPoller_AwaitFirstReplyTimesOut(t *testing.T) {
	app := &fakeAppender{}
	p, _ := newTestPoller(app, 0)

	start := time.Now()
	_, ok := p.AwaitFirstReply("s1", 30*time.Millisecond)
	require.False(t, ok)
	require.Less(t, time.Since(start), time.Second)
}

func TestPoller_UnpunctuatedCandidateNeverSpoken(t *testing.T) {
	app := &fakeAppender{}
	p, st := newTestPoller(app, 0)

	p.observe("s1", st, "I have updated the landing page hero and also fixed the navigation links plus the mobile breakpoints for every page in the site right now with no regressions")
	require.Empty(t, app.all())
}

func TestPoller_CooldownThrottlesSpokenUpdates(t *testing.T) {
	app := &fakeAppender{}
	p, st := newTestPoller(app, time.Minute)

	p.observe("s1", st, meaningfulReply)
	p.observe("s1", st, "Now the checkout flow is fixed as well and deployed to preview.")

	require.Len(t, app.all(), 1)
}

func TestPoller_StartStopLifecycle(t *testing.T) {
	app := &fakeAppender{}
	p := New(&fakeExtractor{}, NewClassifier("", nil), app, logging.New(io.Discard), 10*time.Millisecond, 0)

	p.Start("s1")
	p.mu.Lock()
	_, running := p.sessions["s1"]
	p.mu.Unlock()
	require.True(t, running)

	p.Stop("s1")
	p.mu.Lock()
	_, running = p.sessions["s1"]
	p.mu.Unlock()
	require.False(t, running)

	// waiting on a stopped session returns immediately
	_, ok := p.AwaitFirstReply("s1", time.Second)
	require.False(t, ok)
}
