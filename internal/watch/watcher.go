// Package watch polls a watched path for modification-time changes and
// drives a staged rebuild/refresh broadcast.
package watch

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/naman10parikh/vibetalk-sub000/internal/logging"
	"github.com/naman10parikh/vibetalk-sub000/internal/protocol"
)

// Rebuilder runs the actual rebuild between the "changes detected" and
// "preparing refresh" stages.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Broadcaster delivers staged progress events to listeners.
type Broadcaster interface {
	Broadcast(protocol.Message)
}

// Watcher samples one path's mtime on a fixed interval and serializes
// rebuild attempts: at most one rebuild is ever in flight, samples arriving
// mid-rebuild are ignored rather than queued.
type Watcher struct {
	path      string
	interval  time.Duration
	rebuilder Rebuilder
	broadcast Broadcaster
	log       *logging.Logger

	// stageDelay paces the staged progress events for the UI.
	stageDelay time.Duration

	mu       sync.Mutex
	lastMod  time.Time
	building bool
}

// New constructs a Watcher. The current mtime (if the path exists) becomes
// the baseline so startup does not trigger a rebuild.
func New(path string, rebuilder Rebuilder, b Broadcaster, log *logging.Logger, interval time.Duration) *Watcher {
	w := &Watcher{
		path:       path,
		interval:   interval,
		rebuilder:  rebuilder,
		broadcast:  b,
		log:        log,
		stageDelay: 200 * time.Millisecond,
	}
	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	}
	return w
}

// Run polls until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick samples the watched path once. Exported for tests.
func (w *Watcher) Tick(ctx context.Context) {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}
	mod := info.ModTime()

	w.mu.Lock()
	if !mod.After(w.lastMod) || w.building {
		w.mu.Unlock()
		return
	}
	// checked-and-set in one step so a tick mid-rebuild cannot double-start
	w.building = true
	w.lastMod = mod
	w.mu.Unlock()

	go w.runRebuild(ctx)
}

func (w *Watcher) stage(pct int, step, text string) {
	w.broadcast.Broadcast(protocol.ProgressMsg("", step, text, pct))
	if w.stageDelay > 0 {
		time.Sleep(w.stageDelay)
	}
}

func (w *Watcher) runRebuild(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.building = false
		w.mu.Unlock()
	}()

	w.stage(25, "changes-detected", "Changes detected, rebuilding…")

	if err := w.rebuilder.Rebuild(ctx); err != nil {
		w.log.Errorf("", "rebuild failed: %v", err)
		m := protocol.Error("", "rebuild failed; fix the build and save again")
		m.Step = protocol.ErrRebuild
		w.broadcast.Broadcast(m)
		return
	}

	w.stage(50, "rebuilt", "Rebuild finished")
	w.stage(75, "preparing-refresh", "Preparing refresh")
	w.stage(100, "ready", "Ready")

	w.broadcast.Broadcast(protocol.New(protocol.TypeRefreshNow, ""))
}

// Building reports whether a rebuild is in flight.
func (w *Watcher) Building() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.building
}
