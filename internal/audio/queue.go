// Package audio serializes speech-clip playback per session and manages the
// on-disk clip store.
package audio

import (
	"context"
	"sync"
	"time"

	"github.com/naman10parikh/vibetalk-sub000/internal/logging"
	"github.com/naman10parikh/vibetalk-sub000/internal/protocol"
)

// Broadcaster delivers playback messages to listeners.
type Broadcaster interface {
	Broadcast(protocol.Message)
}

// Clip references one synthesized audio artifact.
type Clip struct {
	URL  string
	Text string
}

type playSession struct {
	current *Clip
	pending []Clip
	timeout *time.Timer
	// token invalidates stale playback timeouts after Clear or completion
	token      int
	createdAt  time.Time
	lastActive time.Time
}

// Queue guarantees sequential, non-overlapping clip playback per session.
type Queue struct {
	mu       sync.Mutex
	sessions map[string]*playSession

	capacity        int
	playbackTimeout time.Duration
	maxIdle         time.Duration

	broadcast Broadcaster
	log       *logging.Logger
}

// NewQueue constructs a Queue. capacity bounds pending clips per session;
// overflow drops the oldest pending entry, never the one playing.
func NewQueue(b Broadcaster, log *logging.Logger, capacity int, playbackTimeout, maxIdle time.Duration) *Queue {
	if capacity <= 0 {
		capacity = 8
	}
	return &Queue{
		sessions:        make(map[string]*playSession),
		capacity:        capacity,
		playbackTimeout: playbackTimeout,
		maxIdle:         maxIdle,
		broadcast:       b,
		log:             log,
	}
}

// Enqueue appends a clip and begins playback immediately if nothing is playing.
func (q *Queue) Enqueue(sessionID string, clip Clip) {
	q.mu.Lock()
	s := q.sessions[sessionID]
	if s == nil {
		now := time.Now()
		s = &playSession{createdAt: now, lastActive: now}
		q.sessions[sessionID] = s
	}
	s.lastActive = time.Now()
	if s.current == nil {
		s.current = &clip
		q.playLocked(sessionID, s)
		q.mu.Unlock()
		return
	}
	s.pending = append(s.pending, clip)
	if len(s.pending) > q.capacity {
		dropped := s.pending[0]
		s.pending = s.pending[1:]
		q.mu.Unlock()
		q.log.Warnf(sessionID, "audio queue full, dropping oldest pending clip %s", dropped.URL)
		return
	}
	q.mu.Unlock()
}

// playLocked broadcasts the current clip and arms the stuck-clip timeout.
// Caller holds q.mu.
func (q *Queue) playLocked(sessionID string, s *playSession) {
	clip := *s.current
	s.token++
	token := s.token
	if s.timeout != nil {
		s.timeout.Stop()
	}
	s.timeout = time.AfterFunc(q.playbackTimeout, func() {
		q.timeoutFired(sessionID, token, clip)
	})

	m := protocol.New(protocol.TypeStatusAudio, sessionID)
	m.AudioURL = clip.URL
	m.Text = clip.Text
	q.broadcast.Broadcast(m)
}

func (q *Queue) timeoutFired(sessionID string, token int, clip Clip) {
	q.mu.Lock()
	s := q.sessions[sessionID]
	if s == nil || s.token != token {
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()
	q.log.Warnf(sessionID, "playback of %s did not complete within %s, treating as done", clip.URL, q.playbackTimeout)
	q.PlaybackComplete(sessionID)
}

// PlaybackComplete pops the finished clip and starts the next one if present.
// It reports false when the session is unknown or nothing was playing.
func (q *Queue) PlaybackComplete(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.sessions[sessionID]
	if s == nil || s.current == nil {
		return false
	}
	if s.timeout != nil {
		s.timeout.Stop()
		s.timeout = nil
	}
	s.token++
	s.lastActive = time.Now()
	if len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.current = &next
		q.playLocked(sessionID, s)
		return true
	}
	s.current = nil
	return true
}

// Clear empties the session's queue and cancels any in-flight timeout.
// Used on reconnect and at the start of a new recording.
func (q *Queue) Clear(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.sessions[sessionID]
	if s == nil {
		return
	}
	if s.timeout != nil {
		s.timeout.Stop()
	}
	delete(q.sessions, sessionID)
}

// Playing reports whether a clip is currently playing for the session.
func (q *Queue) Playing(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.sessions[sessionID]
	return s != nil && s.current != nil
}

// PendingCount reports the number of queued (not playing) clips.
func (q *Queue) PendingCount(sessionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.sessions[sessionID]
	if s == nil {
		return 0
	}
	return len(s.pending)
}

// Run reaps idle sessions until ctx is canceled.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.reap()
		}
	}
}

func (q *Queue) reap() {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := time.Now().Add(-q.maxIdle)
	for id, s := range q.sessions {
		if s.current == nil && s.lastActive.Before(cutoff) {
			if s.timeout != nil {
				s.timeout.Stop()
			}
			delete(q.sessions, id)
		}
	}
}
