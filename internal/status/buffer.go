// Package status accumulates raw progress strings per session and collapses
// them into short spoken sentences, suppressing near-duplicate summaries.
package status

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/naman10parikh/vibetalk-sub000/internal/logging"
)

// Summarizer compresses a blob of raw status lines into one short sentence.
type Summarizer interface {
	Summarize(ctx context.Context, blob string) (string, error)
}

// Speaker synthesizes a sentence and queues the clip for the session.
type Speaker interface {
	Speak(sessionID, text string)
}

// Early pipeline steps are visual-only and never spoken.
var earlySteps = map[string]bool{
	"initializing": true,
	"listening":    true,
	"recording":    true,
	"connecting":   true,
}

// noisePatterns drops purely technical lines before they ever reach the
// buffer. Ordered, first match wins.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^polling\b`),
	regexp.MustCompile(`(?i)^screenshot\b`),
	regexp.MustCompile(`(?i)^checking\b.*\bmtime\b`),
	regexp.MustCompile(`^diff --git `),
	regexp.MustCompile(`^[+-]{3} `),
	regexp.MustCompile(`^@@ `),
	regexp.MustCompile(`(?i)^debug[:\s]`),
	regexp.MustCompile(`https?://localhost`),
}

type sessionBuf struct {
	pending    []string
	flushTimer *time.Timer
	stop       chan struct{}

	lastSummary   string
	lastSummaryAt time.Time
}

// Buffer is the per-session status accumulator.
type Buffer struct {
	mu       sync.Mutex
	sessions map[string]*sessionBuf

	flushDelay   time.Duration
	periodic     time.Duration
	dedupeWindow time.Duration

	summarizer Summarizer
	speaker    Speaker
	log        *logging.Logger
}

// New constructs a Buffer.
func New(summarizer Summarizer, speaker Speaker, log *logging.Logger, flushDelay, periodic, dedupeWindow time.Duration) *Buffer {
	return &Buffer{
		sessions:     make(map[string]*sessionBuf),
		flushDelay:   flushDelay,
		periodic:     periodic,
		dedupeWindow: dedupeWindow,
		summarizer:   summarizer,
		speaker:      speaker,
		log:          log,
	}
}

// StartSession initializes buffering for a session and starts its periodic
// safety-net flush. A second start for the same id discards prior state.
func (b *Buffer) StartSession(sessionID string) {
	b.mu.Lock()
	if old := b.sessions[sessionID]; old != nil {
		b.teardownLocked(old)
	}
	s := &sessionBuf{stop: make(chan struct{})}
	b.sessions[sessionID] = s
	b.mu.Unlock()

	go b.periodicFlush(sessionID, s.stop)
}

// Teardown cancels the session's timers and discards its buffer. After
// Teardown returns, the session never speaks again.
func (b *Buffer) Teardown(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessions[sessionID]
	if s == nil {
		return
	}
	b.teardownLocked(s)
	delete(b.sessions, sessionID)
}

func (b *Buffer) teardownLocked(s *sessionBuf) {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.pending = nil
}

// Qualifies reports whether a raw event would be buffered rather than
// dropped as visual-only or technical noise.
func Qualifies(step, text string) bool {
	if earlySteps[strings.ToLower(strings.TrimSpace(step))] {
		return false
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, re := range noisePatterns {
		if re.MatchString(trimmed) {
			return false
		}
	}
	return true
}

// Append buffers one raw event string for the session. If the buffer was
// empty, the flush timer is armed; appends while a timer is pending do not
// re-arm it, bounding worst-case latency.
func (b *Buffer) Append(sessionID, step, text string) {
	if !Qualifies(step, text) {
		return
	}
	b.mu.Lock()
	s := b.sessions[sessionID]
	if s == nil {
		b.mu.Unlock()
		return
	}
	wasEmpty := len(s.pending) == 0
	s.pending = append(s.pending, strings.TrimSpace(text))
	if wasEmpty && s.flushTimer == nil {
		s.flushTimer = time.AfterFunc(b.flushDelay, func() { b.Flush(sessionID) })
	}
	b.mu.Unlock()
}

// Flush collapses the buffered strings into one spoken sentence. Both the
// timer path and the periodic path land here, so dedupe logic is shared.
func (b *Buffer) Flush(sessionID string) {
	b.mu.Lock()
	s := b.sessions[sessionID]
	if s == nil || len(s.pending) == 0 {
		if s != nil && s.flushTimer != nil {
			s.flushTimer.Stop()
			s.flushTimer = nil
		}
		b.mu.Unlock()
		return
	}
	blob := strings.Join(s.pending, "\n")
	s.pending = nil
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	sentence, err := b.summarizer.Summarize(ctx, blob)
	cancel()
	if err != nil {
		b.log.Warnf(sessionID, "status summarization failed: %v", err)
		return
	}
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return
	}

	b.mu.Lock()
	s = b.sessions[sessionID]
	if s == nil {
		// session torn down while summarizing; discard
		b.mu.Unlock()
		return
	}
	if sentence == s.lastSummary && time.Since(s.lastSummaryAt) < b.dedupeWindow {
		b.mu.Unlock()
		return
	}
	s.lastSummary = sentence
	s.lastSummaryAt = time.Now()
	b.mu.Unlock()

	b.speaker.Speak(sessionID, sentence)
}

// periodicFlush flushes leftover content on a fixed cadence so buffered text
// never goes stale when no new events arrive.
func (b *Buffer) periodicFlush(sessionID string, stop <-chan struct{}) {
	ticker := time.NewTicker(b.periodic)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.Flush(sessionID)
		}
	}
}

// Pending reports how many raw strings are buffered for the session.
func (b *Buffer) Pending(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.sessions[sessionID]; s != nil {
		return len(s.pending)
	}
	return 0
}
