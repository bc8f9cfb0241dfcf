// Package poller periodically samples the IDE's visible AI reply text,
// deduplicates it, and feeds meaningful changes into the status buffer.
package poller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/naman10parikh/vibetalk-sub000/internal/logging"
)

// Extractor samples the visible AI reply. An empty string means nothing
// legible was on screen; that is not an error.
type Extractor interface {
	Extract(ctx context.Context) (string, error)
}

// StatusAppender receives qualifying reply text for later summarization.
// Satisfied by status.Buffer.
type StatusAppender interface {
	Append(sessionID, step, text string)
}

type pollState struct {
	stop chan struct{}

	mu         sync.Mutex
	lastHash   string
	longest    string // longest-seen variant; streaming text converges here
	lastSpoken string
	spokenAt   time.Time

	firstReply chan string
	resolved   bool
}

// Poller runs one sampling loop per active session.
type Poller struct {
	extractor  Extractor
	classifier *Classifier
	buffer     StatusAppender
	log        *logging.Logger

	interval time.Duration
	cooldown time.Duration

	mu       sync.Mutex
	sessions map[string]*pollState
}

// New constructs a Poller.
func New(extractor Extractor, classifier *Classifier, buffer StatusAppender, log *logging.Logger, interval, cooldown time.Duration) *Poller {
	return &Poller{
		extractor:  extractor,
		classifier: classifier,
		buffer:     buffer,
		log:        log,
		interval:   interval,
		cooldown:   cooldown,
		sessions:   make(map[string]*pollState),
	}
}

// structuralHash is a cheap prefix+length fingerprint compared before any
// expensive classification.
func structuralHash(s string) string {
	const n = 32
	p := s
	if len(p) > n {
		p = p[:n]
	}
	return fmt.Sprintf("%s:%d", p, len(s))
}

// Start begins polling for the session. Starting an already-polling session
// restarts it with fresh state.
func (p *Poller) Start(sessionID string) {
	p.mu.Lock()
	if old := p.sessions[sessionID]; old != nil {
		close(old.stop)
	}
	st := &pollState{stop: make(chan struct{}), firstReply: make(chan string, 1)}
	p.sessions[sessionID] = st
	p.mu.Unlock()

	go p.loop(sessionID, st)
}

// Stop halts polling for the session and clears its state.
func (p *Poller) Stop(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.sessions[sessionID]
	if st == nil {
		return
	}
	close(st.stop)
	delete(p.sessions, sessionID)
}

// AwaitFirstReply blocks until the first distinct reply candidate arrives for
// the session or the timeout elapses. The waiter resolves at most once.
func (p *Poller) AwaitFirstReply(sessionID string, timeout time.Duration) (string, bool) {
	p.mu.Lock()
	st := p.sessions[sessionID]
	p.mu.Unlock()
	if st == nil {
		return "", false
	}
	select {
	case text := <-st.firstReply:
		return text, true
	case <-st.stop:
		return "", false
	case <-time.After(timeout):
		return "", false
	}
}

func (p *Poller) loop(sessionID string, st *pollState) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			p.tick(sessionID, st)
		}
	}
}

func (p *Poller) tick(sessionID string, st *pollState) {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval*3)
	text, err := p.extractor.Extract(ctx)
	cancel()
	if err != nil {
		p.log.Warnf(sessionID, "reply extraction failed: %v", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	p.observe(sessionID, st, text)
}

// observe runs dedupe, first-reply resolution, classification, and throttling
// for one candidate. Split from tick so tests can drive it directly.
func (p *Poller) observe(sessionID string, st *pollState, text string) {
	h := structuralHash(text)

	st.mu.Lock()
	if h == st.lastHash || text == st.longest {
		st.mu.Unlock()
		return
	}
	st.lastHash = h
	if len(text) > len(st.longest) {
		st.longest = text
	} else {
		// a shorter sample is extraction flicker; converge on the longest
		text = st.longest
	}
	if !st.resolved {
		st.resolved = true
		st.firstReply <- text
	}
	lastSpoken := st.lastSpoken
	throttled := !st.spokenAt.IsZero() && time.Since(st.spokenAt) < p.cooldown
	st.mu.Unlock()

	ok, reason := p.classifier.Meaningful(Candidate{Text: text, LastSpoken: lastSpoken})
	if !ok {
		p.log.Infof(sessionID, "reply candidate rejected (%s)", reason)
		return
	}
	if throttled {
		return
	}

	st.mu.Lock()
	st.lastSpoken = text
	st.spokenAt = time.Now()
	st.mu.Unlock()

	p.buffer.Append(sessionID, "ai-reply", text)
}
