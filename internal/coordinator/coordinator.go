// Package coordinator drives each voice interaction through its session
// state machine and owns per-session lifecycle and teardown.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/naman10parikh/vibetalk-sub000/internal/logging"
	"github.com/naman10parikh/vibetalk-sub000/internal/protocol"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateListening
	stateProcessing
	stateTranscribing
	stateInjecting
	stateAwaitingReply
	stateSummarizing
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateListening:
		return "listening"
	case stateProcessing:
		return "processing"
	case stateTranscribing:
		return "transcribing"
	case stateInjecting:
		return "injecting"
	case stateAwaitingReply:
		return "awaiting-reply"
	case stateSummarizing:
		return "summarizing"
	}
	return "unknown"
}

// session is the per-session record. There is no process-wide recording
// flag: each session carries its own state.
type session struct {
	id        string
	state     sessionState
	baseline  map[string]time.Time
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Options carries the timing knobs the Coordinator needs.
type Options struct {
	FirstReplyWait time.Duration
	WatchPath      string
}

// Coordinator is the session state machine.
type Coordinator struct {
	recorder    Recorder
	transcriber Transcriber
	injector    Injector
	summarizer  Summarizer
	poller      ReplyPoller
	buffer      StatusBuffer
	queue       AudioQueue
	speech      *Speech
	broadcast   Broadcaster
	log         *logging.Logger
	opts        Options

	mu       sync.Mutex
	sessions map[string]*session
	started  time.Time
}

// New wires the Coordinator.
func New(recorder Recorder, transcriber Transcriber, injector Injector, summarizer Summarizer,
	poller ReplyPoller, buffer StatusBuffer, queue AudioQueue, speech *Speech,
	broadcast Broadcaster, log *logging.Logger, opts Options) *Coordinator {
	if opts.FirstReplyWait <= 0 {
		opts.FirstReplyWait = 8 * time.Second
	}
	return &Coordinator{
		recorder:    recorder,
		transcriber: transcriber,
		injector:    injector,
		summarizer:  summarizer,
		poller:      poller,
		buffer:      buffer,
		queue:       queue,
		speech:      speech,
		broadcast:   broadcast,
		log:         log,
		opts:        opts,
		sessions:    make(map[string]*session),
		started:     time.Now(),
	}
}

// HandleCommand dispatches an inbound listener command. The heavy lifting
// runs off the caller's goroutine so one session's pipeline never stalls the
// hub's read loop.
func (c *Coordinator) HandleCommand(cmd protocol.Command) {
	switch cmd.Action {
	case protocol.ActionStart:
		c.StartSession(cmd.SessionID)
	case protocol.ActionStop:
		c.StopSession(cmd.SessionID)
	default:
		c.log.Warnf(cmd.SessionID, "unknown action %q", cmd.Action)
	}
}

// StartSession transitions the session to listening and begins capture.
// A start while the same session is already listening is a no-op; a start
// over a session in any other state re-initializes it, discarding its state.
func (c *Coordinator) StartSession(sessionID string) {
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	if s := c.sessions[sessionID]; s != nil {
		if s.state == stateListening {
			c.mu.Unlock()
			return
		}
		c.releaseLocked(s)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:        sessionID,
		state:     stateListening,
		baseline:  snapshotTree(c.opts.WatchPath),
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.sessions[sessionID] = s
	c.mu.Unlock()

	c.queue.Clear(sessionID)
	c.buffer.StartSession(sessionID)

	if err := c.recorder.Start(sessionID); err != nil {
		c.fail(sessionID, ctx, fmt.Sprintf("could not start voice capture: %v", err))
		return
	}
	c.broadcast.Broadcast(protocol.Status(sessionID, "listening", "Listening…"))
	c.log.Infof(sessionID, "session started, listening")
}

// StopSession walks the stop pipeline. A stop while not listening is a no-op.
func (c *Coordinator) StopSession(sessionID string) {
	c.mu.Lock()
	s := c.sessions[sessionID]
	if s == nil || s.state != stateListening {
		c.mu.Unlock()
		return
	}
	s.state = stateProcessing
	ctx := s.ctx
	c.mu.Unlock()

	c.broadcast.Broadcast(protocol.Status(sessionID, "processing", "Got it, processing…"))
	go c.runStop(sessionID, ctx)
}

// advance moves the session to next if it is still live, returning false
// when the session was re-initialized or torn down underneath the pipeline.
func (c *Coordinator) advance(sessionID string, ctx context.Context, next sessionState) bool {
	if ctx.Err() != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sessions[sessionID]
	if s == nil || s.ctx != ctx {
		return false
	}
	s.state = next
	return true
}

func (c *Coordinator) runStop(sessionID string, ctx context.Context) {
	audioPath, err := c.recorder.Stop(sessionID)
	if err != nil {
		c.fail(sessionID, ctx, fmt.Sprintf("no audio captured: %v", err))
		return
	}

	if !c.advance(sessionID, ctx, stateTranscribing) {
		return
	}
	c.broadcast.Broadcast(protocol.Status(sessionID, "transcribing", "Transcribing…"))
	transcript, err := c.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		c.fail(sessionID, ctx, fmt.Sprintf("transcription failed: %v", err))
		return
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		c.fail(sessionID, ctx, "transcription came back empty")
		return
	}

	// the collaborator may have outlived a teardown; re-check before speaking
	if !c.advance(sessionID, ctx, stateInjecting) {
		return
	}
	m := protocol.New(protocol.TypeTranscription, sessionID)
	m.Text = transcript
	c.broadcast.Broadcast(m)
	c.broadcast.Broadcast(protocol.Status(sessionID, "injecting", "Sending to Cursor…"))
	if err := c.injector.Inject(ctx, transcript); err != nil {
		c.fail(sessionID, ctx, fmt.Sprintf("could not reach the editor: %v", err))
		return
	}

	if !c.advance(sessionID, ctx, stateAwaitingReply) {
		return
	}
	ack := protocol.New(protocol.TypeAssistant, sessionID)
	ack.Message = "On it — sent to Cursor."
	c.broadcast.Broadcast(ack)
	c.speech.Speak(sessionID, "On it.")

	c.poller.Start(sessionID)
	if reply, ok := c.poller.AwaitFirstReply(sessionID, c.opts.FirstReplyWait); ok {
		c.log.Infof(sessionID, "first AI reply seen (%d chars)", len(reply))
	} else {
		// proceed on timeout and summarize from file-diff evidence alone
		c.log.Infof(sessionID, "no AI reply within %s, summarizing anyway", c.opts.FirstReplyWait)
	}

	if !c.advance(sessionID, ctx, stateSummarizing) {
		c.poller.Stop(sessionID)
		return
	}
	c.poller.Stop(sessionID)
	c.buffer.Flush(sessionID)
	c.finishSummary(sessionID, ctx, transcript)
}

func (c *Coordinator) finishSummary(sessionID string, ctx context.Context, transcript string) {
	c.mu.Lock()
	s := c.sessions[sessionID]
	var baseline map[string]time.Time
	if s != nil && s.ctx == ctx {
		baseline = s.baseline
	}
	c.mu.Unlock()
	if baseline == nil {
		return
	}

	changed := diffTree(baseline, snapshotTree(c.opts.WatchPath))
	text, err := c.summarizer.FinalSummary(ctx, transcript, changed)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			c.log.Warnf(sessionID, "final summary failed: %v", err)
		}
		if len(changed) == 0 {
			text = "All done, though nothing changed on disk."
		} else {
			text = fmt.Sprintf("All done, %d files changed.", len(changed))
		}
	}

	if !c.advance(sessionID, ctx, stateIdle) {
		return
	}
	m := protocol.New(protocol.TypeSummary, sessionID)
	m.Summary = text
	m.Text = strings.Join(changed, ", ")
	c.broadcast.Broadcast(m)
	c.speech.Speak(sessionID, text)
	c.log.Infof(sessionID, "session summarized, %d changed files", len(changed))
}

// fail emits an error broadcast and returns the session to idle. The failed
// step is not retried. A session torn down while its collaborator was in
// flight stays silent: the error is not broadcast or logged for it.
func (c *Coordinator) fail(sessionID string, ctx context.Context, msg string) {
	if ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	s := c.sessions[sessionID]
	if s == nil || s.ctx != ctx {
		c.mu.Unlock()
		return
	}
	s.state = stateIdle
	c.mu.Unlock()

	c.log.Errorf(sessionID, "%s", msg)
	m := protocol.Error(sessionID, msg)
	m.Step = protocol.ErrCollaborator
	c.broadcast.Broadcast(m)
}

// ReleaseSession tears the session down entirely: all of its timers and
// waiters are canceled so it never speaks or logs again. Used when the
// owning connection closes.
func (c *Coordinator) ReleaseSession(sessionID string) {
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	s := c.sessions[sessionID]
	if s == nil {
		c.mu.Unlock()
		return
	}
	c.releaseLocked(s)
	delete(c.sessions, sessionID)
	c.mu.Unlock()
	c.log.Infof(sessionID, "session released")
}

// releaseLocked cancels everything a session owns. Caller holds c.mu.
func (c *Coordinator) releaseLocked(s *session) {
	s.cancel()
	if s.state == stateListening {
		_, _ = c.recorder.Stop(s.id)
	}
	s.state = stateIdle
	c.poller.Stop(s.id)
	c.buffer.Teardown(s.id)
	c.queue.Clear(s.id)
}

// Snapshot is the read-only status view served over HTTP.
type Snapshot struct {
	Status          string `json:"status"`
	IsRecording     bool   `json:"isRecording"`
	ActiveSessionID string `json:"activeSessionId"`
	Uptime          string `json:"uptime"`
}

// Status reports the coordinator's current state.
func (c *Coordinator) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{Status: "ok", Uptime: time.Since(c.started).Round(time.Second).String()}
	var newest time.Time
	for id, s := range c.sessions {
		if s.state == stateListening {
			snap.IsRecording = true
		}
		if s.state != stateIdle && s.startedAt.After(newest) {
			newest = s.startedAt
			snap.ActiveSessionID = id
		}
	}
	return snap
}
