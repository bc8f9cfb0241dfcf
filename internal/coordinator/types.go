package coordinator

import (
	"context"
	"time"

	"github.com/naman10parikh/vibetalk-sub000/internal/audio"
	"github.com/naman10parikh/vibetalk-sub000/internal/protocol"
)

// Recorder captures microphone audio per session and hands back a file.
type Recorder interface {
	Start(sessionID string) error
	Stop(sessionID string) (audioPath string, err error)
}

// Transcriber turns a captured audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Injector delivers a transcript into the IDE.
type Injector interface {
	Inject(ctx context.Context, text string) error
}

// Synthesizer renders a sentence to encoded audio bytes plus file extension.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

// Summarizer produces the spoken sentences: rolling status summaries and the
// final end-of-session wrap-up grounded in changed files.
type Summarizer interface {
	Summarize(ctx context.Context, blob string) (string, error)
	FinalSummary(ctx context.Context, transcript string, changedFiles []string) (string, error)
}

// ReplyPoller watches the IDE's visible AI reply while a session awaits one.
type ReplyPoller interface {
	Start(sessionID string)
	Stop(sessionID string)
	AwaitFirstReply(sessionID string, timeout time.Duration) (string, bool)
}

// StatusBuffer accumulates raw progress strings per session.
type StatusBuffer interface {
	StartSession(sessionID string)
	Teardown(sessionID string)
	Append(sessionID, step, text string)
	Flush(sessionID string)
}

// AudioQueue serializes clip playback per session.
type AudioQueue interface {
	Enqueue(sessionID string, clip audio.Clip)
	Clear(sessionID string)
}

// ClipStore persists synthesized clips and names them.
type ClipStore interface {
	Save(data []byte, ext string) (string, error)
}

// ClipArchive optionally mirrors clips to remote storage.
type ClipArchive interface {
	Upload(key string, data []byte) error
}

// Broadcaster fans messages out to listeners.
type Broadcaster interface {
	Broadcast(protocol.Message)
}
