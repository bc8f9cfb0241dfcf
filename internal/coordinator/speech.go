package coordinator

import (
	"context"
	"time"

	"github.com/naman10parikh/vibetalk-sub000/internal/audio"
	"github.com/naman10parikh/vibetalk-sub000/internal/logging"
)

// Speech turns a sentence into a stored clip and queues it for playback.
// It implements status.Speaker, so buffer flushes speak through it too.
type Speech struct {
	synth     Synthesizer
	store     ClipStore
	archive   ClipArchive
	queue     AudioQueue
	log       *logging.Logger
	publicURL string
}

// NewSpeech constructs the speech service. archive may be nil.
func NewSpeech(synth Synthesizer, store ClipStore, archive ClipArchive, queue AudioQueue, log *logging.Logger, publicURL string) *Speech {
	return &Speech{synth: synth, store: store, archive: archive, queue: queue, log: log, publicURL: publicURL}
}

// Speak synthesizes text and appends one clip to the session's queue.
// Failures are logged and swallowed: a silent update is acceptable
// degradation, a crashed session is not.
func (s *Speech) Speak(sessionID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	data, ext, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.log.Warnf(sessionID, "speech synthesis failed: %v", err)
		return
	}
	name, err := s.store.Save(data, ext)
	if err != nil {
		s.log.Warnf(sessionID, "clip store failed: %v", err)
		return
	}
	if s.archive != nil {
		if err := s.archive.Upload(sessionID+"/"+name, data); err != nil {
			s.log.Warnf(sessionID, "clip archive failed: %v", err)
		}
	}
	s.queue.Enqueue(sessionID, audio.Clip{URL: s.publicURL + "/audio/" + name, Text: text})
}
