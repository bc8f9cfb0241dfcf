// Package tts synthesizes short spoken sentences into WAV clips via the
// Deepgram speak WebSocket API.
package tts

import (
	"context"
	"fmt"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

const sampleRate = 48000

type DeepgramClient struct {
	apiKey   string
	model    string
	encoding string
}

func NewDeepgramClient(apiKey, model string) *DeepgramClient {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &DeepgramClient{apiKey: apiKey, model: model, encoding: "linear16"}
}

// Synthesize renders text to a complete WAV clip. It blocks until the stream
// goes idle or ctx is canceled; partial audio collected so far is discarded
// on error.
func (d *DeepgramClient) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if d.apiKey == "" {
		return nil, "", fmt.Errorf("deepgram: API key missing")
	}
	if text == "" {
		return nil, "", fmt.Errorf("deepgram: empty text")
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.model,
		Encoding:   d.encoding,
		SampleRate: sampleRate,
	}

	var (
		mu       sync.Mutex
		pcm      []byte
		lastRecv time.Time
	)
	cb := &speakCallback{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		mu.Lock()
		pcm = append(pcm, data...)
		lastRecv = time.Now()
		mu.Unlock()
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return nil, "", fmt.Errorf("deepgram: create ws client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return nil, "", fmt.Errorf("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return nil, "", fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		return nil, "", fmt.Errorf("deepgram: flush: %w", err)
	}

	// The stream has no explicit end-of-clip signal; treat a short idle
	// window after the first audio as completion, bounded by a deadline.
	const idleWindow = 400 * time.Millisecond
	deadline := time.Now().Add(12 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-ticker.C:
			mu.Lock()
			got := len(pcm) > 0
			idle := got && time.Since(lastRecv) > idleWindow
			mu.Unlock()
			if idle {
				mu.Lock()
				out := wrapWAV(pcm, sampleRate, 1, 16)
				mu.Unlock()
				return out, "wav", nil
			}
			if time.Now().After(deadline) {
				if !got {
					return nil, "", fmt.Errorf("deepgram: no audio received")
				}
				mu.Lock()
				out := wrapWAV(pcm, sampleRate, 1, 16)
				mu.Unlock()
				return out, "wav", nil
			}
		}
	}
}

type speakCallback struct{ onBinary func([]byte) error }

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                    { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}
