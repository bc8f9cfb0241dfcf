package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naman10parikh/vibetalk-sub000/internal/audio"
	"github.com/naman10parikh/vibetalk-sub000/internal/capture"
	"github.com/naman10parikh/vibetalk-sub000/internal/config"
	"github.com/naman10parikh/vibetalk-sub000/internal/coordinator"
	"github.com/naman10parikh/vibetalk-sub000/internal/httpserver"
	"github.com/naman10parikh/vibetalk-sub000/internal/hub"
	"github.com/naman10parikh/vibetalk-sub000/internal/inject"
	"github.com/naman10parikh/vibetalk-sub000/internal/llm"
	"github.com/naman10parikh/vibetalk-sub000/internal/logging"
	"github.com/naman10parikh/vibetalk-sub000/internal/poller"
	"github.com/naman10parikh/vibetalk-sub000/internal/status"
	"github.com/naman10parikh/vibetalk-sub000/internal/storage"
	"github.com/naman10parikh/vibetalk-sub000/internal/transcribe"
	"github.com/naman10parikh/vibetalk-sub000/internal/tts"
	"github.com/naman10parikh/vibetalk-sub000/internal/vision"
	"github.com/naman10parikh/vibetalk-sub000/internal/watch"
)

func main() {
	cfg := config.Load()

	log := logging.New(os.Stderr)

	h := hub.New()
	// Server logs mirror to connected browsers as log messages.
	log.AddSink(h)

	store, err := audio.NewStore(cfg.ClipDir, cfg.ClipRetention)
	if err != nil {
		log.Errorf("", "clip store: %v", err)
		os.Exit(1)
	}
	queue := audio.NewQueue(h, log, cfg.AudioQueueCap, cfg.PlaybackTimeout, cfg.AudioSessionAge)

	archive, err := storage.New(storage.Config{
		URL:            cfg.SupabaseURL,
		ServiceRoleKey: cfg.SupabaseKey,
		Bucket:         cfg.SupabaseBucket,
	})
	if err != nil {
		log.Errorf("", "supabase archive: %v", err)
		os.Exit(1)
	}

	var synth coordinator.Synthesizer = tts.NewDeepgramClient(cfg.DeepgramAPIKey, cfg.DeepgramModel)
	if cfg.ElevenLabsKey != "" && cfg.ElevenLabsVoiceID != "" {
		synth = tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	}
	var clipArchive coordinator.ClipArchive
	if archive != nil {
		clipArchive = archive
	}
	speech := coordinator.NewSpeech(synth, store, clipArchive, queue, log, cfg.PublicURL)

	summarizer := llm.NewCerebrasClient(cfg.CerebrasKey, cfg.CerebrasModelID)
	buffer := status.New(summarizer, speech, log, cfg.FlushDelay, cfg.PeriodicFlush, cfg.DedupeWindow)

	extractor := vision.NewClient(cfg.OpenAIKey, cfg.CaptureCommand)
	classifier := poller.NewClassifier(cfg.ProjectMarker, nil)
	replies := poller.New(extractor, classifier, buffer, log, cfg.PollInterval, cfg.SpeakCooldown)

	co := coordinator.New(
		capture.NewRecorder(cfg.RecordCommand, ""),
		transcribe.NewOpenAIClient(cfg.OpenAIKey),
		inject.New(cfg.InjectTarget),
		summarizer,
		replies,
		buffer,
		queue,
		speech,
		h,
		log,
		coordinator.Options{FirstReplyWait: cfg.FirstReplyWait, WatchPath: cfg.WatchPath},
	)
	h.OnCommand(co.HandleCommand)
	h.OnDisconnect(co.ReleaseSession)

	rebuilder := &watch.CommandRebuilder{Command: cfg.RebuildCommand, Dir: cfg.WatchPath}
	watcher := watch.New(cfg.WatchPath, rebuilder, h, log, cfg.WatchInterval)

	bg, stopBg := context.WithCancel(context.Background())
	defer stopBg()
	go watcher.Run(bg)
	go queue.Run(bg)
	go store.Run(bg)

	e := httpserver.New(httpserver.Deps{Hub: h, Coordinator: co, Queue: queue, Store: store})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("", "server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Errorf("", "server error: %v", err)
			os.Exit(1)
		}
	case sig := <-sigChan:
		log.Infof("", "shutdown signal received: %v", sig)
	}

	stopBg()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("", "graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
