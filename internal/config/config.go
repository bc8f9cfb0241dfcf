package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string
	PublicURL   string

	// Collaborator credentials.
	DeepgramAPIKey  string
	DeepgramModel   string
	CerebrasKey     string
	CerebrasModelID string
	OpenAIKey       string

	// Alternate voice backend; used instead of Deepgram when both are set.
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Supabase clip archive (optional; disabled when URL or key empty).
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// Clip storage.
	ClipDir       string
	ClipRetention time.Duration

	// Watched project tree and rebuild.
	WatchPath      string
	RebuildCommand string

	// Capture and injection helpers.
	CaptureCommand string
	RecordCommand  string
	InjectTarget   string

	// Expected to appear in on-topic AI replies; used to filter cross-talk
	// from unrelated editor panes. Empty disables the check.
	ProjectMarker string

	// Timing knobs. Defaults match observed product behavior; they are
	// externally supplied constants, not behavior to re-derive.
	FlushDelay      time.Duration // status buffer flush timer
	PeriodicFlush   time.Duration // safety-net flush cadence
	DedupeWindow    time.Duration // identical-summary suppression window
	PollInterval    time.Duration // AI reply extraction cadence
	SpeakCooldown   time.Duration // min gap between spoken reply updates
	FirstReplyWait  time.Duration // wait for first AI reply before summarizing
	WatchInterval   time.Duration // file mtime sampling cadence
	PlaybackTimeout time.Duration // stuck-clip recovery
	AudioSessionAge time.Duration // idle audio session reaping
	AudioQueueCap   int
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":3000"
	}
	publicURL := os.Getenv("PUBLIC_URL")
	if publicURL == "" {
		publicURL = "http://localhost:3000"
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - speech synthesis will not work")
	}
	deepgramModel := os.Getenv("DEEPGRAM_MODEL")
	if deepgramModel == "" {
		deepgramModel = "aura-2-thalia-en"
	}

	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	cerebrasModel := os.Getenv("CEREBRAS_MODEL_ID")
	if cerebrasModel == "" {
		cerebrasModel = "gpt-oss-120b"
	}
	if cerebrasKey == "" {
		log.Println("Warning: CEREBRAS_API_KEY not set - summarization will not work")
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - transcription and screen extraction will not work")
	}

	clipDir := os.Getenv("CLIP_DIR")
	if clipDir == "" {
		clipDir = "clips"
	}

	watchPath := os.Getenv("WATCH_PATH")
	if watchPath == "" {
		watchPath = "."
	}

	return Config{
		HTTPAddress: addr,
		PublicURL:   publicURL,

		DeepgramAPIKey:  deepgramKey,
		DeepgramModel:   deepgramModel,
		CerebrasKey:     cerebrasKey,
		CerebrasModelID: cerebrasModel,
		OpenAIKey:       openAIKey,

		ElevenLabsKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),

		SupabaseURL:    os.Getenv("SUPABASE_URL"),
		SupabaseKey:    os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket: envDefault("SUPABASE_BUCKET", "voice-clips"),

		ClipDir:       clipDir,
		ClipRetention: envDuration("CLIP_RETENTION", 30*time.Minute),

		WatchPath:      watchPath,
		RebuildCommand: os.Getenv("REBUILD_COMMAND"),

		CaptureCommand: os.Getenv("CAPTURE_COMMAND"),
		RecordCommand:  os.Getenv("RECORD_COMMAND"),
		InjectTarget:   envDefault("INJECT_TARGET", "Cursor"),

		ProjectMarker: os.Getenv("PROJECT_MARKER"),

		FlushDelay:      envDuration("FLUSH_DELAY", 6*time.Second),
		PeriodicFlush:   envDuration("PERIODIC_FLUSH", 5*time.Second),
		DedupeWindow:    envDuration("DEDUPE_WINDOW", 20*time.Second),
		PollInterval:    envDuration("POLL_INTERVAL", 2*time.Second),
		SpeakCooldown:   envDuration("SPEAK_COOLDOWN", 10*time.Second),
		FirstReplyWait:  envDuration("FIRST_REPLY_WAIT", 8*time.Second),
		WatchInterval:   envDuration("WATCH_INTERVAL", time.Second),
		PlaybackTimeout: envDuration("PLAYBACK_TIMEOUT", 10*time.Second),
		AudioSessionAge: envDuration("AUDIO_SESSION_AGE", 10*time.Minute),
		AudioQueueCap:   envInt("AUDIO_QUEUE_CAP", 8),
	}
}
