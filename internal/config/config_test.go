package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	os.Setenv("HTTP_ADDRESS", "")
	os.Setenv("DEEPGRAM_MODEL", "")
	os.Setenv("CEREBRAS_MODEL_ID", "")
	cfg := Load()
	if cfg.HTTPAddress == "" {
		t.Fatalf("expected default http address")
	}
	if cfg.DeepgramModel == "" {
		t.Fatalf("expected default deepgram model")
	}
	if cfg.CerebrasModelID == "" {
		t.Fatalf("expected default cerebras model id")
	}
	if cfg.FlushDelay != 6*time.Second {
		t.Fatalf("expected 6s default flush delay, got %s", cfg.FlushDelay)
	}
	if cfg.AudioQueueCap <= 0 {
		t.Fatalf("expected positive audio queue capacity")
	}
}

func TestLoad_DurationOverrides(t *testing.T) {
	os.Setenv("FLUSH_DELAY", "2s")
	os.Setenv("POLL_INTERVAL", "bogus")
	defer os.Unsetenv("FLUSH_DELAY")
	defer os.Unsetenv("POLL_INTERVAL")
	cfg := Load()
	if cfg.FlushDelay != 2*time.Second {
		t.Fatalf("expected 2s flush delay, got %s", cfg.FlushDelay)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("expected invalid poll interval to fall back to default, got %s", cfg.PollInterval)
	}
}
