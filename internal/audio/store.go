package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists synthesized clips on disk. Clips are write-once, read-many,
// and deleted after the retention window.
type Store struct {
	dir       string
	retention time.Duration
}

// NewStore creates the clip directory if needed.
func NewStore(dir string, retention time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create clip dir: %w", err)
	}
	return &Store{dir: dir, retention: retention}, nil
}

// Save writes clip bytes under a generated filename and returns the filename.
func (s *Store) Save(data []byte, ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	name := fmt.Sprintf("clip-%s.%s", uuid.NewString(), ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	return name, nil
}

// Path resolves a clip filename to its on-disk path. It rejects names that
// escape the clip directory.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid clip name %q", name)
	}
	p := filepath.Join(s.dir, name)
	if _, err := os.Stat(p); err != nil {
		return "", err
	}
	return p, nil
}

// Delete removes a clip, e.g. once playback finished.
func (s *Store) Delete(name string) error {
	if name != filepath.Base(name) {
		return fmt.Errorf("invalid clip name %q", name)
	}
	return os.Remove(filepath.Join(s.dir, name))
}

// Sweep deletes clips older than the retention window and returns how many
// were removed.
func (s *Store) Sweep() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-s.retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(filepath.Join(s.dir, e.Name())) == nil {
				removed++
			}
		}
	}
	return removed
}

// Run sweeps expired clips until ctx is canceled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
