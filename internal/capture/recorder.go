// Package capture records microphone audio through an external command so
// the rest of the pipeline only ever sees an audio file.
package capture

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Recorder drives one capture subprocess per session.
type Recorder struct {
	// Command records from the default input device to the path given as
	// $OUT until terminated. Empty selects a per-OS default.
	Command string
	Dir     string

	mu     sync.Mutex
	active map[string]*recording
}

type recording struct {
	cmd  *exec.Cmd
	path string
}

func defaultCommand() string {
	if runtime.GOOS == "darwin" {
		return `sox -d -q -r 16000 -c 1 "$OUT"`
	}
	return `arecord -q -f S16_LE -r 16000 -c 1 "$OUT"`
}

// NewRecorder stores recordings under dir (created on demand).
func NewRecorder(command, dir string) *Recorder {
	if command == "" {
		command = defaultCommand()
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &Recorder{Command: command, Dir: dir, active: make(map[string]*recording)}
}

// Start begins capturing for the session. Starting an already-recording
// session restarts it, discarding the earlier take.
func (r *Recorder) Start(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old := r.active[sessionID]; old != nil {
		stopProcess(old.cmd)
		delete(r.active, sessionID)
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("capture dir: %w", err)
	}
	path := filepath.Join(r.Dir, fmt.Sprintf("take-%s.wav", uuid.NewString()))
	cmd := exec.Command("sh", "-c", r.Command)
	cmd.Env = append(os.Environ(), "OUT="+path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	r.active[sessionID] = &recording{cmd: cmd, path: path}
	return nil
}

// Stop terminates the capture process and returns the recorded file path.
// It errors when nothing was recording or the file came out empty.
func (r *Recorder) Stop(sessionID string) (string, error) {
	r.mu.Lock()
	rec := r.active[sessionID]
	delete(r.active, sessionID)
	r.mu.Unlock()
	if rec == nil {
		return "", fmt.Errorf("no active recording for session %s", sessionID)
	}
	stopProcess(rec.cmd)

	info, err := os.Stat(rec.path)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("no audio captured")
	}
	return rec.path, nil
}

func stopProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() { _ = cmd.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = cmd.Process.Kill()
	}
}
