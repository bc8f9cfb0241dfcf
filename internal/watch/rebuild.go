package watch

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandRebuilder shells out to the configured build command. An empty
// command is a no-op: static sites only need the refresh signal.
type CommandRebuilder struct {
	Command string
	Dir     string
}

// Rebuild runs the command, if any, and surfaces its combined output on error.
func (r *CommandRebuilder) Rebuild(ctx context.Context) error {
	if r.Command == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", r.Command)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("rebuild command: %w: %s", err, string(out))
	}
	return nil
}
