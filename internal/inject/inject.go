// Package inject delivers a transcript into the IDE's AI input box through
// OS-level UI automation.
package inject

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Injector types text into the target application and submits it.
type Injector struct {
	// Target is the application name to focus (e.g. "Cursor").
	Target string
}

func New(target string) *Injector {
	if target == "" {
		target = "Cursor"
	}
	return &Injector{Target: target}
}

// Inject focuses the target app, opens its AI pane, types the text, and
// presses enter.
func (i *Injector) Inject(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("nothing to inject")
	}
	switch runtime.GOOS {
	case "darwin":
		return i.injectDarwin(ctx, text)
	default:
		return i.injectX11(ctx, text)
	}
}

func (i *Injector) injectDarwin(ctx context.Context, text string) error {
	script := fmt.Sprintf(`
tell application %q to activate
delay 0.3
tell application "System Events"
	keystroke "l" using {command down}
	delay 0.2
	keystroke %q
	key code 36
end tell`, i.Target, text)
	if out, err := exec.CommandContext(ctx, "osascript", "-e", script).CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, string(out))
	}
	return nil
}

func (i *Injector) injectX11(ctx context.Context, text string) error {
	steps := [][]string{
		{"xdotool", "search", "--name", i.Target, "windowactivate", "--sync"},
		{"xdotool", "key", "ctrl+l"},
		{"xdotool", "type", "--delay", "15", text},
		{"xdotool", "key", "Return"},
	}
	for _, args := range steps {
		if out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput(); err != nil {
			return fmt.Errorf("%s: %w: %s", args[0], err, string(out))
		}
	}
	return nil
}
