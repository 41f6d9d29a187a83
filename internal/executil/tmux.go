package executil

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ErrTmuxMissing is returned when the tmux binary cannot be found.
// Semi-interactive and interactive commands cannot run without it.
var ErrTmuxMissing = errors.New("tmux not found in PATH")

// TmuxClient wraps the tmux executable: create a named window, list
// window names, and detect closure by absence from the list.
type TmuxClient struct {
	bin    string
	logger *zap.Logger
}

func NewTmuxClient(logger *zap.Logger) *TmuxClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TmuxClient{bin: "tmux", logger: logger}
}

// Available checks that tmux exists in PATH.
func (t *TmuxClient) Available() error {
	if _, err := exec.LookPath(t.bin); err != nil {
		return ErrTmuxMissing
	}
	return nil
}

// NewWindow opens a window named name running shellCommand. Detached
// windows stay in the background (semi-interactive capture); attached
// ones take focus and hand the terminal to the user.
func (t *TmuxClient) NewWindow(ctx context.Context, name, shellCommand string, detached bool) error {
	args := []string{"new-window"}
	if detached {
		args = append(args, "-d")
	}
	args = append(args, "-n", name, shellCommand)

	out, err := exec.CommandContext(ctx, t.bin, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("tmux new-window failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	t.logger.Debug("tmux window created", zap.String("window", name), zap.Bool("detached", detached))
	return nil
}

// ListWindows returns the window names of the current session.
func (t *TmuxClient) ListWindows(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, t.bin, "list-windows", "-F", "#{window_name}").Output()
	if err != nil {
		return nil, fmt.Errorf("tmux list-windows failed: %w", err)
	}
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// HasWindow reports whether a window with the given name still exists.
func (t *TmuxClient) HasWindow(ctx context.Context, name string) (bool, error) {
	names, err := t.ListWindows(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}
