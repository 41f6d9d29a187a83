// Package executil runs finalised commands under one of the three
// execution strategies: direct subprocess, tmux window with captured
// output, or tmux window with full interactive handoff.
package executil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/microx-shell/microx/internal/category"
)

// Result carries everything the router reports back after a run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// windower is the tmux surface the engine needs; tests stub it.
type windower interface {
	Available() error
	NewWindow(ctx context.Context, name, shellCommand string, detached bool) error
	HasWindow(ctx context.Context, name string) (bool, error)
}

// Engine executes commands. It holds no cross-request state beyond
// configuration; the working directory arrives with each call.
type Engine struct {
	tmux         windower
	shell        string
	tmpDir       string
	semiTimeout  time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewEngine builds an engine. semiTimeout <= 0 falls back to 300s.
func NewEngine(tmux *TmuxClient, semiTimeout time.Duration, logger *zap.Logger) *Engine {
	if semiTimeout <= 0 {
		semiTimeout = 300 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tmux:         tmux,
		shell:        "bash",
		tmpDir:       os.TempDir(),
		semiTimeout:  semiTimeout,
		pollInterval: time.Second,
		logger:       logger,
	}
}

// Execute runs command under the given category in workdir. The caller
// has already sanitised and variable-expanded the command.
func (e *Engine) Execute(ctx context.Context, command string, cat category.Category, workdir string) (*Result, error) {
	e.logger.Info("executing command",
		zap.String("command", command),
		zap.String("category", string(cat)),
		zap.String("workdir", workdir))

	switch cat {
	case category.SemiInteractive:
		return e.runSemiInteractive(ctx, command, workdir)
	case category.InteractiveTUI:
		return e.runInteractive(ctx, command, workdir)
	default:
		return e.runSimple(ctx, command, workdir)
	}
}

// runSimple spawns the command through the shell and captures both
// streams to completion.
func (e *Engine) runSimple(ctx context.Context, command, workdir string) (*Result, error) {
	cmd := exec.CommandContext(ctx, e.shell, "-c", command)
	cmd.Dir = workdir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	// A cancelled context kills the process; the exit status of a
	// killed process is not a command failure.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, fmt.Errorf("failed to start command: %w", err)
	}
	return res, nil
}

// runSemiInteractive opens a detached tmux window whose output is teed
// to a transient log file, polls for window closure up to the timeout,
// then reads and deletes the log.
func (e *Engine) runSemiInteractive(ctx context.Context, command, workdir string) (*Result, error) {
	if err := e.tmux.Available(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	window := "microx-" + id[:8]
	logFile := filepath.Join(e.tmpDir, "microx_out_"+id+".log")
	defer os.Remove(logFile)

	// Trailing sleep keeps very fast commands from closing the window
	// before the first poll can observe it.
	wrapped := fmt.Sprintf("cd %s; (%s) 2>&1 | tee %s; sleep 1",
		shellQuote(workdir), command, shellQuote(logFile))

	if err := e.tmux.NewWindow(ctx, window, wrapped, true); err != nil {
		return nil, err
	}

	timedOut, err := e.waitForWindowClose(ctx, window, e.semiTimeout)
	if err != nil {
		return nil, err
	}
	if timedOut {
		e.logger.Warn("semi-interactive command timed out",
			zap.String("command", command), zap.Duration("timeout", e.semiTimeout))
	}

	res := &Result{TimedOut: timedOut}
	if data, err := os.ReadFile(logFile); err == nil {
		res.Stdout = string(data)
	}
	return res, nil
}

// runInteractive opens a tmux window with focus and blocks until it
// closes. No output is captured; the user interacts live.
func (e *Engine) runInteractive(ctx context.Context, command, workdir string) (*Result, error) {
	if err := e.tmux.Available(); err != nil {
		return nil, err
	}

	window := "microx-" + uuid.NewString()[:8]
	wrapped := fmt.Sprintf("cd %s; %s", shellQuote(workdir), command)

	if err := e.tmux.NewWindow(ctx, window, wrapped, false); err != nil {
		return nil, err
	}

	// No timeout: the window closes when the user's program exits.
	if _, err := e.waitForWindowClose(ctx, window, 0); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// waitForWindowClose polls the window list on a ticker until the window
// disappears, the timeout elapses (timeout > 0), or the context is
// cancelled. timedOut is only ever true for a positive timeout.
func (e *Engine) waitForWindowClose(ctx context.Context, window string, timeout time.Duration) (timedOut bool, err error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline:
			return true, nil
		case <-ticker.C:
			open, err := e.tmux.HasWindow(ctx, window)
			if err != nil {
				return false, err
			}
			if !open {
				return false, nil
			}
		}
	}
}

// ExpandCWD substitutes the working-directory token inside a command
// string. Runs immediately before the final sanitizer check so that
// expansion cannot conceal a dangerous target.
func ExpandCWD(command, cwd string) string {
	command = strings.ReplaceAll(command, "${CWD}", cwd)
	return strings.ReplaceAll(command, "$CWD", cwd)
}

// shellQuote single-quotes s for safe embedding in a shell command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
