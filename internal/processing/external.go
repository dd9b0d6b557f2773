package processing

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

	"github.com/rpattn/vizflow/internal/domain"
)

const stderrTailLimit = 512

// Command is an external executable plus its leading arguments.
type Command struct {
	Path string
	Args []string
}

// ParseCommand splits a configured command line on whitespace.
func ParseCommand(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Path: fields[0], Args: fields[1:]}
}

func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// Runner executes external processes with a bounded lifetime.
type Runner struct {
	Timeout time.Duration
	TempDir string
	// Env is appended to the current environment of each process.
	Env []string
}

// Run executes cmd with extra appended to its arguments and returns stdout.
// A non-zero exit, a timeout or a cancelled context are errors.
func (r *Runner) Run(ctx context.Context, cmd Command, extra ...string) ([]byte, error) {
	if cmd.Path == "" {
		return nil, errors.New("no command configured")
	}

	runCtx := ctx
	if r != nil && r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, cmd.Args...), extra...)
	proc := exec.CommandContext(runCtx, cmd.Path, args...)
	if r != nil && len(r.Env) > 0 {
		proc.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	err := proc.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%s timed out after %s", cmd, r.Timeout)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s cancelled: %w", cmd, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, fmt.Errorf("%s exited with code %d: %s", cmd, exitErr.ExitCode(), tail(stderr.String()))
	}
	return nil, fmt.Errorf("failed to run %s: %w", cmd, err)
}

// materialize returns a filesystem path for the upload, writing in-memory
// content to a temp file. The returned cleanup removes anything it created.
func (r *Runner) materialize(upload domain.Upload) (string, func(), error) {
	if upload.Path != "" {
		return upload.Path, func() {}, nil
	}

	dir := ""
	if r != nil {
		dir = r.TempDir
	}
	pattern := "vizflow-*" + strings.ToLower(filepath.Ext(upload.FileName))
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(upload.Buffer); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTailLimit {
		return s
	}
	return "..." + s[len(s)-stderrTailLimit:]
}
