// Package command runs external programs (git, cargo) for the shell layer.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// =============================================================================
// Types
// =============================================================================

// Command is one program invocation.
type Command struct {
	Dir  string
	Name string
	Args []string

	// Env entries are appended to the inherited environment.
	Env []string

	// Stdin is written to the program's standard input when non-empty.
	Stdin string
}

// New creates a command for name with args.
func New(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// In returns a copy of c that runs in dir.
func (c Command) In(dir string) Command {
	c.Dir = dir
	return c
}

// WithEnv returns a copy of c with extra KEY=VALUE entries.
func (c Command) WithEnv(env ...string) Command {
	c.Env = append(append([]string{}, c.Env...), env...)
	return c
}

// String renders the command line as it would be typed.
func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\"'") {
			parts[i] = fmt.Sprintf("%q", p)
		}
	}
	return strings.Join(parts, " ")
}

// Runner executes commands. Run streams output; Output captures stdout and
// returns it with surrounding whitespace trimmed.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
	Output(ctx context.Context, cmd Command) (string, error)
}

// =============================================================================
// Errors
// =============================================================================

var ErrCommandFailed = errors.New("command failed")

// ExitError reports a command that ran and exited non-zero, or could not start.
type ExitError struct {
	Command  string
	ExitCode int // -1 when the process did not start
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("`%s` failed", e.Command)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s with exit code %d", msg, e.ExitCode)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	} else if e.Err != nil && e.ExitCode < 0 {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExitError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Err}
}

// =============================================================================
// ExecRunner
// =============================================================================

// ExecRunner runs commands with os/exec. Every command sees CI=1.
type ExecRunner struct {
	// Stdout and Stderr receive streamed output from Run. They default to
	// os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	// Scrub names environment variables removed before any command starts.
	Scrub []string

	Logger *slog.Logger
}

// NewExecRunner creates a runner writing to the process's stdout/stderr.
func NewExecRunner(logger *slog.Logger, scrub ...string) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Scrub:  scrub,
		Logger: logger.With("component", "command"),
	}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := r.build(ctx, c)
	cmd.Stdout = r.stdout()
	cmd.Stderr = r.stderr()

	r.log().Info("running", "cmd", c.String(), "dir", c.Dir)
	if err := cmd.Run(); err != nil {
		return exitError(c, "", err)
	}
	return nil
}

func (r *ExecRunner) Output(ctx context.Context, c Command) (string, error) {
	cmd := r.build(ctx, c)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log().Debug("running", "cmd", c.String(), "dir", c.Dir)
	if err := cmd.Run(); err != nil {
		return "", exitError(c, strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (r *ExecRunner) build(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	env := append(scrubEnv(os.Environ(), r.Scrub), "CI=1")
	cmd.Env = append(env, c.Env...)
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	return cmd
}

func (r *ExecRunner) stdout() io.Writer {
	if r.Stdout == nil {
		return os.Stdout
	}
	return r.Stdout
}

func (r *ExecRunner) stderr() io.Writer {
	if r.Stderr == nil {
		return os.Stderr
	}
	return r.Stderr
}

func (r *ExecRunner) log() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func exitError(c Command, stderr string, err error) *ExitError {
	code := -1
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code = ee.ExitCode()
	}
	return &ExitError{Command: c.String(), ExitCode: code, Stderr: stderr, Err: err}
}

// scrubEnv drops KEY=... entries whose key is in names.
func scrubEnv(env, names []string) []string {
	if len(names) == 0 {
		return env
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := make([]string, 0, len(env))
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if !drop[key] {
			out = append(out, kv)
		}
	}
	return out
}
