// Package runner abstracts external command execution so orchestration logic
// can be tested with a recording fake instead of spawning real processes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// stderrTailLimit bounds how much stderr is kept for error classification.
const stderrTailLimit = 8 * 1024

// Command describes one external command invocation.
type Command struct {
	Name string
	Args []string

	// Dir is the working directory. Empty means the caller's directory.
	Dir string

	// Env is an overlay applied on top of the current process environment.
	// Keys already present in the environment are NOT overridden.
	Env map[string]string

	// Stdin, when non-empty, is written to the subprocess's standard input
	// (used for docker login --password-stdin).
	Stdin string
}

// CommandError reports a subprocess that exited non-zero. StderrTail holds
// the last captured stderr bytes for error classification.
type CommandError struct {
	Name       string
	Args       []string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s exited with code %d", e.Name, strings.Join(e.Args, " "), e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode extracts the subprocess exit code from an error returned by Run.
// Returns 1 for errors that carry no exit code, 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return 1
}

// Runner runs external commands with their output streamed live.
type Runner interface {
	// Run executes the command, streaming stdout and stderr as the process
	// produces them. A non-zero exit returns a *CommandError.
	Run(ctx context.Context, cmd Command) error

	// LookPath reports whether an executable is resolvable.
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec. Output writers are injectable for
// tests; they default to the process's own stdout and stderr.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns an ExecRunner wired to the process streams.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes the command. Stdout and stderr are pumped concurrently so
// progress is visible in real time; the stderr tail is also captured for
// error classification.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = overlayEnv(os.Environ(), cmd.Env)

	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}

	stdoutPipe, err := c.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderrPipe, err := c.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	stdout := r.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var stderrTail tailBuffer

	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Name, err)
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(stdout, stdoutPipe)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(io.MultiWriter(stderr, &stderrTail), stderrPipe)
		return err
	})

	copyErr := g.Wait()
	waitErr := c.Wait()

	if waitErr != nil {
		exitCode := 1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return &CommandError{
			Name:       cmd.Name,
			Args:       cmd.Args,
			ExitCode:   exitCode,
			StderrTail: stderrTail.String(),
			Err:        waitErr,
		}
	}
	if copyErr != nil {
		return fmt.Errorf("failed to stream output of %s: %w", cmd.Name, copyErr)
	}
	return nil
}

// LookPath resolves an executable on PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// overlayEnv appends overlay entries for keys not already present in base.
func overlayEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	present := make(map[string]bool, len(base))
	for _, kv := range base {
		if i := strings.IndexByte(kv, '='); i > 0 {
			present[kv[:i]] = true
		}
	}
	env := base
	for k, v := range overlay {
		if !present[k] {
			env = append(env, k+"="+v)
		}
	}
	return env
}

// tailBuffer keeps the last stderrTailLimit bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= stderrTailLimit {
		t.buf.Reset()
		t.buf.Write(p[n-stderrTailLimit:])
		return n, nil
	}
	if t.buf.Len()+n > stderrTailLimit {
		trimmed := t.buf.Bytes()[t.buf.Len()+n-stderrTailLimit:]
		rest := make([]byte, len(trimmed))
		copy(rest, trimmed)
		t.buf.Reset()
		t.buf.Write(rest)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
