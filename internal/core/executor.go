package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Command is one external process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string      // full environment; nil inherits the parent's
	Timeout time.Duration // zero uses the executor default
}

// String renders the command line for diagnostics.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result carries the captured streams of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError identifies a failed command and its captured error stream.
type CommandError struct {
	Command  string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Executor runs external commands synchronously with a bounded timeout.
type Executor struct {
	DefaultTimeout time.Duration
}

func NewExecutor(defaultTimeout time.Duration) *Executor {
	return &Executor{DefaultTimeout: defaultTimeout}
}

// Run executes cmd and returns its captured output. A non-zero exit or a
// timeout is returned as *CommandError alongside the partial Result.
func (e *Executor) Run(ctx context.Context, cmd Command) (Result, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = e.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = time.Second
	if cmd.Env != nil {
		c.Env = cmd.Env
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}
	if err == nil {
		return res, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
	if res.ExitCode == 0 {
		res.ExitCode = -1
	}
	return res, &CommandError{
		Command:  cmd.String(),
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Err:      err,
	}
}
