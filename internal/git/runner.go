package git

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
	"time"
)

const (
	// DefaultTimeout bounds ordinary local git commands.
	DefaultTimeout = 30 * time.Second

	// DefaultNetworkTimeout bounds commands that talk to a remote.
	DefaultNetworkTimeout = 120 * time.Second
)

// networkCommands talk to a remote and get the longer timeout.
var networkCommands = map[string]bool{
	"fetch":     true,
	"push":      true,
	"pull":      true,
	"ls-remote": true,
	"clone":     true,
}

// Runner executes git with the given arguments in dir and returns stdout.
// A non-zero exit is reported as a *CommandError.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CommandError is returned by Runner when git exits non-zero, times out or
// cannot be started.
type CommandError struct {
	Args     []string
	Dir      string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

// Error includes the command line and stderr so the message is useful
// without further context.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s failed", strings.Join(e.Args, " "))
	switch {
	case e.TimedOut:
		msg += " (timed out)"
	case e.ExitCode > 0:
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitErr builds a CommandError with the given exit status and stderr.
// It is mostly useful for scripting MockRunner responses.
func ExitErr(code int, stderr string) *CommandError {
	return &CommandError{ExitCode: code, Stderr: stderr}
}

// ExitCodeOf returns the exit status carried by err, or -1 when err is not
// a CommandError.
func ExitCodeOf(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}

// Option configures a CLI runner.
type Option func(*CLI)

// WithBinary overrides the git executable (default "git" from PATH).
func WithBinary(path string) Option {
	return func(c *CLI) {
		c.binary = path
	}
}

// WithTimeouts sets the per-invocation timeouts. Zero values keep the
// defaults.
func WithTimeouts(command, network time.Duration) Option {
	return func(c *CLI) {
		if command > 0 {
			c.timeout = command
		}
		if network > 0 {
			c.networkTimeout = network
		}
	}
}

// WithLogger sets the logger used for debug tracing of every invocation.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CLI) {
		c.logger = logger
	}
}

// WithEnv appends KEY=VALUE pairs to the child environment.
func WithEnv(env ...string) Option {
	return func(c *CLI) {
		c.env = append(c.env, env...)
	}
}

// CLI runs the real git binary.
type CLI struct {
	binary         string
	timeout        time.Duration
	networkTimeout time.Duration
	env            []string
	logger         *slog.Logger
}

// NewCLI creates a runner for the git binary on PATH.
func NewCLI(opts ...Option) *CLI {
	c := &CLI{
		binary:         "git",
		timeout:        DefaultTimeout,
		networkTimeout: DefaultNetworkTimeout,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes git in dir. The dir is passed via -C so the process working
// directory never changes, which keeps concurrent callers independent.
func (c *CLI) Run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeoutFor(args))
	defer cancel()

	fullArgs := args
	if dir != "" {
		fullArgs = append([]string{"-C", dir}, args...)
	}

	// #nosec G204: args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, c.binary, fullArgs...)
	// Stable English messages for Classify, and never block on a
	// credential prompt.
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, c.env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	c.logger.Debug("git", "dir", dir, "args", strings.Join(args, " "),
		"duration", time.Since(start).Round(time.Millisecond), "ok", err == nil)
	if err == nil {
		return stdout.String(), nil
	}

	cmdErr := &CommandError{
		Args:     args,
		Dir:      dir,
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	return "", cmdErr
}

func (c *CLI) timeoutFor(args []string) time.Duration {
	if len(args) > 0 && networkCommands[args[0]] {
		return c.networkTimeout
	}
	return c.timeout
}
