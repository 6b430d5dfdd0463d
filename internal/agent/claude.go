package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ResolverOption configures a ClaudeResolver.
type ResolverOption func(*ClaudeResolver)

// WithModel passes --model to the agent.
func WithModel(model string) ResolverOption {
	return func(r *ClaudeResolver) {
		r.model = model
	}
}

// WithIO replaces the terminal streams the agent is attached to.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) ResolverOption {
	return func(r *ClaudeResolver) {
		r.stdin, r.stdout, r.stderr = stdin, stdout, stderr
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *ClaudeResolver) {
		r.logger = logger
	}
}

// WithRunFunc replaces the function that runs the prepared command.
func WithRunFunc(run func(*exec.Cmd) error) ResolverOption {
	return func(r *ClaudeResolver) {
		r.run = run
	}
}

// ClaudeResolver hands rebase conflicts to the claude CLI in an interactive
// session attached to the user's terminal. It does not inspect the
// agent's output; the caller re-checks the repository afterwards.
type ClaudeResolver struct {
	path   string
	model  string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	run    func(*exec.Cmd) error
	logger *slog.Logger
}

// NewClaudeResolver creates a resolver for the claude binary at path (see
// ExecutableFinder).
func NewClaudeResolver(path string, opts ...ResolverOption) *ClaudeResolver {
	r := &ClaudeResolver{
		path:   path,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		run:    (*exec.Cmd).Run,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve launches the agent in workdir with access to that directory only
// and waits for the session to end.
func (r *ClaudeResolver) Resolve(ctx context.Context, workdir string, files []string) error {
	cmd := exec.CommandContext(ctx, r.path, r.args(workdir, files)...)
	cmd.Dir = workdir
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	r.logger.Info("launching conflict resolution agent", "path", r.path, "dir", workdir, "files", len(files))
	if err := r.run(cmd); err != nil {
		return fmt.Errorf("conflict resolution agent: %w", err)
	}
	return nil
}

func (r *ClaudeResolver) args(workdir string, files []string) []string {
	args := []string{"--add-dir", workdir}
	if r.model != "" {
		args = append(args, "--model", r.model)
	}
	return append(args, ConflictPrompt(files))
}

// ConflictPrompt is the instruction given to the agent.
func ConflictPrompt(files []string) string {
	var b strings.Builder
	b.WriteString("A git rebase in this directory stopped on merge conflicts. ")
	b.WriteString("Resolve every conflict so both sides' intent is preserved.\n\n")
	b.WriteString("Conflicted files:\n")
	for _, f := range files {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\nFor each file: remove all conflict markers, then run `git add <file>`. ")
	b.WriteString("When no conflicts remain, run `git rebase --continue`. ")
	b.WriteString("If later commits conflict too, repeat until the rebase completes. ")
	b.WriteString("Do not run `git rebase --abort`, `git reset` or `git push`.")
	return b.String()
}
