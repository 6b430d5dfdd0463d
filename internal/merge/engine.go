// Package merge synchronizes workspaces with the trunk branch.
//
// Two workflows are provided, both sequential state machines over git
// subprocess calls:
//
//   - RebaseOnMain replays a workspace branch onto trunk, carrying
//     uncommitted work across the rebase in a temporary WIP commit and
//     delegating conflicts to a ConflictResolver.
//   - PerformFastForwardMerge advances trunk to a workspace branch inside
//     the worktree that has trunk checked out. It never creates a merge
//     commit.
//
// Dry-run is checked before any mutating git subcommand is issued, never
// after.
package merge

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// ConflictResolver attempts to resolve rebase conflicts in workdir. The
// engine does not trust the result: it re-checks repository state after
// Resolve returns, whatever the returned error.
type ConflictResolver interface {
	Resolve(ctx context.Context, workdir string, files []string) error
}

// ErrNoResolver is returned by NoResolver.
var ErrNoResolver = errors.New("no conflict resolution agent available")

// NoResolver fails fast on every conflict.
type NoResolver struct{}

// Resolve always returns ErrNoResolver.
func (NoResolver) Resolve(context.Context, string, []string) error {
	return ErrNoResolver
}

// Confirmer asks the user to approve an operation before it mutates
// anything. commits are the one-line summaries that will be replayed or
// merged.
type Confirmer interface {
	Confirm(ctx context.Context, question string, commits []string) (bool, error)
}

// AutoConfirm approves everything. It is the default for non-interactive
// callers.
type AutoConfirm struct{}

// Confirm always returns true.
func (AutoConfirm) Confirm(context.Context, string, []string) (bool, error) {
	return true, nil
}

// WorktreeFinder locates the worktree that has a branch checked out.
// *worktree.Registry implements it.
type WorktreeFinder interface {
	FindForBranch(ctx context.Context, repoRoot, branch string) ([]model.Worktree, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver sets the conflict resolver (default NoResolver).
func WithResolver(resolver ConflictResolver) Option {
	return func(e *Engine) {
		if resolver != nil {
			e.resolver = resolver
		}
	}
}

// WithConfirmer sets the confirmation prompt (default AutoConfirm).
func WithConfirmer(confirmer Confirmer) Option {
	return func(e *Engine) {
		if confirmer != nil {
			e.confirmer = confirmer
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine runs the sync workflows. It carries no per-repository state, so
// one Engine can serve several repositories; trunk name and repository
// root travel in model.SyncOptions.
type Engine struct {
	git       git.Runner
	worktrees WorktreeFinder
	resolver  ConflictResolver
	confirmer Confirmer
	logger    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(runner git.Runner, worktrees WorktreeFinder, opts ...Option) *Engine {
	e := &Engine{
		git:       runner,
		worktrees: worktrees,
		resolver:  NoResolver{},
		confirmer: AutoConfirm{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// confirm runs the CONFIRM state. It is skipped under Force or DryRun.
func (e *Engine) confirm(ctx context.Context, opts model.SyncOptions, question string, commits []string) error {
	if opts.Force || opts.DryRun {
		return nil
	}
	ok, err := e.confirmer.Confirm(ctx, question, commits)
	if err != nil {
		return model.WrapError(model.KindCancelled, err, "confirmation failed")
	}
	if !ok {
		return model.NewError(model.KindCancelled, "operation cancelled")
	}
	return nil
}

func repoDir(worktreePath string, opts model.SyncOptions) string {
	if opts.RepoRoot != "" {
		return opts.RepoRoot
	}
	return worktreePath
}
