package worktree

import (
	"context"
	"fmt"
	"sync"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeFailure
	outcomeSkip
)

type outcome struct {
	kind   outcomeKind
	reason string
	err    error
}

func skip(format string, args ...any) outcome {
	return outcome{kind: outcomeSkip, reason: fmt.Sprintf(format, args...)}
}

func fail(err error) outcome {
	return outcome{kind: outcomeFailure, err: err}
}

// Remove removes worktrees in a batch. It never stops early: each input is
// reported in exactly one of the result's slices, in input order.
//
// Without opts.Force, a worktree with uncommitted changes is skipped, and
// when opts.RemoveBranch is set the branch must pass the remote safety gate
// before anything is touched. A blocked branch is a failure, not a skip,
// because the user asked for something that would lose work.
//
// The returned error is non-nil only when the batch could not start at all
// (the worktree list could not be read).
func (r *Registry) Remove(ctx context.Context, repoRoot string, worktrees []model.Worktree, opts model.RemoveOptions) (*model.RemoveResult, error) {
	registered, err := r.List(ctx, repoRoot, opts.MainBranch)
	if err != nil {
		return nil, err
	}
	var mainPath string
	if len(registered) > 0 {
		mainPath = registered[0].Path
	}

	outcomes := make([]outcome, len(worktrees))
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, wt := range worktrees {
		wg.Add(1)
		go func(i int, wt model.Worktree) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				outcomes[i] = fail(ctx.Err())
				return
			}
			outcomes[i] = r.removeOne(ctx, repoRoot, mainPath, registered, wt, opts)
		}(i, wt)
	}
	wg.Wait()

	result := &model.RemoveResult{}
	for i, o := range outcomes {
		wt := worktrees[i]
		switch o.kind {
		case outcomeSuccess:
			result.Successes = append(result.Successes, wt)
		case outcomeSkip:
			result.Skipped = append(result.Skipped, model.RemovalSkip{Worktree: wt, Reason: o.reason})
			r.logger.Info("worktree skipped", "path", wt.Path, "reason", o.reason)
		case outcomeFailure:
			result.Failures = append(result.Failures, model.RemovalFailure{Worktree: wt, Err: o.err})
			r.logger.Warn("worktree removal failed", "path", wt.Path, "error", o.err)
		}
	}
	return result, nil
}

func (r *Registry) removeOne(ctx context.Context, repoRoot, mainPath string, registered []model.Worktree, wt model.Worktree, opts model.RemoveOptions) outcome {
	switch {
	case wt.Bare:
		return skip("bare repository entry cannot be removed")
	case mainPath != "" && samePath(wt.Path, mainPath):
		return skip("main worktree cannot be removed")
	case !isRegistered(registered, wt.Path):
		return skip("not a registered worktree")
	}

	deleteBranch := opts.RemoveBranch && wt.HasBranch()
	if deleteBranch && opts.IsProtected(wt.Branch) {
		return skip("branch %s is protected", wt.Branch)
	}

	if !opts.Force {
		if wt.Locked {
			if wt.LockReason != "" {
				return skip("worktree is locked: %s", wt.LockReason)
			}
			return skip("worktree is locked")
		}
		if !wt.Prunable {
			dirty, err := git.IsDirty(ctx, r.git, wt.Path)
			if err != nil {
				return fail(git.Classify(err))
			}
			if dirty {
				return skip("worktree has uncommitted changes (use --force to discard them)")
			}
		}
		if deleteBranch {
			if o, blocked := r.checkBranch(ctx, repoRoot, wt.Branch, opts.MainBranch); blocked {
				return o
			}
		}
	}

	if err := r.removeWorktree(ctx, repoRoot, wt, opts.Force); err != nil {
		return fail(err)
	}

	if deleteBranch {
		if _, err := r.git.Run(ctx, repoRoot, "branch", "-D", wt.Branch); err != nil {
			return fail(model.WrapError(model.KindCommandFailed, err,
				"worktree removed but deleting branch %s failed", wt.Branch))
		}
		r.logger.Info("branch deleted", "branch", wt.Branch)
	}
	return outcome{kind: outcomeSuccess}
}

// checkBranch runs the safety gate. The second return is true when the
// branch must not be deleted; the outcome then explains why.
func (r *Registry) checkBranch(ctx context.Context, repoRoot, branch, trunk string) (outcome, bool) {
	if r.gate == nil {
		return fail(model.NewError(model.KindRemovalBlocked,
			"cannot verify that branch %s is safe to delete", branch)), true
	}
	if trunk == "" {
		trunk = model.DefaultMainBranch
	}
	verdict, _, err := r.gate.Gate(ctx, repoRoot, branch, trunk)
	if err != nil {
		return fail(model.WrapError(model.KindRemovalBlocked, err,
			"cannot verify that branch %s is safe to delete", branch)), true
	}
	if !verdict.Allowed {
		return fail(model.NewError(model.KindRemovalBlocked,
			"refusing to delete branch %s: %s", branch, verdict.Reason)), true
	}
	return outcome{}, false
}

func (r *Registry) removeWorktree(ctx context.Context, repoRoot string, wt model.Worktree, force bool) error {
	// Prunable entries too: remove drops only this entry, prune drops all.
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
		if wt.Locked {
			// git requires the flag twice for locked worktrees.
			args = append(args, "--force")
		}
	}
	args = append(args, wt.Path)
	if _, err := r.git.Run(ctx, repoRoot, args...); err != nil {
		return git.Classify(err)
	}
	r.logger.Info("worktree removed", "path", wt.Path)
	return nil
}

func isRegistered(registered []model.Worktree, path string) bool {
	for _, wt := range registered {
		if samePath(wt.Path, path) {
			return true
		}
	}
	return false
}
