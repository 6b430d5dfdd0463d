package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

const restoreWipInstruction = "git reset --soft HEAD~1 && git reset   # once the rebase is finished or aborted, to restore your uncommitted changes"

// RebaseOnMain rebases the branch checked out in worktreePath onto trunk.
//
// Uncommitted changes, untracked files included, are carried across the
// rebase in a WIP commit that is unwound afterwards. When the rebase stops
// on conflicts the configured ConflictResolver gets one chance; if any
// conflict remains, or the rebase is still in progress, the call fails
// with KindConflictDetected and the repository is left mid-rebase for the
// user to finish.
func (e *Engine) RebaseOnMain(ctx context.Context, worktreePath string, opts model.SyncOptions) (*model.SyncResult, error) {
	trunk := opts.Trunk()

	exists, err := git.BranchExists(ctx, e.git, repoDir(worktreePath, opts), trunk)
	if err != nil {
		return nil, git.Classify(err)
	}
	if !exists {
		notFound := model.NewError(model.KindBranchNotFound, "cannot rebase: branch '%s' does not exist", trunk)
		notFound.Instructions = []string{fmt.Sprintf("git fetch origin %s:%s", trunk, trunk)}
		return nil, notFound
	}

	branch, err := git.CurrentBranch(ctx, e.git, worktreePath)
	if err != nil {
		return nil, git.Classify(err)
	}
	result := &model.SyncResult{Branch: branch, Target: trunk, DryRun: opts.DryRun}
	log := e.logger.With("branch", branch, "trunk", trunk, "dir", worktreePath)

	dirty, err := git.IsDirty(ctx, e.git, worktreePath)
	if err != nil {
		return nil, git.Classify(err)
	}
	mergeBase, err := git.MergeBase(ctx, e.git, worktreePath, trunk, "HEAD")
	if err != nil {
		return nil, model.WrapError(model.KindCommandFailed, git.Classify(err), "finding merge base of %s and HEAD", trunk)
	}
	trunkTip, err := git.RevParse(ctx, e.git, worktreePath, trunk)
	if err != nil {
		return nil, git.Classify(err)
	}
	if mergeBase == trunkTip {
		// A WIP commit would not move the merge base, so the tree is left as is.
		log.Info("branch is up to date with trunk; nothing to rebase")
		result.UpToDate = true
		return result, nil
	}

	var wip string
	switch {
	case dirty && opts.DryRun:
		log.Info("dry run: uncommitted changes would be preserved in a WIP commit")
	case dirty:
		if wip, err = e.createWipCommit(ctx, worktreePath, trunk); err != nil {
			return nil, err
		}
	}
	unwind := func() {
		if wip != "" {
			result.WipRestored = e.restoreWipCommit(ctx, worktreePath)
		}
	}

	commits, err := git.Commits(ctx, e.git, worktreePath, trunk+"..HEAD")
	if err != nil {
		unwind()
		return nil, git.Classify(err)
	}
	result.Commits = withoutWip(commits)

	question := fmt.Sprintf("Rebase %d commit(s) of %s onto %s?", len(result.Commits), branch, trunk)
	if err := e.confirm(ctx, opts, question, result.Commits); err != nil {
		unwind()
		return nil, err
	}

	if opts.DryRun {
		log.Info("dry run: would rebase", "commits", len(result.Commits))
		return result, nil
	}

	log.Info("rebasing", "commits", len(result.Commits))
	_, rebaseErr := e.git.Run(ctx, worktreePath, "rebase", trunk)
	if rebaseErr == nil {
		unwind()
		return result, nil
	}

	files, err := git.ConflictedFiles(ctx, e.git, worktreePath)
	if err != nil {
		return nil, model.WrapError(model.KindCommandFailed, git.Classify(rebaseErr), "rebase onto %s failed", trunk)
	}
	inProgress, err := git.RebaseInProgress(ctx, e.git, worktreePath)
	if err != nil {
		return nil, model.WrapError(model.KindCommandFailed, git.Classify(rebaseErr), "rebase onto %s failed", trunk)
	}
	if len(files) == 0 && !inProgress {
		// Rebase refused to start (lock file, invalid state); history is unchanged.
		unwind()
		return nil, model.WrapError(model.KindCommandFailed, git.Classify(rebaseErr), "rebase onto %s failed", trunk)
	}

	if err := e.resolveConflicts(ctx, worktreePath, branch, trunk, files, wip != ""); err != nil {
		return nil, err
	}
	result.ConflictsResolved = true
	unwind()
	return result, nil
}

// resolveConflicts runs CONFLICT_RESOLUTION: hand the conflicts to the
// resolver, then verify that nothing is left. A partially resolved state is
// never accepted.
func (e *Engine) resolveConflicts(ctx context.Context, dir, branch, trunk string, files []string, hasWip bool) error {
	e.logger.Warn("rebase stopped on conflicts", "branch", branch, "files", files)

	resolveErr := e.resolver.Resolve(ctx, dir, files)
	if errors.Is(resolveErr, ErrNoResolver) {
		return conflictError(branch, trunk, files, hasWip, nil)
	}
	if resolveErr != nil {
		e.logger.Warn("conflict resolver reported an error; re-checking repository", "error", resolveErr)
	}

	remaining, err := git.ConflictedFiles(ctx, e.git, dir)
	if err != nil {
		return conflictError(branch, trunk, files, hasWip, err)
	}
	inProgress, err := git.RebaseInProgress(ctx, e.git, dir)
	if err != nil {
		return conflictError(branch, trunk, files, hasWip, err)
	}
	if len(remaining) > 0 || inProgress {
		if len(remaining) == 0 {
			remaining = files
		}
		return conflictError(branch, trunk, remaining, hasWip, resolveErr)
	}

	e.logger.Info("conflicts resolved", "branch", branch)
	return nil
}

func conflictError(branch, trunk string, files []string, hasWip bool, cause error) *model.Error {
	err := model.WrapError(model.KindConflictDetected, cause,
		"merge conflicts detected while rebasing %s onto %s", branch, trunk)
	err.Files = files
	err.Instructions = []string{
		"# edit the files above and resolve the conflict markers",
		"git add <file>...",
		"git rebase --continue",
		"# or give up and return to the state before the rebase:",
		"git rebase --abort",
	}
	if hasWip {
		err.Instructions = append(err.Instructions, restoreWipInstruction)
	}
	return err
}
