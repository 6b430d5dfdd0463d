package merge

import (
	"context"
	"fmt"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// PerformFastForwardMerge advances trunk to branch.
//
// The merge runs in opts.RepoRoot when set, otherwise inside whichever
// worktree has trunk checked out; never in worktreePath. It is refused with KindNotFastForwardable when trunk has
// moved past the point where branch forked: this workflow never creates a
// merge commit, so the caller must rebase first.
func (e *Engine) PerformFastForwardMerge(ctx context.Context, branch, worktreePath string, opts model.SyncOptions) (*model.SyncResult, error) {
	trunk := opts.Trunk()
	root := repoDir(worktreePath, opts)
	result := &model.SyncResult{Branch: branch, Target: trunk, DryRun: opts.DryRun}
	log := e.logger.With("branch", branch, "trunk", trunk)

	exists, err := git.BranchExists(ctx, e.git, root, branch)
	if err != nil {
		return nil, git.Classify(err)
	}
	if !exists {
		return nil, model.NewError(model.KindBranchNotFound, "cannot merge: branch '%s' does not exist", branch)
	}

	// LOCATE_TRUNK_WORKTREE: the main checkout when known, otherwise
	// whichever worktree has trunk checked out.
	trunkPath := opts.RepoRoot
	if trunkPath == "" {
		candidates, err := e.worktrees.FindForBranch(ctx, root, trunk)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			notFound := model.NewError(model.KindWorktreeNotFound,
				"no worktree found with branch '%s' checked out; the merge must run where %s is checked out", trunk, trunk)
			notFound.Instructions = []string{"git -C <main checkout> switch " + trunk}
			return nil, notFound
		}
		trunkPath = candidates[0].Path
	}
	log = log.With("dir", trunkPath)

	// VERIFY_ON_TRUNK
	current, err := git.CurrentBranch(ctx, e.git, trunkPath)
	if err != nil {
		return nil, git.Classify(err)
	}
	if current != trunk {
		return nil, model.NewError(model.KindBranchMismatch,
			"Expected %s branch but found %s in %s", trunk, current, trunkPath)
	}

	// VALIDATE_FAST_FORWARD
	mergeBase, err := git.MergeBase(ctx, e.git, trunkPath, trunk, branch)
	if err != nil {
		return nil, model.WrapError(model.KindCommandFailed, git.Classify(err), "finding merge base of %s and %s", trunk, branch)
	}
	trunkTip, err := git.RevParse(ctx, e.git, trunkPath, trunk)
	if err != nil {
		return nil, git.Classify(err)
	}
	if mergeBase != trunkTip {
		notFF := model.NewError(model.KindNotFastForwardable,
			"cannot fast-forward: %s has moved forward since %s branched off; rebase first", trunk, branch)
		notFF.Instructions = []string{fmt.Sprintf("iloom rebase %s", branch)}
		return nil, notFF
	}

	// NOTHING_TO_MERGE
	commits, err := git.Commits(ctx, e.git, trunkPath, trunk+".."+branch)
	if err != nil {
		return nil, git.Classify(err)
	}
	if len(commits) == 0 {
		log.Info("nothing to merge")
		result.UpToDate = true
		return result, nil
	}
	result.Commits = commits

	question := fmt.Sprintf("Fast-forward %s by %d commit(s) from %s?", trunk, len(commits), branch)
	if err := e.confirm(ctx, opts, question, commits); err != nil {
		return nil, err
	}

	if opts.DryRun {
		log.Info("dry run: would fast-forward", "commits", len(commits))
		return result, nil
	}

	if _, err := e.git.Run(ctx, trunkPath, "merge", "--ff-only", branch); err != nil {
		return nil, model.WrapError(model.KindMergeFailed, err, "merge failed")
	}
	log.Info("fast-forwarded", "commits", len(commits))
	return result, nil
}
