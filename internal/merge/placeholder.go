package merge

import (
	"context"
	"strings"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// PlaceholderResult reports what RemovePlaceholderCommit found.
type PlaceholderResult struct {
	// Commit is the placeholder's full SHA, empty when there is none.
	Commit  string `json:"commit,omitempty"`
	Subject string `json:"subject,omitempty"`
	Removed bool   `json:"removed"`
	DryRun  bool   `json:"dryRun"`
}

// RemovePlaceholderCommit excises the placeholder commit from the commits
// the branch in worktreePath has on top of trunk. Only the newest
// placeholder is removed. When it is HEAD a soft reset is enough;
// otherwise the commits above it are replayed onto its parent. A failed
// replay is aborted so the branch is left exactly as it was.
func (e *Engine) RemovePlaceholderCommit(ctx context.Context, worktreePath string, opts model.SyncOptions) (*PlaceholderResult, error) {
	trunk := opts.Trunk()
	result := &PlaceholderResult{DryRun: opts.DryRun}

	exists, err := git.BranchExists(ctx, e.git, repoDir(worktreePath, opts), trunk)
	if err != nil {
		return nil, git.Classify(err)
	}
	if !exists {
		return nil, model.NewError(model.KindBranchNotFound, "branch '%s' does not exist", trunk)
	}

	commits, err := git.CommitHashes(ctx, e.git, worktreePath, trunk+"..HEAD")
	if err != nil {
		return nil, git.Classify(err)
	}
	index := -1
	for i, c := range commits {
		if strings.HasPrefix(c[1], model.PlaceholderCommitPrefix) {
			index = i
			break
		}
	}
	if index < 0 {
		e.logger.Debug("no placeholder commit found", "dir", worktreePath)
		return result, nil
	}
	result.Commit, result.Subject = commits[index][0], commits[index][1]
	log := e.logger.With("dir", worktreePath, "commit", result.Commit)

	if opts.DryRun {
		log.Info("dry run: would remove placeholder commit")
		return result, nil
	}

	if index == 0 {
		if _, err := e.git.Run(ctx, worktreePath, "reset", "--soft", "HEAD~1"); err != nil {
			return nil, model.WrapError(model.KindCommandFailed, git.Classify(err), "removing placeholder commit")
		}
		result.Removed = true
		log.Info("placeholder commit removed")
		return result, nil
	}

	dirty, err := git.IsDirty(ctx, e.git, worktreePath)
	if err != nil {
		return nil, git.Classify(err)
	}
	if dirty {
		return nil, model.NewError(model.KindCommandFailed,
			"cannot remove placeholder commit %s: working tree has uncommitted changes; commit or stash them first", result.Commit[:min(12, len(result.Commit))])
	}

	if _, err := e.git.Run(ctx, worktreePath, "rebase", "--onto", result.Commit+"^", result.Commit); err != nil {
		if _, abortErr := e.git.Run(ctx, worktreePath, "rebase", "--abort"); abortErr != nil {
			log.Warn("failed to abort rebase after placeholder removal failed", "error", abortErr)
		}
		return nil, model.WrapError(model.KindCommandFailed, git.Classify(err), "removing placeholder commit")
	}
	result.Removed = true
	log.Info("placeholder commit removed")
	return result, nil
}
