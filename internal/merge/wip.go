package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// createWipCommit stages everything, untracked files included, and commits
// it under model.WipCommitPrefix. Hooks and signing are bypassed: the
// commit never leaves this machine.
func (e *Engine) createWipCommit(ctx context.Context, dir, trunk string) (string, error) {
	if _, err := e.git.Run(ctx, dir, "add", "-A"); err != nil {
		return "", model.WrapError(model.KindCommandFailed, git.Classify(err), "staging uncommitted changes failed")
	}
	message := fmt.Sprintf("%suncommitted changes before rebase onto %s", model.WipCommitPrefix, trunk)
	if _, err := e.git.Run(ctx, dir, "commit", "--no-verify", "--no-gpg-sign", "-m", message); err != nil {
		// Put the index back the way we found it.
		if _, resetErr := e.git.Run(ctx, dir, "reset"); resetErr != nil {
			e.logger.Warn("failed to unstage after WIP commit failure", "dir", dir, "error", resetErr)
		}
		return "", model.WrapError(model.KindCommandFailed, git.Classify(err), "creating WIP commit failed")
	}
	hash, err := git.RevParse(ctx, e.git, dir, "HEAD")
	if err != nil {
		return "", model.WrapError(model.KindCommandFailed, git.Classify(err), "reading WIP commit")
	}
	e.logger.Info("uncommitted changes saved in WIP commit", "dir", dir, "commit", hash)
	return hash, nil
}

// restoreWipCommit folds the WIP commit back into the working tree: a soft
// reset drops the commit, a mixed reset unstages the changes so modified
// files are modified again and new files are untracked again.
//
// The WIP commit's hash changes when it is rebased, so HEAD is identified
// by its subject. Failures are logged, never returned: by the time this
// runs the operation itself has already succeeded or failed on its own.
func (e *Engine) restoreWipCommit(ctx context.Context, dir string) bool {
	subject, err := git.HeadSubject(ctx, e.git, dir)
	if err != nil {
		e.logger.Warn("could not read HEAD to restore WIP commit", "dir", dir, "error", err)
		return false
	}
	if !strings.HasPrefix(subject, model.WipCommitPrefix) {
		e.logger.Warn("HEAD is not the WIP commit; leaving history untouched", "dir", dir, "subject", subject)
		return false
	}
	if _, err := e.git.Run(ctx, dir, "reset", "--soft", "HEAD~1"); err != nil {
		e.logger.Warn("failed to restore WIP commit; run `git reset --soft HEAD~1 && git reset` manually",
			"dir", dir, "error", err)
		return false
	}
	if _, err := e.git.Run(ctx, dir, "reset"); err != nil {
		e.logger.Warn("WIP changes restored but still staged; run `git reset` to unstage", "dir", dir, "error", err)
	}
	e.logger.Info("uncommitted changes restored", "dir", dir)
	return true
}

func withoutWip(commits []string) []string {
	var result []string
	for _, c := range commits {
		_, subject, _ := strings.Cut(c, " ")
		if strings.HasPrefix(subject, model.WipCommitPrefix) {
			continue
		}
		result = append(result, c)
	}
	return result
}
