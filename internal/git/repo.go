package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Typed helpers over Runner. Each one maps a single git query to a Go
// value; none of them mutate the repository.

// RefExists reports whether the fully qualified ref (e.g. "refs/heads/main")
// exists. `git show-ref --verify --quiet` exits 1 for a missing ref; any
// other failure is returned as an error.
func RefExists(ctx context.Context, r Runner, dir, ref string) (bool, error) {
	_, err := r.Run(ctx, dir, "show-ref", "--verify", "--quiet", ref)
	if err == nil {
		return true, nil
	}
	if ExitCodeOf(err) == 1 {
		return false, nil
	}
	return false, err
}

// BranchExists reports whether a local branch exists.
func BranchExists(ctx context.Context, r Runner, dir, branch string) (bool, error) {
	return RefExists(ctx, r, dir, "refs/heads/"+branch)
}

// RevParse resolves rev to a full commit SHA.
func RevParse(ctx context.Context, r Runner, dir, rev string) (string, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// MergeBase returns the best common ancestor of a and b.
func MergeBase(ctx context.Context, r Runner, dir, a, b string) (string, error) {
	out, err := r.Run(ctx, dir, "merge-base", a, b)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
// `git merge-base --is-ancestor` exits 1 for "no"; anything else non-zero
// (unknown commit, corrupt repo) is an error.
func IsAncestor(ctx context.Context, r Runner, dir, ancestor, descendant string) (bool, error) {
	_, err := r.Run(ctx, dir, "merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	if ExitCodeOf(err) == 1 {
		return false, nil
	}
	return false, err
}

// Status returns the `git status --porcelain` lines, untracked files
// included.
func Status(ctx context.Context, r Runner, dir string) ([]string, error) {
	out, err := r.Run(ctx, dir, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// IsDirty reports whether dir has uncommitted or untracked changes.
func IsDirty(ctx context.Context, r Runner, dir string) (bool, error) {
	lines, err := Status(ctx, r, dir)
	if err != nil {
		return false, err
	}
	return len(lines) > 0, nil
}

// CurrentBranch returns the branch checked out in dir, or "HEAD" when the
// worktree is detached.
func CurrentBranch(ctx context.Context, r Runner, dir string) (string, error) {
	out, err := r.Run(ctx, dir, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(out)
	if branch == "" {
		return "HEAD", nil
	}
	return branch, nil
}

// Commits lists "<short-sha> <subject>" for every commit in revRange
// (e.g. "main..HEAD"), newest first.
func Commits(ctx context.Context, r Runner, dir, revRange string) ([]string, error) {
	out, err := r.Run(ctx, dir, "log", "--format=%h %s", revRange)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// CommitHashes lists full SHAs and subjects for revRange, newest first.
func CommitHashes(ctx context.Context, r Runner, dir, revRange string) ([][2]string, error) {
	out, err := r.Run(ctx, dir, "log", "--format=%H %s", revRange)
	if err != nil {
		return nil, err
	}
	var commits [][2]string
	for _, line := range splitLines(out) {
		sha, subject, _ := strings.Cut(line, " ")
		commits = append(commits, [2]string{sha, subject})
	}
	return commits, nil
}

// HeadSubject returns the subject line of the commit at HEAD.
func HeadSubject(ctx context.Context, r Runner, dir string) (string, error) {
	out, err := r.Run(ctx, dir, "log", "-1", "--format=%s")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ConflictedFiles lists paths with unresolved merge conflicts.
func ConflictedFiles(ctx context.Context, r Runner, dir string) ([]string, error) {
	out, err := r.Run(ctx, dir, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// RebaseInProgress reports whether dir is stopped in the middle of a
// rebase. Both the merge backend (rebase-merge) and the legacy apply
// backend (rebase-apply) are checked.
func RebaseInProgress(ctx context.Context, r Runner, dir string) (bool, error) {
	for _, name := range []string{"rebase-merge", "rebase-apply"} {
		out, err := r.Run(ctx, dir, "rev-parse", "--git-path", name)
		if err != nil {
			return false, err
		}
		path := strings.TrimSpace(out)
		if path == "" {
			continue
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return true, nil
		}
	}
	return false, nil
}

// TopLevel returns the root of the working tree containing dir. For a
// linked worktree this is the worktree root, not the main checkout.
func TopLevel(ctx context.Context, r Runner, dir string) (string, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func splitLines(out string) []string {
	trimmed := strings.TrimRight(out, "\n")
	if strings.TrimSpace(trimmed) == "" {
		return nil
	}
	lines := strings.Split(trimmed, "\n")
	result := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
