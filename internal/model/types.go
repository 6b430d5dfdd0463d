package model

import (
	"fmt"
	"strings"
)

const (
	// DefaultMainBranch is the trunk branch used when settings do not
	// configure one.
	DefaultMainBranch = "main"

	// DetachedBranch is the sentinel branch name of a worktree whose HEAD
	// is not on any branch.
	DetachedBranch = "HEAD"

	// WipCommitPrefix marks the temporary commit that carries uncommitted
	// changes across a rebase. It must never appear in published history.
	WipCommitPrefix = "WIP (iloom): "

	// PlaceholderCommitPrefix marks the empty commit some workspace
	// creation flows add so that external tooling (e.g. draft PRs) has a
	// commit to point at. Distinct from WipCommitPrefix on purpose.
	PlaceholderCommitPrefix = "[iloom placeholder]"
)

// Worktree is a single entry of `git worktree list --porcelain`.
//
// Example porcelain block:
//
//	worktree /path/to/feat-issue-42
//	HEAD 3f1c2d9e...
//	branch refs/heads/feat/issue-42__login
type Worktree struct {
	// Path is the absolute filesystem path to the worktree. It is the
	// unique key of a worktree within a repository.
	Path string `json:"path" yaml:"path"`

	// Branch is the short branch name ("feat/issue-42"), or DetachedBranch
	// when HEAD is detached. Bare entries carry the caller's default.
	Branch string `json:"branch" yaml:"branch"`

	// Commit is the SHA the worktree's HEAD points to.
	Commit string `json:"commit" yaml:"commit"`

	Bare     bool `json:"bare,omitempty" yaml:"bare,omitempty"`
	Detached bool `json:"detached,omitempty" yaml:"detached,omitempty"`
	Locked   bool `json:"locked,omitempty" yaml:"locked,omitempty"`

	// LockReason is the optional text after the "locked" attribute.
	LockReason string `json:"lockReason,omitempty" yaml:"lockReason,omitempty"`

	// Prunable is set when git reports the worktree directory missing.
	Prunable bool `json:"prunable,omitempty" yaml:"prunable,omitempty"`
}

// HasBranch reports whether the worktree is on a real branch.
func (w Worktree) HasBranch() bool {
	return w.Branch != "" && w.Branch != DetachedBranch && !w.Detached
}

// String returns "branch (path)" for log and prompt output.
func (w Worktree) String() string {
	return fmt.Sprintf("%s (%s)", w.Branch, w.Path)
}

// RemoteBranchStatus is a point-in-time comparison of a local branch
// against its copy on the remote. It is recomputed for every safety
// check and never persisted.
//
// RemoteAhead and LocalAhead are mutually exclusive, and both are false
// when Exists is false or when the two tips are identical.
type RemoteBranchStatus struct {
	Exists       bool   `json:"exists"`
	RemoteAhead  bool   `json:"remoteAhead"`
	LocalAhead   bool   `json:"localAhead"`
	NetworkError bool   `json:"networkError"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// RemovalVerdict is the outcome of the branch-deletion safety table.
type RemovalVerdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// SyncOptions parameterizes the rebase and merge workflows. Force and
// DryRun are orthogonal and may be combined.
type SyncOptions struct {
	// Force skips the interactive confirmation step.
	Force bool

	// DryRun performs only read-only validation steps.
	DryRun bool

	// MainBranch is the trunk branch. Empty means DefaultMainBranch.
	MainBranch string

	// RepoRoot overrides the directory used for repository-wide queries.
	// When empty, the worktree path passed to the workflow is used.
	RepoRoot string
}

// Trunk returns the configured trunk branch, falling back to the default.
func (o SyncOptions) Trunk() string {
	if o.MainBranch == "" {
		return DefaultMainBranch
	}
	return o.MainBranch
}

// SyncResult describes what a rebase or merge did, or would have done
// in dry-run mode.
type SyncResult struct {
	Branch string `json:"branch"`
	Target string `json:"target"`

	// Commits are the one-line summaries of the commits replayed (rebase)
	// or merged (fast-forward), oldest last as git log prints them.
	Commits []string `json:"commits,omitempty"`

	// UpToDate is true when there was nothing to rebase or merge.
	UpToDate bool `json:"upToDate"`

	DryRun            bool `json:"dryRun"`
	WipRestored       bool `json:"wipRestored,omitempty"`
	ConflictsResolved bool `json:"conflictsResolved,omitempty"`
}

// RemoveOptions controls batch worktree removal.
type RemoveOptions struct {
	// Force removes dirty worktrees and bypasses the remote safety gate.
	Force bool

	// RemoveBranch also deletes the worktree's local branch.
	RemoveBranch bool

	// MainBranch is consulted by the safety gate's merged-into-trunk check.
	MainBranch string

	// ProtectedBranches are never deleted. MainBranch is always protected.
	ProtectedBranches []string

	// Concurrency bounds parallel removals. Zero or one is sequential.
	Concurrency int
}

// IsProtected reports whether branch must never be deleted.
func (o RemoveOptions) IsProtected(branch string) bool {
	trunk := o.MainBranch
	if trunk == "" {
		trunk = DefaultMainBranch
	}
	if branch == trunk {
		return true
	}
	for _, p := range o.ProtectedBranches {
		if strings.EqualFold(p, branch) {
			return true
		}
	}
	return false
}

// RemovalFailure pairs a worktree with the error that stopped its removal.
type RemovalFailure struct {
	Worktree Worktree `json:"worktree"`
	Err      error    `json:"-"`
}

// RemovalSkip pairs a worktree with the reason it was left alone.
type RemovalSkip struct {
	Worktree Worktree `json:"worktree"`
	Reason   string   `json:"reason"`
}

// RemoveResult partitions the inputs of a batch removal. Every input
// appears in exactly one of the three slices.
type RemoveResult struct {
	Successes []Worktree       `json:"successes"`
	Failures  []RemovalFailure `json:"failures"`
	Skipped   []RemovalSkip    `json:"skipped"`
}

// Total returns the number of worktrees accounted for in the result.
func (r *RemoveResult) Total() int {
	return len(r.Successes) + len(r.Failures) + len(r.Skipped)
}
