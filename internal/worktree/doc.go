// Package worktree is the registry of iloom workspaces.
//
// A workspace ("loom") is a git worktree. The registry never keeps its own
// list: every query re-runs `git worktree list --porcelain`, because other
// processes (the user, an editor, another iloom invocation) can add or
// remove worktrees between two calls.
//
// Design decisions:
//   - We shell out to `git` (through git.Runner) rather than using a Go Git
//     library, because worktree operations require full Git CLI
//     compatibility and go-git's worktree support is limited.
//   - The Registry holds collaborators (runner, branch gate, logger) but no
//     repository state; the repository root is a parameter of every call.
//   - Removal is batch-oriented and never aborts half-way: every input ends
//     up in exactly one of Successes, Failures or Skipped.
package worktree
