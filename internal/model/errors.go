package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed classification of failures the core reports.
// Components match on the kind, never on error text.
type ErrorKind string

const (
	// KindCommandFailed is the base case: git exited non-zero.
	KindCommandFailed ErrorKind = "command-failed"

	// KindBranchNotFound means a required ref does not exist locally.
	KindBranchNotFound ErrorKind = "branch-not-found"

	// KindNotFastForwardable means trunk has diverged from the source.
	KindNotFastForwardable ErrorKind = "not-fast-forwardable"

	// KindConflictDetected means a rebase stopped on conflicts that were
	// not (fully) resolved.
	KindConflictDetected ErrorKind = "conflict-detected"

	// KindRemovalBlocked means the safety table refused a destructive action.
	KindRemovalBlocked ErrorKind = "removal-blocked"

	// KindAmbiguousIdentifier means an identifier matched several worktrees.
	KindAmbiguousIdentifier ErrorKind = "ambiguous-identifier"

	// KindNetworkError means the remote could not be reached.
	KindNetworkError ErrorKind = "network-error"

	// KindWorktreeNotFound means no worktree matched a lookup.
	KindWorktreeNotFound ErrorKind = "worktree-not-found"

	// KindBranchMismatch means a worktree is not on the branch we expected.
	KindBranchMismatch ErrorKind = "branch-mismatch"

	// KindMergeFailed means `git merge --ff-only` itself failed.
	KindMergeFailed ErrorKind = "merge-failed"

	// KindCancelled means the user declined a confirmation prompt.
	KindCancelled ErrorKind = "cancelled"
)

// ExitCode defines the process exit codes of the CLI. Scripts can rely on
// them to tell failure classes apart.
type ExitCode int

const (
	ExitSuccess             ExitCode = 0
	ExitGeneralError        ExitCode = 1
	ExitGitError            ExitCode = 2
	ExitBranchNotFound      ExitCode = 3
	ExitConflict            ExitCode = 4
	ExitNotFastForward      ExitCode = 5
	ExitRemovalBlocked      ExitCode = 6
	ExitWorktreeNotFound    ExitCode = 7
	ExitAmbiguousIdentifier ExitCode = 8
	ExitNetworkError        ExitCode = 9
	ExitUserCancelled       ExitCode = 10
)

// ExitCode maps the kind to the CLI exit code.
func (k ErrorKind) ExitCode() ExitCode {
	switch k {
	case KindCommandFailed, KindMergeFailed, KindBranchMismatch:
		return ExitGitError
	case KindBranchNotFound:
		return ExitBranchNotFound
	case KindConflictDetected:
		return ExitConflict
	case KindNotFastForwardable:
		return ExitNotFastForward
	case KindRemovalBlocked:
		return ExitRemovalBlocked
	case KindWorktreeNotFound:
		return ExitWorktreeNotFound
	case KindAmbiguousIdentifier:
		return ExitAmbiguousIdentifier
	case KindNetworkError:
		return ExitNetworkError
	case KindCancelled:
		return ExitUserCancelled
	default:
		return ExitGeneralError
	}
}

// Error is the structured error every core component returns. It carries
// enough context (files, recovery commands) for a human to finish the job
// by hand.
type Error struct {
	Kind    ErrorKind
	Message string

	// Err is the underlying error, usually a *git.CommandError.
	Err error

	// Files lists conflicted files for KindConflictDetected.
	Files []string

	// Instructions are the exact commands a human should run to recover.
	Instructions []string
}

// Error satisfies the error interface. Files and instructions are
// rendered on separate lines so the message can be printed as-is.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, f := range e.Files {
		fmt.Fprintf(&b, "\n  - %s", f)
	}
	if len(e.Instructions) > 0 {
		b.WriteString("\n\nTo resolve manually:")
		for _, line := range e.Instructions {
			fmt.Fprintf(&b, "\n  %s", line)
		}
	}
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error of the given kind around err.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindCommandFailed if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCommandFailed
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
