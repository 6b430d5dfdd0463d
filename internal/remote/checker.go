// Package remote decides whether deleting a branch could lose work.
//
// The Checker compares three commits: the local branch tip, the tip of the
// same branch on the remote (queried with a lightweight ls-remote rather
// than a full comparison against remote-tracking refs), and, only when the
// remote has no copy, the trunk branch. Assess turns that comparison into
// the 5-point decision table used by every destructive branch operation:
//
//  1. network error                     → block (cannot verify safety)
//  2. remote ahead of local             → allow (commits exist remotely)
//  3. local ahead of remote             → block (unpushed commits)
//  4. no remote copy, merged into trunk → allow (work lives in trunk)
//  5. no remote copy, not merged        → block (work would be lost)
//
// The checker must never report "safe" when it could not prove it: any
// ambiguity resolves to LocalAhead or NetworkError.
package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// DefaultRemote is the remote consulted when none is configured.
const DefaultRemote = "origin"

// Option configures a Checker.
type Option func(*Checker)

// WithRemote sets the remote name (default "origin").
func WithRemote(name string) Option {
	return func(c *Checker) {
		if name != "" {
			c.remote = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// Checker computes RemoteBranchStatus values. It holds no state between
// calls; every Check re-queries git.
type Checker struct {
	git    git.Runner
	remote string
	logger *slog.Logger
}

// NewChecker creates a Checker on top of runner.
func NewChecker(runner git.Runner, opts ...Option) *Checker {
	c := &Checker{
		git:    runner,
		remote: DefaultRemote,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Remote returns the remote name this checker queries.
func (c *Checker) Remote() string {
	return c.remote
}

// Check compares the local tip of branch with the remote's tip.
//
// Connectivity problems are reported through status.NetworkError, not
// through the error return; the error return is reserved for local
// failures (e.g. a corrupt repository).
func (c *Checker) Check(ctx context.Context, dir, branch string) (model.RemoteBranchStatus, error) {
	var status model.RemoteBranchStatus
	ref := "refs/heads/" + branch

	// An unknown remote name means there is no remote copy. Any failure to
	// reach a configured remote is a network problem.
	if _, err := c.git.Run(ctx, dir, "remote", "get-url", c.remote); err != nil {
		if git.IsMissingRemoteRef(err) {
			c.logger.Debug("remote not configured", "remote", c.remote)
			return status, nil
		}
		return status, fmt.Errorf("looking up remote %s: %w", c.remote, err)
	}

	// Fetch the single ref so the remote tip is available locally for the
	// ancestry check. A missing remote ref is expected for never-pushed
	// branches and is not an error.
	if _, err := c.git.Run(ctx, dir, "fetch", "--quiet", "--no-tags", c.remote, ref); err != nil {
		if !git.IsMissingRemoteRef(err) {
			return networkFailure(err), nil
		}
		c.logger.Debug("branch not on remote (fetch)", "branch", branch, "remote", c.remote)
	}

	out, err := c.git.Run(ctx, dir, "ls-remote", "--heads", c.remote, ref)
	if err != nil {
		if git.IsMissingRemoteRef(err) {
			return status, nil
		}
		return networkFailure(err), nil
	}

	remoteTip := parseLsRemote(out, ref)
	if remoteTip == "" {
		return status, nil
	}
	status.Exists = true

	localExists, err := git.BranchExists(ctx, c.git, dir, branch)
	if err != nil {
		return status, fmt.Errorf("checking local branch %s: %w", branch, err)
	}
	if !localExists {
		// Nothing local can be lost.
		return status, nil
	}

	localTip, err := git.RevParse(ctx, c.git, dir, ref)
	if err != nil {
		return status, fmt.Errorf("resolving %s: %w", ref, err)
	}
	if localTip == remoteTip {
		return status, nil
	}

	remoteHasLocal, err := git.IsAncestor(ctx, c.git, dir, localTip, remoteTip)
	if err != nil {
		// Typically the remote commit is not present locally. Without
		// proof that the remote contains our commits, assume it does not.
		c.logger.Warn("ancestry check failed; treating local as ahead",
			"branch", branch, "local", localTip, "remote", remoteTip, "error", err)
		status.LocalAhead = true
		return status, nil
	}
	if remoteHasLocal {
		status.RemoteAhead = true
	} else {
		status.LocalAhead = true
	}
	return status, nil
}

// MergedInto reports whether branch is fully contained in trunk.
func (c *Checker) MergedInto(ctx context.Context, dir, branch, trunk string) (bool, error) {
	return git.IsAncestor(ctx, c.git, dir, "refs/heads/"+branch, trunk)
}

// Gate composes Check, MergedInto and Assess for a single branch. The
// merge query only runs when the remote has no copy of the branch.
func (c *Checker) Gate(ctx context.Context, dir, branch, trunk string) (model.RemovalVerdict, model.RemoteBranchStatus, error) {
	status, err := c.Check(ctx, dir, branch)
	if err != nil {
		return model.RemovalVerdict{}, status, err
	}

	merged := false
	if !status.Exists && !status.NetworkError {
		merged, err = c.MergedInto(ctx, dir, branch, trunk)
		if err != nil {
			return model.RemovalVerdict{}, status, fmt.Errorf("checking whether %s is merged into %s: %w", branch, trunk, err)
		}
	}

	verdict := Assess(status, merged)
	c.logger.Debug("branch deletion gate", "branch", branch, "allowed", verdict.Allowed, "reason", verdict.Reason)
	return verdict, status, nil
}

// Assess applies the 5-point decision table. mergedIntoTrunk is only
// consulted when the branch has no remote copy.
func Assess(status model.RemoteBranchStatus, mergedIntoTrunk bool) model.RemovalVerdict {
	switch {
	case status.NetworkError:
		reason := "cannot verify remote status"
		if status.ErrorMessage != "" {
			reason += ": " + status.ErrorMessage
		}
		return model.RemovalVerdict{Allowed: false, Reason: reason}
	case status.RemoteAhead:
		return model.RemovalVerdict{Allowed: true, Reason: "remote contains all local commits"}
	case status.LocalAhead:
		return model.RemovalVerdict{Allowed: false, Reason: "branch has unpushed commits"}
	case status.Exists:
		return model.RemovalVerdict{Allowed: true, Reason: "local and remote are identical"}
	case mergedIntoTrunk:
		return model.RemovalVerdict{Allowed: true, Reason: "branch is merged into trunk"}
	default:
		return model.RemovalVerdict{Allowed: false, Reason: "branch does not exist on remote and is not merged into trunk"}
	}
}

func networkFailure(err error) model.RemoteBranchStatus {
	return model.RemoteBranchStatus{
		NetworkError: true,
		ErrorMessage: err.Error(),
	}
}

// parseLsRemote finds the SHA for ref in `git ls-remote` output
// ("<sha>\t<ref>" per line).
func parseLsRemote(out, ref string) string {
	for _, line := range strings.Split(out, "\n") {
		sha, name, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if ok && name == ref {
			return sha
		}
	}
	return ""
}
