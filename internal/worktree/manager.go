package worktree

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// BranchGate decides whether a branch can be deleted without losing work.
// *remote.Checker implements it.
type BranchGate interface {
	Gate(ctx context.Context, dir, branch, trunk string) (model.RemovalVerdict, model.RemoteBranchStatus, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry enumerates, matches and removes worktrees.
type Registry struct {
	git    git.Runner
	gate   BranchGate
	logger *slog.Logger
}

// NewRegistry creates a Registry. gate may be nil when the caller never
// removes branches.
func NewRegistry(runner git.Runner, gate BranchGate, opts ...Option) *Registry {
	r := &Registry{
		git:    runner,
		gate:   gate,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns every worktree of the repository containing repoRoot.
//
// Bare entries carry no branch line; they are given defaultBranch, or
// model.DefaultMainBranch when defaultBranch is empty.
func (r *Registry) List(ctx context.Context, repoRoot, defaultBranch string) ([]model.Worktree, error) {
	output, err := r.git.Run(ctx, repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, git.Classify(err)
	}
	if defaultBranch == "" {
		defaultBranch = model.DefaultMainBranch
	}
	return parsePorcelainOutput(output, defaultBranch), nil
}

// Add creates a worktree at path for branch.
//
// If branch already exists it is checked out as-is; otherwise it is
// created from base (HEAD when base is empty).
func (r *Registry) Add(ctx context.Context, repoRoot, branch, path, base string) error {
	exists, err := git.BranchExists(ctx, r.git, repoRoot, branch)
	if err != nil {
		return git.Classify(err)
	}

	args := []string{"worktree", "add", path, branch}
	if !exists {
		args = []string{"worktree", "add", "-b", branch, path}
		if base != "" {
			args = append(args, base)
		}
	}
	if _, err := r.git.Run(ctx, repoRoot, args...); err != nil {
		return git.Classify(err)
	}
	r.logger.Info("worktree created", "branch", branch, "path", path)
	return nil
}

// FindForIssue returns the worktrees whose branch carries an issue marker
// for id: "issue-42", "issues/42", "feat/issue_42__title". Non-numeric
// tracker keys such as "ENG-42" also match when they appear as a
// delimited token on their own.
func (r *Registry) FindForIssue(ctx context.Context, repoRoot, id string) ([]model.Worktree, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "#")
	if id == "" {
		return nil, nil
	}
	patterns := []*regexp.Regexp{issuePattern(id)}
	if !isNumeric(id) {
		patterns = append(patterns, tokenPattern(id))
	}
	return r.filter(ctx, repoRoot, func(wt model.Worktree) bool {
		for _, p := range patterns {
			if p.MatchString(wt.Branch) {
				return true
			}
		}
		return false
	})
}

// FindForPR returns the worktrees for pull request number: a "pr-42" /
// "pr/42" branch, or a worktree directory ending in "_pr_42" (PR
// worktrees check out the PR's own head branch, so the directory is often
// the only marker).
func (r *Registry) FindForPR(ctx context.Context, repoRoot, number string) ([]model.Worktree, error) {
	number = strings.TrimPrefix(strings.TrimSpace(number), "#")
	if number == "" {
		return nil, nil
	}
	branchRe := regexp.MustCompile(`(?i)(?:^|[/_-])pr[-_/]` + regexp.QuoteMeta(number) + `(?:$|[^0-9])`)
	suffix := strings.ToLower("_pr_" + number)
	return r.filter(ctx, repoRoot, func(wt model.Worktree) bool {
		return branchRe.MatchString(wt.Branch) ||
			strings.HasSuffix(strings.ToLower(filepath.Base(wt.Path)), suffix)
	})
}

// FindForBranch returns the worktrees that have branch checked out.
// Git normally allows one, but a stale or forced checkout can produce more.
func (r *Registry) FindForBranch(ctx context.Context, repoRoot, branch string) ([]model.Worktree, error) {
	branch = strings.TrimPrefix(strings.TrimSpace(branch), "refs/heads/")
	return r.filter(ctx, repoRoot, func(wt model.Worktree) bool {
		return !wt.Bare && wt.Branch == branch
	})
}

// FindByPath returns the worktree rooted at path.
func (r *Registry) FindByPath(ctx context.Context, repoRoot, path string) (model.Worktree, error) {
	matches, err := r.filter(ctx, repoRoot, func(wt model.Worktree) bool {
		return samePath(wt.Path, path)
	})
	if err != nil {
		return model.Worktree{}, err
	}
	if len(matches) == 0 {
		return model.Worktree{}, model.NewError(model.KindWorktreeNotFound, "no worktree found at %s", path)
	}
	return matches[0], nil
}

func (r *Registry) filter(ctx context.Context, repoRoot string, keep func(model.Worktree) bool) ([]model.Worktree, error) {
	all, err := r.List(ctx, repoRoot, "")
	if err != nil {
		return nil, err
	}
	var matches []model.Worktree
	for _, wt := range all {
		if keep(wt) {
			matches = append(matches, wt)
		}
	}
	return matches, nil
}

// IdentifierKind is how Resolve interpreted a user-supplied identifier.
type IdentifierKind string

const (
	IdentifierIssueOrPR IdentifierKind = "issue-or-pr"
	IdentifierPR        IdentifierKind = "pr"
	IdentifierBranch    IdentifierKind = "branch"
)

var prIdentifier = regexp.MustCompile(`(?i)^pr[-/#]?(\d+)$`)

// ClassifyIdentifier decides how to look up a free-form identifier:
// "42" and "#42" may be an issue or a PR, "pr/42" is a PR, anything else
// is treated as a branch name.
func ClassifyIdentifier(identifier string) (IdentifierKind, string) {
	id := strings.TrimSpace(identifier)
	if m := prIdentifier.FindStringSubmatch(id); m != nil {
		return IdentifierPR, m[1]
	}
	if trimmed := strings.TrimPrefix(id, "#"); isNumeric(trimmed) {
		return IdentifierIssueOrPR, trimmed
	}
	return IdentifierBranch, id
}

// Resolve maps identifier to exactly one worktree. No match is
// KindWorktreeNotFound; several matches are KindAmbiguousIdentifier, with
// the candidate paths listed so the user can pick a more specific name.
func (r *Registry) Resolve(ctx context.Context, repoRoot, identifier string) (model.Worktree, error) {
	kind, value := ClassifyIdentifier(identifier)

	var matches []model.Worktree
	var err error
	switch kind {
	case IdentifierPR:
		matches, err = r.FindForPR(ctx, repoRoot, value)
	case IdentifierIssueOrPR:
		var issues, prs []model.Worktree
		if issues, err = r.FindForIssue(ctx, repoRoot, value); err == nil {
			if prs, err = r.FindForPR(ctx, repoRoot, value); err == nil {
				matches = dedupe(append(issues, prs...))
			}
		}
	default:
		matches, err = r.FindForBranch(ctx, repoRoot, value)
		if err == nil && len(matches) == 0 {
			// Tracker keys like "ENG-42" look like branch names.
			matches, err = r.FindForIssue(ctx, repoRoot, value)
		}
	}
	if err != nil {
		return model.Worktree{}, err
	}

	switch len(matches) {
	case 0:
		return model.Worktree{}, model.NewError(model.KindWorktreeNotFound, "no worktree found for %q", identifier)
	case 1:
		return matches[0], nil
	default:
		e := model.NewError(model.KindAmbiguousIdentifier, "%q matches %d worktrees", identifier, len(matches))
		for _, wt := range matches {
			e.Files = append(e.Files, wt.String())
		}
		return model.Worktree{}, e
	}
}

// parsePorcelainOutput parses `git worktree list --porcelain`.
//
// Records start at a "worktree <path>" marker line; every following
// attribute line belongs to that record until the next marker or the end
// of input. Blank separator lines are ignored rather than relied upon.
//
//	worktree /path/to/main
//	HEAD abc123
//	branch refs/heads/main
//
//	worktree /path/to/detached
//	HEAD def456
//	detached
//	locked moving to external disk
func parsePorcelainOutput(output, defaultBranch string) []model.Worktree {
	var worktrees []model.Worktree
	var current *model.Worktree

	flush := func() {
		if current == nil {
			return
		}
		switch {
		case current.Bare && current.Branch == "":
			current.Branch = defaultBranch
		case current.Branch == "":
			current.Detached = true
			current.Branch = model.DetachedBranch
		}
		worktrees = append(worktrees, *current)
		current = nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		if key == "worktree" {
			flush()
			current = &model.Worktree{Path: value}
			continue
		}
		if current == nil {
			continue
		}

		switch key {
		case "HEAD":
			current.Commit = value
		case "branch":
			current.Branch = strings.TrimPrefix(value, "refs/heads/")
		case "bare":
			current.Bare = true
		case "detached":
			current.Detached = true
		case "locked":
			current.Locked = true
			current.LockReason = value
		case "prunable":
			current.Prunable = true
		}
	}
	flush()

	return worktrees
}

func issuePattern(id string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[/_-])issues?[-_/]?` + regexp.QuoteMeta(id) + `(?:$|[^0-9A-Za-z])`)
}

func tokenPattern(id string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[/_-])` + regexp.QuoteMeta(id) + `(?:$|[^0-9A-Za-z])`)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func dedupe(worktrees []model.Worktree) []model.Worktree {
	seen := make(map[string]bool, len(worktrees))
	result := worktrees[:0]
	for _, wt := range worktrees {
		if seen[wt.Path] {
			continue
		}
		seen[wt.Path] = true
		result = append(result, wt)
	}
	return result
}

// samePath compares paths after cleaning and, where possible, resolving
// symlinks (macOS temp dirs live behind /var -> /private/var).
func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}
