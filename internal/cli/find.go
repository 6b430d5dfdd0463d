package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/worktree"
)

// NewFindCommand creates the "find" cobra command.
func NewFindCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <issue|pr|branch>",
		Short: "Print the worktrees matching an identifier",
		Long: `Find worktrees by issue number, PR number or branch name.

"42" and "#42" match issue and PR worktrees, "pr/42" matches PR worktrees
only, and anything else is matched as a branch name (falling back to a
tracker key such as ENG-42). Every match is printed, one path per line.

Examples:
  cd "$(iloom find 42)"
  iloom find pr/17
  iloom find feat/login --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return runFind(cmd.Context(), a, args[0])
		},
	}
	return cmd
}

// findResult is the JSON output of the find command.
type findResult struct {
	Identifier string           `json:"identifier"`
	Kind       string           `json:"kind"`
	Worktrees  []model.Worktree `json:"worktrees"`
}

func runFind(ctx context.Context, a *app, identifier string) error {
	kind, value := worktree.ClassifyIdentifier(identifier)
	a.logger.Debug("classified identifier", "identifier", identifier, "kind", kind, "value", value)

	var matches []model.Worktree
	var err error
	switch kind {
	case worktree.IdentifierPR:
		matches, err = a.registry.FindForPR(ctx, a.root, value)
	case worktree.IdentifierIssueOrPR:
		var prs []model.Worktree
		if matches, err = a.registry.FindForIssue(ctx, a.root, value); err == nil {
			prs, err = a.registry.FindForPR(ctx, a.root, value)
			matches = appendNew(matches, prs)
		}
	default:
		if matches, err = a.registry.FindForBranch(ctx, a.root, value); err == nil && len(matches) == 0 {
			matches, err = a.registry.FindForIssue(ctx, a.root, value)
		}
	}
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return model.NewError(model.KindWorktreeNotFound, "no worktree found for %q", identifier)
	}

	if IsJSONOutput() {
		return printJSON(a.stdout, findResult{Identifier: identifier, Kind: string(kind), Worktrees: matches})
	}
	for _, wt := range matches {
		fmt.Fprintln(a.stdout, wt.Path)
	}
	return nil
}

// appendNew appends the worktrees of extra whose paths are not in base.
func appendNew(base, extra []model.Worktree) []model.Worktree {
	for _, wt := range extra {
		found := false
		for _, b := range base {
			if samePathString(b.Path, wt.Path) {
				found = true
				break
			}
		}
		if !found {
			base = append(base, wt)
		}
	}
	return base
}

// samePathString compares two paths after cleaning them.
func samePathString(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
