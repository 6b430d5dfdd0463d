// Package cli: create.go implements the "iloom create" command.
//
// The create command adds a worktree for a branch next to the main
// worktree, creating the branch from a base when it does not exist yet.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// createFlags holds the flag values for the create command.
type createFlags struct {
	path string // --path: custom worktree directory path
	base string // --base: start point for a new branch
}

// NewCreateCommand creates the "create" cobra command.
func NewCreateCommand() *cobra.Command {
	flags := &createFlags{}

	cmd := &cobra.Command{
		Use:   "create <branch>",
		Short: "Create a worktree for a branch",
		Long: `Create a new worktree (loom) for a branch.

If the branch exists it is checked out in the new worktree; otherwise it is
created from --base (default: the configured main branch). The worktree is
placed next to the main worktree as <repo>-<branch> unless --path is given.

Examples:
  iloom create feat/issue-42__login
  iloom create fix/pr-17 --base develop
  iloom create experiment --path ~/dev/experiment`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return runCreate(cmd.Context(), a, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.path, "path", "", "Custom worktree directory path")
	cmd.Flags().StringVar(&flags.base, "base", "", "Base branch for a new branch (default: the configured main branch)")

	return cmd
}

// createResultJSON is the JSON output of the create command.
type createResultJSON struct {
	Worktree model.Worktree `json:"worktree"`
	Created  bool           `json:"branchCreated"`
}

func runCreate(ctx context.Context, a *app, branch string, flags *createFlags) error {
	// Step 1: Refuse a branch that is already checked out somewhere.
	existing, err := a.registry.FindForBranch(ctx, a.root, branch)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("branch %s is already checked out in %s", branch, existing[0].Path)
	}

	// Step 2: Determine the worktree path.
	worktreePath := flags.path
	if worktreePath == "" {
		worktreePath = defaultWorktreePath(a.root, branch)
	}
	worktreePath, err = filepath.Abs(expandHome(worktreePath))
	if err != nil {
		return fmt.Errorf("failed to resolve worktree path: %w", err)
	}
	if _, statErr := os.Stat(worktreePath); statErr == nil {
		return fmt.Errorf("path %s already exists", worktreePath)
	}
	a.logger.Debug("creating worktree", "branch", branch, "path", worktreePath)

	// Step 3: Create it.
	exists, err := git.BranchExists(ctx, a.runner, a.root, branch)
	if err != nil {
		return git.Classify(err)
	}
	created := !exists
	base := flags.base
	if base == "" && created {
		base = a.settings.MainBranch
	}
	if err := a.registry.Add(ctx, a.root, branch, worktreePath, base); err != nil {
		return err
	}

	// Step 4: Report the new entry as git sees it.
	wt, err := a.registry.FindByPath(ctx, a.root, worktreePath)
	if err != nil {
		return err
	}
	if IsJSONOutput() {
		return printJSON(a.stdout, createResultJSON{Worktree: wt, Created: created})
	}
	if created {
		fmt.Fprintf(a.stdout, "Created branch %s from %s\n", branch, base)
	}
	fmt.Fprintf(a.stdout, "Created worktree %s\n", wt.Path)
	return nil
}

// defaultWorktreePath places a worktree next to the main worktree, named
// after the repository and the branch.
func defaultWorktreePath(root, branch string) string {
	repoName := filepath.Base(root)
	return filepath.Join(filepath.Dir(root), repoName+"-"+sanitizeBranchName(branch))
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// sanitizeBranchName converts a Git branch name to a directory name.
// Replaces "/" with "-" and strips invalid characters.
func sanitizeBranchName(branch string) string {
	// Replace common branch name separators with hyphens.
	name := strings.ReplaceAll(branch, "/", "-")
	name = strings.ReplaceAll(name, "_", "-")

	// Remove any characters that aren't alphanumeric or hyphens.
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	name = result.String()

	// Trim leading/trailing hyphens.
	name = strings.Trim(name, "-")

	if name == "" {
		name = "worktree"
	}
	return name
}
