package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// syncFlags holds the flags shared by the commands that rewrite or merge
// history.
type syncFlags struct {
	// force skips the confirmation prompt.
	force bool

	// dryRun only runs the read-only validation steps.
	dryRun bool
}

// bind registers the shared flags on fs.
func (f *syncFlags) bind(fs *pflag.FlagSet) {
	fs.BoolVarP(&f.force, "force", "f", false, "Skip the confirmation prompt")
	fs.BoolVarP(&f.dryRun, "dry-run", "n", false, "Show what would happen without changing anything")
}

// NewRebaseCommand creates the "rebase" cobra command.
func NewRebaseCommand() *cobra.Command {
	flags := &syncFlags{}

	cmd := &cobra.Command{
		Use:   "rebase [issue|pr|branch]",
		Short: "Rebase a worktree's branch onto the trunk branch",
		Long: `Rebase the branch of a worktree onto the trunk branch.

Uncommitted changes are carried across the rebase in a temporary WIP
commit and restored afterwards. Conflicts are handed to the configured
agent when one is available; otherwise the rebase is left in progress
with instructions to finish it by hand.

Without an identifier the worktree the command is run in is used.

Examples:
  iloom rebase
  iloom rebase 42 --dry-run
  iloom rebase feat/login --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return runRebase(cmd.Context(), a, args, flags)
		},
	}

	flags.bind(cmd.Flags())

	return cmd
}

func runRebase(ctx context.Context, a *app, args []string, flags *syncFlags) error {
	wt, err := a.target(ctx, args)
	if err != nil {
		return err
	}
	a.logger.Debug("rebasing worktree", "worktree", wt.String())

	result, err := a.engine.RebaseOnMain(ctx, wt.Path, a.syncOptions(flags.force, flags.dryRun))
	if err != nil {
		return err
	}
	return printSyncResult(a.stdout, "rebase", result)
}

// syncResultJSON is the JSON output of rebase and merge operations.
type syncResultJSON struct {
	Operation string `json:"operation"`
	*model.SyncResult
}

// printSyncResult reports a rebase or fast-forward result.
func printSyncResult(w io.Writer, operation string, result *model.SyncResult) error {
	if IsJSONOutput() {
		if result.Commits == nil {
			result.Commits = []string{}
		}
		return printJSON(w, syncResultJSON{Operation: operation, SyncResult: result})
	}
	printSyncResultText(w, operation, result)
	return nil
}

func printSyncResultText(w io.Writer, operation string, result *model.SyncResult) {
	switch {
	case result.UpToDate:
		if operation == "merge" {
			fmt.Fprintf(w, "Nothing to merge: %s already contains %s\n", result.Target, result.Branch)
		} else {
			fmt.Fprintf(w, "%s is already up to date with %s\n", result.Branch, result.Target)
		}
	case result.DryRun:
		if operation == "merge" {
			fmt.Fprintf(w, "Dry run: would fast-forward %s to %s (%d commit(s)):\n", result.Target, result.Branch, len(result.Commits))
		} else {
			fmt.Fprintf(w, "Dry run: would rebase %s onto %s (%d commit(s)):\n", result.Branch, result.Target, len(result.Commits))
		}
		for _, c := range result.Commits {
			fmt.Fprintf(w, "  %s\n", c)
		}
	default:
		if operation == "merge" {
			fmt.Fprintf(w, "Fast-forwarded %s to %s (%d commit(s))\n", result.Target, result.Branch, len(result.Commits))
		} else {
			fmt.Fprintf(w, "Rebased %s onto %s (%d commit(s))\n", result.Branch, result.Target, len(result.Commits))
		}
		if result.ConflictsResolved {
			fmt.Fprintln(w, "  conflicts were resolved by the agent")
		}
	}
	if result.WipRestored {
		fmt.Fprintln(w, "  uncommitted changes restored")
	}
}
