package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// placeholderFlags holds the flag values for the remove-placeholder command.
type placeholderFlags struct {
	dryRun bool
}

// NewRemovePlaceholderCommand creates the "remove-placeholder" cobra command.
func NewRemovePlaceholderCommand() *cobra.Command {
	flags := &placeholderFlags{}

	cmd := &cobra.Command{
		Use:   "remove-placeholder [issue|pr|branch]",
		Short: "Remove the placeholder commit from a worktree's branch",
		Long: `Remove the "[iloom placeholder]" commit from the commits a branch has
on top of the trunk branch. Later commits are replayed onto its parent; if
that replay fails it is aborted and the branch is left unchanged.

Examples:
  iloom remove-placeholder
  iloom remove-placeholder 42 --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return runRemovePlaceholder(cmd.Context(), a, args, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Show the placeholder commit without removing it")

	return cmd
}

func runRemovePlaceholder(ctx context.Context, a *app, args []string, flags *placeholderFlags) error {
	wt, err := a.target(ctx, args)
	if err != nil {
		return err
	}

	result, err := a.engine.RemovePlaceholderCommit(ctx, wt.Path, a.syncOptions(true, flags.dryRun))
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(a.stdout, result)
	}
	switch {
	case result.Commit == "":
		fmt.Fprintf(a.stdout, "No placeholder commit on %s\n", wt.Branch)
	case result.DryRun:
		fmt.Fprintf(a.stdout, "Dry run: would remove %s %s\n", shortCommit(result.Commit), result.Subject)
	default:
		fmt.Fprintf(a.stdout, "Removed %s %s\n", shortCommit(result.Commit), result.Subject)
	}
	return nil
}
