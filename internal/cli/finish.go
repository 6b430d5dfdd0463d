package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// finishFlags holds the flag values for the finish command.
type finishFlags struct {
	syncFlags

	// into overrides the branch the work is merged into (default: the
	// configured trunk branch).
	into string

	// cleanup removes the worktree and its branch after a successful merge.
	cleanup bool
}

// NewFinishCommand creates the "finish" cobra command.
func NewFinishCommand() *cobra.Command {
	flags := &finishFlags{}

	cmd := &cobra.Command{
		Use:   "finish [issue|pr|branch]",
		Short: "Rebase a worktree onto trunk and fast-forward trunk to it",
		Long: `Finish the work in a worktree: rebase its branch onto the target
branch, then fast-forward the target branch to it. Only fast-forward merges
are performed, so history stays linear and no merge commits are created.

The target branch must be checked out in one of the repository's worktrees
(usually the main worktree). With --cleanup the finished worktree and its
branch are removed afterwards, subject to the usual safety checks.

Examples:
  iloom finish
  iloom finish 42 --dry-run
  iloom finish feat/login --into release --force --cleanup`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return runFinish(cmd.Context(), a, args, flags)
		},
	}

	flags.bind(cmd.Flags())
	cmd.Flags().StringVar(&flags.into, "into", "", "Branch to merge into (default: the configured main branch)")
	cmd.Flags().BoolVar(&flags.cleanup, "cleanup", false, "Remove the worktree and its branch after merging")

	return cmd
}

// finishResultJSON is the JSON output of the finish command.
type finishResultJSON struct {
	Rebase  *model.SyncResult `json:"rebase"`
	Merge   *model.SyncResult `json:"merge,omitempty"`
	Cleanup *removeResultJSON `json:"cleanup,omitempty"`
}

func runFinish(ctx context.Context, a *app, args []string, flags *finishFlags) error {
	// Step 1: Resolve the worktree and the target branch.
	wt, err := a.target(ctx, args)
	if err != nil {
		return err
	}
	if !wt.HasBranch() {
		return model.NewError(model.KindBranchMismatch, "worktree %s is not on a branch", wt.Path)
	}
	opts := a.syncOptions(flags.force, flags.dryRun)
	if flags.into != "" {
		opts.MainBranch = flags.into
	}
	if wt.Branch == opts.Trunk() {
		return fmt.Errorf("%s is the target branch; nothing to finish", wt.Branch)
	}
	a.logger.Debug("finishing worktree", "worktree", wt.String(), "into", opts.Trunk())

	// Step 2: Bring the branch up to date with the target.
	rebased, err := a.engine.RebaseOnMain(ctx, wt.Path, opts)
	if err != nil {
		return err
	}

	// Step 3: Fast-forward the target. In dry-run mode the rebase above did
	// not happen, so the merge check would see the old history.
	var merged *model.SyncResult
	if !flags.dryRun || rebased.UpToDate {
		// A rebase that replayed commits already asked for confirmation.
		mergeOpts := opts
		mergeOpts.Force = opts.Force || !rebased.UpToDate
		merged, err = a.engine.PerformFastForwardMerge(ctx, wt.Branch, wt.Path, mergeOpts)
		if err != nil {
			return err
		}
	}

	// Step 4: Optionally remove the finished worktree.
	var removed *model.RemoveResult
	if flags.cleanup && !flags.dryRun {
		removeOpts := a.settings.RemoveOptions()
		removeOpts.MainBranch = opts.Trunk()
		removeOpts.RemoveBranch = true
		removed, err = a.registry.Remove(ctx, a.root, []model.Worktree{wt}, removeOpts)
		if err != nil {
			return err
		}
	}

	if IsJSONOutput() {
		out := finishResultJSON{Rebase: rebased, Merge: merged}
		if removed != nil {
			r := toRemoveResultJSON(removed)
			out.Cleanup = &r
		}
		if err := printJSON(a.stdout, out); err != nil {
			return err
		}
	} else {
		printSyncResultText(a.stdout, "rebase", rebased)
		if merged != nil {
			printSyncResultText(a.stdout, "merge", merged)
		} else {
			fmt.Fprintf(a.stdout, "Dry run: %s would then be fast-forwarded to %s\n", opts.Trunk(), wt.Branch)
		}
		if flags.cleanup && flags.dryRun {
			fmt.Fprintf(a.stdout, "Dry run: would remove %s\n", wt.String())
		}
		if removed != nil {
			if err := printRemoveResult(a.stdout, removed, true); err != nil {
				return err
			}
		}
	}

	if removed != nil {
		return removalError(removed)
	}
	return nil
}
