package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// DefaultCleanupConcurrency bounds parallel removals unless --concurrency
// says otherwise.
const DefaultCleanupConcurrency = 4

// cleanupFlags holds the flag values for the cleanup command.
type cleanupFlags struct {
	// force removes dirty or locked worktrees and skips the remote safety
	// check before deleting branches.
	force bool

	// keepBranch leaves the local branches in place.
	keepBranch bool

	// merged selects every worktree whose branch is merged into trunk.
	merged bool

	dryRun      bool
	yes         bool
	concurrency int
}

// NewCleanupCommand creates the "cleanup" cobra command.
func NewCleanupCommand() *cobra.Command {
	flags := &cleanupFlags{}

	cmd := &cobra.Command{
		Use:   "cleanup [issue|pr|branch]...",
		Short: "Remove worktrees and their branches",
		Long: `Remove one or more worktrees and, unless --keep-branch is given,
delete their local branches.

A branch is only deleted when no work can be lost: the remote holds all of
its commits, or it has no remote copy and is merged into the trunk branch.
Dirty and locked worktrees are skipped unless --force is given. The main
worktree and protected branches are never removed.

Every worktree is accounted for in the result as removed, skipped or
failed; one failure does not stop the others.

Examples:
  iloom cleanup 42
  iloom cleanup 42 57 feat/login --yes
  iloom cleanup --merged --dry-run
  iloom cleanup 42 --keep-branch --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !flags.merged {
				return fmt.Errorf("specify at least one worktree or use --merged")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return runCleanup(cmd.Context(), a, args, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Remove dirty or locked worktrees and skip the remote safety check")
	cmd.Flags().BoolVar(&flags.keepBranch, "keep-branch", false, "Keep the local branches")
	cmd.Flags().BoolVar(&flags.merged, "merged", false, "Select every worktree whose branch is merged into trunk")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "List the worktrees that would be removed")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", DefaultCleanupConcurrency, "Maximum number of parallel removals")

	return cmd
}

func runCleanup(ctx context.Context, a *app, args []string, flags *cleanupFlags) error {
	// Step 1: Resolve every identifier before touching anything, so a typo
	// does not leave a half-finished batch.
	var targets []model.Worktree
	for _, id := range args {
		wt, err := a.target(ctx, []string{id})
		if err != nil {
			return err
		}
		targets = appendNew(targets, []model.Worktree{wt})
	}
	if flags.merged {
		merged, err := a.mergedWorktrees(ctx)
		if err != nil {
			return err
		}
		targets = appendNew(targets, merged)
	}
	if len(targets) == 0 {
		if IsJSONOutput() {
			return printRemoveResult(a.stdout, &model.RemoveResult{}, false)
		}
		fmt.Fprintln(a.stdout, "Nothing to clean up.")
		return nil
	}

	// Step 2: Dry run stops after listing.
	if flags.dryRun {
		return printCleanupPlan(a.stdout, targets)
	}

	// Step 3: Confirm.
	if !flags.yes && !flags.force {
		question := fmt.Sprintf("About to remove %d worktree(s):", len(targets))
		if !flags.keepBranch {
			question = fmt.Sprintf("About to remove %d worktree(s) and their branches:", len(targets))
		}
		lines := make([]string, 0, len(targets))
		for _, wt := range targets {
			lines = append(lines, wt.String())
		}
		confirmer := &promptConfirmer{in: a.stdin, out: a.stderr}
		ok, err := confirmer.Confirm(ctx, question, lines)
		if err != nil {
			return err
		}
		if !ok {
			return model.NewError(model.KindCancelled, "operation cancelled by user")
		}
	}

	// Step 4: Remove.
	opts := a.settings.RemoveOptions()
	opts.Force = flags.force
	opts.RemoveBranch = !flags.keepBranch
	opts.Concurrency = flags.concurrency

	result, err := a.registry.Remove(ctx, a.root, targets, opts)
	if err != nil {
		return err
	}
	if err := printRemoveResult(a.stdout, result, false); err != nil {
		return err
	}
	return removalError(result)
}

// mergedWorktrees returns the linked worktrees whose branch is merged into
// the trunk branch. Protected branches are never selected.
func (a *app) mergedWorktrees(ctx context.Context) ([]model.Worktree, error) {
	all, err := a.registry.List(ctx, a.root, a.settings.MainBranch)
	if err != nil {
		return nil, err
	}
	opts := a.settings.RemoveOptions()
	trunk := a.settings.MainBranch

	var merged []model.Worktree
	for i, wt := range all {
		if i == 0 || wt.Bare || wt.Prunable || !wt.HasBranch() || opts.IsProtected(wt.Branch) {
			continue
		}
		ok, err := a.checker.MergedInto(ctx, a.root, wt.Branch, trunk)
		if err != nil {
			a.logger.Warn("could not check merge status", "branch", wt.Branch, "error", err)
			continue
		}
		if ok {
			merged = append(merged, wt)
		}
	}
	return merged, nil
}

func printCleanupPlan(w io.Writer, targets []model.Worktree) error {
	if IsJSONOutput() {
		return printJSON(w, struct {
			DryRun    bool             `json:"dryRun"`
			Worktrees []model.Worktree `json:"worktrees"`
		}{true, targets})
	}
	fmt.Fprintf(w, "Dry run: would remove %d worktree(s):\n", len(targets))
	for _, wt := range targets {
		fmt.Fprintf(w, "  %s\n", wt.String())
	}
	return nil
}

// removeFailureJSON carries the error text RemovalFailure does not encode.
type removeFailureJSON struct {
	Worktree model.Worktree `json:"worktree"`
	Kind     string         `json:"kind"`
	Error    string         `json:"error"`
}

type removeResultJSON struct {
	Successes []model.Worktree    `json:"successes"`
	Failures  []removeFailureJSON `json:"failures"`
	Skipped   []model.RemovalSkip `json:"skipped"`
}

// printRemoveResult reports every worktree of a batch removal. nested is
// set when the result is part of a larger command's text output.
func printRemoveResult(w io.Writer, result *model.RemoveResult, nested bool) error {
	if IsJSONOutput() {
		return printJSON(w, toRemoveResultJSON(result))
	}

	st := newStyles(w)
	indent := ""
	if nested {
		indent = "  "
	}
	for _, wt := range result.Successes {
		fmt.Fprintf(w, "%s%s %s\n", indent, st.ok.Render("Removed"), wt.String())
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(w, "%s%s %s: %s\n", indent, st.warn.Render("Skipped"), s.Worktree.String(), s.Reason)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "%s%s  %s: %v\n", indent, st.bad.Render("Failed"), f.Worktree.String(), f.Err)
	}
	if !nested {
		fmt.Fprintf(w, "\n%d removed, %d skipped, %d failed\n",
			len(result.Successes), len(result.Skipped), len(result.Failures))
	}
	return nil
}

func toRemoveResultJSON(result *model.RemoveResult) removeResultJSON {
	out := removeResultJSON{
		Successes: make([]model.Worktree, 0, len(result.Successes)),
		Failures:  make([]removeFailureJSON, 0, len(result.Failures)),
		Skipped:   make([]model.RemovalSkip, 0, len(result.Skipped)),
	}
	out.Successes = append(out.Successes, result.Successes...)
	out.Skipped = append(out.Skipped, result.Skipped...)
	for _, f := range result.Failures {
		out.Failures = append(out.Failures, removeFailureJSON{
			Worktree: f.Worktree,
			Kind:     string(model.KindOf(f.Err)),
			Error:    f.Err.Error(),
		})
	}
	return out
}

// removalError turns failures into the command's error so the exit code
// reflects them. When every failure was a safety refusal the error is
// KindRemovalBlocked.
func removalError(result *model.RemoveResult) error {
	if len(result.Failures) == 0 {
		return nil
	}
	kind := model.KindRemovalBlocked
	for _, f := range result.Failures {
		if !model.IsKind(f.Err, model.KindRemovalBlocked) {
			kind = model.KindCommandFailed
			break
		}
	}
	return model.NewError(kind, "%d of %d worktree(s) could not be removed", len(result.Failures), result.Total())
}
