package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// NewRemoteStatusCommand creates the "remote-status" cobra command.
func NewRemoteStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote-status [issue|pr|branch]",
		Short: "Compare a branch with its remote copy",
		Long: `Compare a local branch with its copy on the configured remote and
report whether it could be deleted without losing work.

The argument is resolved like any other identifier; when it does not match
a worktree it is used as a branch name directly. Without an argument the
branch of the current worktree is checked.

Examples:
  iloom remote-status
  iloom remote-status feat/login --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return runRemoteStatus(cmd.Context(), a, args)
		},
	}
	return cmd
}

// remoteStatusJSON is the JSON output of the remote-status command.
type remoteStatusJSON struct {
	Branch  string                   `json:"branch"`
	Remote  string                   `json:"remote"`
	Trunk   string                   `json:"trunk"`
	Status  model.RemoteBranchStatus `json:"status"`
	Verdict model.RemovalVerdict     `json:"deletion"`
}

func runRemoteStatus(ctx context.Context, a *app, args []string) error {
	branch, err := a.statusBranch(ctx, args)
	if err != nil {
		return err
	}

	trunk := a.settings.MainBranch
	verdict, status, err := a.checker.Gate(ctx, a.root, branch, trunk)
	if err != nil {
		return err
	}

	out := remoteStatusJSON{
		Branch:  branch,
		Remote:  a.checker.Remote(),
		Trunk:   trunk,
		Status:  status,
		Verdict: verdict,
	}
	if IsJSONOutput() {
		return printJSON(a.stdout, out)
	}
	printRemoteStatusText(a.stdout, out)
	return nil
}

// statusBranch picks the branch to inspect: the branch of the resolved
// worktree, or the argument itself when no worktree matches.
func (a *app) statusBranch(ctx context.Context, args []string) (string, error) {
	wt, err := a.target(ctx, args)
	if err == nil {
		if !wt.HasBranch() {
			return "", model.NewError(model.KindBranchMismatch, "worktree %s is not on a branch", wt.Path)
		}
		return wt.Branch, nil
	}
	if len(args) > 0 && model.IsKind(err, model.KindWorktreeNotFound) {
		return args[0], nil
	}
	return "", err
}

func printRemoteStatusText(w io.Writer, s remoteStatusJSON) {
	fmt.Fprintf(w, "Branch: %s\n", s.Branch)
	switch {
	case s.Status.NetworkError:
		fmt.Fprintf(w, "Remote: %s unreachable (%s)\n", s.Remote, s.Status.ErrorMessage)
	case !s.Status.Exists:
		fmt.Fprintf(w, "Remote: not on %s\n", s.Remote)
	case s.Status.RemoteAhead:
		fmt.Fprintf(w, "Remote: %s is ahead of the local branch\n", s.Remote)
	case s.Status.LocalAhead:
		fmt.Fprintf(w, "Remote: local branch has commits %s does not\n", s.Remote)
	default:
		fmt.Fprintf(w, "Remote: in sync with %s\n", s.Remote)
	}
	st := newStyles(w)
	if s.Verdict.Allowed {
		fmt.Fprintf(w, "Safe to delete: %s (%s)\n", st.ok.Render("yes"), s.Verdict.Reason)
	} else {
		fmt.Fprintf(w, "Safe to delete: %s (%s)\n", st.bad.Render("no"), s.Verdict.Reason)
	}
}
